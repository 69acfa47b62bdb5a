package partition

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/coarsening"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/community"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/initial"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/metrics"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/refinement"
)

// Partitioning modes.
const (
	ModeDirect             = "direct"
	ModeRecursiveBisection = "recursive_bisection"
)

// Upper limits of effort options. Zero selects the component default.
const (
	MaxRestarts   = 1000
	MaxWorkers    = 1024
	MaxLevels     = 256
	MaxPasses     = 1000
	MaxIterations = 10000
)

// intLimits bounds every integer option; a request may set any of them.
var intLimits = []struct {
	key      string
	min, max int64
}{
	{"coarsening.contraction_limit_multiplier", 0, 1 << 20},
	{"coarsening.max_levels", 0, MaxLevels},
	{"coarsening.max_edge_size", 0, math.MaxInt32},
	{"coarsening.community_max_iterations", 0, MaxIterations},
	{"coarsening.community_max_levels", 0, MaxLevels},
	{"initial.restarts", 0, MaxRestarts},
	{"refinement.max_passes", 0, MaxPasses},
	{"refinement.max_fruitless_moves", 0, math.MaxInt32},
	{"refinement.parallel_threshold", 0, math.MaxInt32},
	{"refinement.max_edge_size", 0, math.MaxInt32},
	{"performance.num_workers", 0, MaxWorkers},
}

var floatLimits = []struct {
	key      string
	min, max float64
}{
	{"coarsening.max_allowed_weight_multiplier", 0, 1e6},
	{"coarsening.min_shrink_factor", 0, 1e6},
	{"coarsening.community_min_gain", 0, 1},
}

// Context is the configuration bundle of a partition call, backed by
// Viper. It may be shared by concurrent calls as long as nobody calls Set.
type Context struct {
	v        *viper.Viper
	released atomic.Bool
}

// NewContext creates a context with defaults.
func NewContext() *Context {
	v := viper.New()

	v.SetDefault("partition.mode", ModeDirect)
	v.SetDefault("partition.objective", "km1")
	v.SetDefault("partition.seed", 42)
	v.SetDefault("partition.time_limit", "0s")

	v.SetDefault("coarsening.rating", "heavy_edge")
	v.SetDefault("coarsening.contraction_limit_multiplier", coarsening.DefaultContractionLimitMultiplier)
	v.SetDefault("coarsening.max_allowed_weight_multiplier", coarsening.DefaultMaxAllowedWeightMultiplier)
	v.SetDefault("coarsening.min_shrink_factor", coarsening.DefaultMinShrinkFactor)
	v.SetDefault("coarsening.max_levels", coarsening.DefaultMaxLevels)
	v.SetDefault("coarsening.max_edge_size", coarsening.DefaultMaxEdgeSize)
	v.SetDefault("coarsening.use_communities", true)
	v.SetDefault("coarsening.community_detector", "louvain")
	v.SetDefault("coarsening.community_max_iterations", community.DefaultMaxIterations)
	v.SetDefault("coarsening.community_max_levels", community.DefaultMaxLevels)
	v.SetDefault("coarsening.community_min_gain", community.DefaultMinGain)

	v.SetDefault("initial.algorithm", "pool")
	v.SetDefault("initial.restarts", initial.DefaultRestarts)
	v.SetDefault("initial.refine", true)

	v.SetDefault("refinement.algorithm", "kway_fm")
	v.SetDefault("refinement.max_passes", refinement.DefaultMaxPasses)
	v.SetDefault("refinement.max_fruitless_moves", refinement.DefaultMaxFruitlessMoves)
	v.SetDefault("refinement.time_limit", "0s")
	v.SetDefault("refinement.parallel_threshold", refinement.DefaultParallelThreshold)
	v.SetDefault("refinement.max_edge_size", refinement.DefaultMaxEdgeSize)

	v.SetDefault("performance.num_workers", min(runtime.NumCPU(), MaxWorkers))

	v.SetDefault("logging.level", "warn")
	v.SetDefault("logging.enable_progress", true)

	v.SetDefault("analysis.track_moves", false)
	v.SetDefault("analysis.output_file", "moves.jsonl")

	return &Context{v: v}
}

// ContextFromFile creates a context with defaults overridden by a YAML,
// JSON or TOML file.
func ContextFromFile(path string) (*Context, error) {
	c := NewContext()
	if err := c.LoadFromFile(path); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFromFile loads configuration from file.
func (c *Context) LoadFromFile(path string) error {
	if err := c.CheckUsable(); err != nil {
		return err
	}
	c.v.SetConfigFile(path)
	if err := c.v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: reading config %s: %v", ErrInvalidInput, path, err)
	}
	return nil
}

// Set allows dynamic configuration changes.
func (c *Context) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// Settings returns every key with its current value.
func (c *Context) Settings() map[string]interface{} { return c.v.AllSettings() }

// Close releases the context. Later partition calls with it fail with
// ErrReleased.
func (c *Context) Close() { c.released.Store(true) }

// CheckUsable returns ErrInvalidInput for a nil context and ErrReleased
// after Close.
func (c *Context) CheckUsable() error {
	if c == nil || c.v == nil {
		return fmt.Errorf("%w: nil context", ErrInvalidInput)
	}
	if c.released.Load() {
		return ErrReleased
	}
	return nil
}

func (c *Context) Mode() string { return strings.ToLower(c.v.GetString("partition.mode")) }
func (c *Context) ObjectiveName() string { return c.v.GetString("partition.objective") }
func (c *Context) Seed() int64 { return c.v.GetInt64("partition.seed") }
func (c *Context) TimeLimit() time.Duration { return c.v.GetDuration("partition.time_limit") }

func (c *Context) Rating() string { return c.v.GetString("coarsening.rating") }
func (c *Context) ContractionLimitMultiplier() int { return c.v.GetInt("coarsening.contraction_limit_multiplier") }
func (c *Context) MaxAllowedWeightMultiplier() float64 { return c.v.GetFloat64("coarsening.max_allowed_weight_multiplier") }
func (c *Context) MinShrinkFactor() float64 { return c.v.GetFloat64("coarsening.min_shrink_factor") }
func (c *Context) MaxLevels() int { return c.v.GetInt("coarsening.max_levels") }
func (c *Context) MaxEdgeSize() int { return c.v.GetInt("coarsening.max_edge_size") }
func (c *Context) UseCommunities() bool { return c.v.GetBool("coarsening.use_communities") }
func (c *Context) CommunityDetector() string { return c.v.GetString("coarsening.community_detector") }

func (c *Context) InitialAlgorithm() string { return c.v.GetString("initial.algorithm") }
func (c *Context) InitialRestarts() int { return c.v.GetInt("initial.restarts") }
func (c *Context) InitialRefine() bool { return c.v.GetBool("initial.refine") }

func (c *Context) RefinementAlgorithm() string { return c.v.GetString("refinement.algorithm") }

func (c *Context) NumWorkers() int { return c.v.GetInt("performance.num_workers") }

func (c *Context) LogLevel() string { return c.v.GetString("logging.level") }
func (c *Context) EnableProgress() bool { return c.v.GetBool("logging.enable_progress") }

func (c *Context) EnableMoveTracking() bool { return c.v.GetBool("analysis.track_moves") }
func (c *Context) TrackingOutputFile() string { return c.v.GetString("analysis.output_file") }

// Objective parses partition.objective.
func (c *Context) Objective() (metrics.Objective, error) {
	return metrics.ParseObjective(c.ObjectiveName())
}

// Validate checks every enumerated option.
func (c *Context) Validate() error {
	if err := c.CheckUsable(); err != nil {
		return err
	}
	if m := c.Mode(); m != ModeDirect && m != ModeRecursiveBisection {
		return fmt.Errorf("%w: unknown partition mode %q", ErrInvalidInput, m)
	}
	if _, err := c.Objective(); err != nil {
		return err
	}
	if _, err := coarsening.ParseRating(c.Rating()); err != nil {
		return err
	}
	if _, err := initial.ParseAlgorithm(c.InitialAlgorithm()); err != nil {
		return err
	}
	if _, err := refinement.New(c.RefinementAlgorithm(), c.RefinementOptions(), zerolog.Nop(), nil); err != nil {
		return err
	}
	if _, err := community.NewDetector(c.CommunityDetector(), c.CommunityOptions(), zerolog.Nop()); err != nil {
		return err
	}
	if c.TimeLimit() < 0 {
		return fmt.Errorf("%w: negative time limit", ErrInvalidInput)
	}
	if c.v.GetDuration("refinement.time_limit") < 0 {
		return fmt.Errorf("%w: negative refinement time limit", ErrInvalidInput)
	}
	for _, l := range intLimits {
		if v := c.v.GetInt64(l.key); v < l.min || v > l.max {
			return fmt.Errorf("%w: %s = %d, want [%d, %d]", ErrInvalidInput, l.key, v, l.min, l.max)
		}
	}
	for _, l := range floatLimits {
		if v := c.v.GetFloat64(l.key); math.IsNaN(v) || v < l.min || v > l.max {
			return fmt.Errorf("%w: %s = %v, want [%v, %v]", ErrInvalidInput, l.key, v, l.min, l.max)
		}
	}
	return nil
}

// CoarseningOptions returns the coarsener settings for k blocks and a total
// vertex weight. maxBlockWeight caps the cluster weight.
func (c *Context) CoarseningOptions(k int, totalWeight, maxBlockWeight int64) coarsening.Options {
	rating, _ := coarsening.ParseRating(c.Rating())
	limit := c.ContractionLimitMultiplier() * k
	maxNode := coarsening.MaxNodeWeight(totalWeight, limit, c.MaxAllowedWeightMultiplier())
	if maxNode > maxBlockWeight {
		maxNode = maxBlockWeight
	}
	return coarsening.Options{
		Rating:           rating,
		ContractionLimit: limit,
		MaxNodeWeight:    maxNode,
		MinShrinkFactor:  c.MinShrinkFactor(),
		MaxLevels:        c.MaxLevels(),
		MaxEdgeSize:      c.MaxEdgeSize(),
		Seed:             c.Seed(),
	}
}

// CommunityOptions returns the community detection settings.
func (c *Context) CommunityOptions() community.Options {
	return community.Options{
		MaxIterations: c.v.GetInt("coarsening.community_max_iterations"),
		MaxLevels:     c.v.GetInt("coarsening.community_max_levels"),
		MinGain:       c.v.GetFloat64("coarsening.community_min_gain"),
		Seed:          c.Seed(),
	}
}

// InitialOptions returns the initial partitioning settings.
func (c *Context) InitialOptions() initial.Options {
	algo, _ := initial.ParseAlgorithm(c.InitialAlgorithm())
	return initial.Options{
		Algorithm:  algo,
		Restarts:   c.InitialRestarts(),
		NumWorkers: c.NumWorkers(),
		Refine:     c.InitialRefine(),
		Seed:       c.Seed(),
	}
}

// RefinementOptions returns the refiner settings.
func (c *Context) RefinementOptions() refinement.Options {
	return refinement.Options{
		MaxPasses:         c.v.GetInt("refinement.max_passes"),
		MaxFruitlessMoves: c.v.GetInt("refinement.max_fruitless_moves"),
		TimeLimit:         c.v.GetDuration("refinement.time_limit"),
		ParallelThreshold: c.v.GetInt("refinement.parallel_threshold"),
		NumWorkers:        c.NumWorkers(),
		MaxEdgeSize:       c.v.GetInt("refinement.max_edge_size"),
	}
}

// CreateLogger creates a zerolog logger based on config.
func (c *Context) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.WarnLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "hgpart").Logger()
}
