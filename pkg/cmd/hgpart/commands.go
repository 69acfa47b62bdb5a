package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gilchrisn/hypergraph-partitioner/pkg/hmetis"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/hypergraph"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/metrics"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/partition"
	"github.com/gilchrisn/hypergraph-partitioner/pkg/server"
)

var (
	logLevel string

	inputFile     string
	configFile    string
	fixedFile     string
	outputFile    string
	previousFile  string
	partitionFile string
	objective     string
	evalObjective string
	mode          string
	blocks        int
	epsilon       float64
	iterations    int
	seed          int64

	addr           string
	requestTimeout time.Duration
	allowedOrigins []string

	rootCmd = &cobra.Command{
		Use:          "hgpart",
		Short:        "Multilevel hypergraph partitioner",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			zerolog.SetGlobalLevel(level)
			return nil
		},
	}

	partitionCmd = &cobra.Command{
		Use:   "partition",
		Short: "Partition an hMetis hypergraph into k blocks",
		RunE:  runPartition,
	}

	improveCmd = &cobra.Command{
		Use:   "improve",
		Short: "Improve an existing partition with V-cycles",
		RunE:  runImprove,
	}

	evaluateCmd = &cobra.Command{
		Use:   "evaluate",
		Short: "Report the objectives and balance of a partition",
		RunE:  runEvaluate,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the partitioner over HTTP",
		RunE:  runServe,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level of the command (debug, info, warn, error)")

	for _, cmd := range []*cobra.Command{partitionCmd, improveCmd, evaluateCmd} {
		cmd.Flags().StringVarP(&inputFile, "file", "f", "", "hMetis hypergraph file")
		cmd.Flags().IntVarP(&blocks, "blocks", "k", 2, "number of blocks")
		cmd.Flags().Float64VarP(&epsilon, "epsilon", "e", 0.03, "allowed imbalance")
		_ = cmd.MarkFlagRequired("file")
	}
	for _, cmd := range []*cobra.Command{partitionCmd, improveCmd} {
		cmd.Flags().StringVarP(&configFile, "config", "c", "", "configuration file (YAML, JSON or TOML)")
		cmd.Flags().StringVar(&fixedFile, "fixed", "", "fixed-vertex file")
		cmd.Flags().StringVarP(&outputFile, "output", "o", "", "partition output file (default <file>.part.<k>)")
		cmd.Flags().StringVar(&objective, "objective", "", "objective override (km1, cut, soed)")
		cmd.Flags().StringVar(&mode, "mode", "", "mode override (direct, recursive_bisection)")
		cmd.Flags().Int64Var(&seed, "seed", 0, "seed override (0 keeps the configured seed)")
	}
	improveCmd.Flags().StringVar(&previousFile, "previous", "", "partition to improve")
	improveCmd.Flags().IntVar(&iterations, "iterations", 1, "number of V-cycles")
	_ = improveCmd.MarkFlagRequired("previous")

	evaluateCmd.Flags().StringVarP(&partitionFile, "partition", "p", "", "partition file")
	evaluateCmd.Flags().StringVar(&evalObjective, "objective", "km1", "objective reported as the main value")
	_ = evaluateCmd.MarkFlagRequired("partition")

	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "", "base configuration file")
	serveCmd.Flags().DurationVar(&requestTimeout, "timeout", 0, "time limit of one request (0 = none)")
	serveCmd.Flags().StringSliceVar(&allowedOrigins, "origins", nil, "allowed CORS origins (default any)")

	rootCmd.AddCommand(partitionCmd, improveCmd, evaluateCmd, serveCmd)
}

// loadContext reads the configuration and applies command-line overrides.
func loadContext() (*partition.Context, error) {
	cfg := partition.NewContext()
	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, err
		}
	}
	if objective != "" {
		cfg.Set("partition.objective", objective)
	}
	if mode != "" {
		cfg.Set("partition.mode", mode)
	}
	if seed != 0 {
		cfg.Set("partition.seed", seed)
	}
	return cfg, cfg.Validate()
}

// loadHypergraph reads the input file and, if given, its fixed vertices.
func loadHypergraph() (*hypergraph.Hypergraph, error) {
	h, err := hmetis.ReadFile(inputFile)
	if err != nil {
		return nil, err
	}
	if fixedFile != "" {
		fixed, err := hmetis.ReadFixedFile(fixedFile, h.NumVertices())
		if err != nil {
			return nil, err
		}
		if err := h.SetFixedVertices(fixed); err != nil {
			return nil, err
		}
	}
	log.Info().
		Str("file", inputFile).
		Int("vertices", h.NumVertices()).
		Int("edges", h.NumEdges()).
		Int("pins", h.NumPins()).
		Int("fixed", h.NumFixedVertices()).
		Msg("Hypergraph loaded")
	return h, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runPartition(cmd *cobra.Command, args []string) error {
	cfg, err := loadContext()
	if err != nil {
		return err
	}
	defer cfg.Close()
	h, err := loadHypergraph()
	if err != nil {
		return err
	}
	defer h.Close()

	ctx, stop := signalContext()
	defer stop()
	res, err := partition.Partition(ctx, h, blocks, epsilon, cfg)
	return writeResult(res, err)
}

func runImprove(cmd *cobra.Command, args []string) error {
	cfg, err := loadContext()
	if err != nil {
		return err
	}
	defer cfg.Close()
	h, err := loadHypergraph()
	if err != nil {
		return err
	}
	defer h.Close()
	previous, err := hmetis.ReadPartitionFile(previousFile, h.NumVertices())
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	res, err := partition.ImprovePartition(ctx, h, blocks, epsilon, cfg, previous, iterations)
	return writeResult(res, err)
}

// writeResult stores the partition and logs its summary. A balance
// violation is reported but the partition is still written.
func writeResult(res *partition.Result, err error) error {
	if err != nil && !(errors.Is(err, partition.ErrBalanceViolated) && res != nil) {
		return err
	}
	out := outputFile
	if out == "" {
		out = fmt.Sprintf("%s.part.%d", inputFile, blocks)
	}
	if err := hmetis.WritePartitionFile(out, res.Partition); err != nil {
		return err
	}

	event := log.Info()
	if res.BalanceViolated {
		event = log.Warn()
	}
	event.
		Str("run_id", res.RunID).
		Str("objective_name", res.ObjectiveName).
		Int64("objective", res.Objective).
		Float64("imbalance", res.Imbalance).
		Bool("balance_violated", res.BalanceViolated).
		Int64("runtime_ms", res.RuntimeMS).
		Str("output", out).
		Msg("Partition written")
	return nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	obj, err := metrics.ParseObjective(evalObjective)
	if err != nil {
		return err
	}
	h, err := hmetis.ReadFile(inputFile)
	if err != nil {
		return err
	}
	defer h.Close()
	part, err := hmetis.ReadPartitionFile(partitionFile, h.NumVertices())
	if err != nil {
		return err
	}
	report, err := metrics.Evaluate(h, part, blocks, epsilon, obj)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func runServe(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		if _, err := partition.ContextFromFile(configFile); err != nil {
			return err
		}
	}
	handler := server.NewHandler(server.NewHandlers(configFile, requestTimeout), allowedOrigins)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info().Msg("Shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info().Msg("Server shutdown complete")
	return nil
}
