package partition

// LevelStats describes one hierarchy level after refinement. Level 0 is
// the input hypergraph.
type LevelStats struct {
	Level     int     `json:"level"`
	Vertices  int     `json:"vertices"`
	Edges     int     `json:"edges"`
	Pins      int     `json:"pins"`
	Objective int64   `json:"objective"`
	Imbalance float64 `json:"imbalance"`
	Moves     int     `json:"moves"`
	RuntimeMS int64   `json:"runtime_ms"`
}

// Result is the outcome of Partition or ImprovePartition.
type Result struct {
	RunID           string       `json:"run_id"`
	Mode            string       `json:"mode"`
	ObjectiveName   string       `json:"objective_name"`
	Objective       int64        `json:"objective"`
	Partition       []int        `json:"partition"`
	BlockWeights    []int64      `json:"block_weights"`
	MaxBlockWeight  int64        `json:"max_block_weight"`
	Imbalance       float64      `json:"imbalance"`
	BalanceViolated bool         `json:"balance_violated"`
	Communities     int          `json:"communities,omitempty"`
	Cycles          int          `json:"cycles,omitempty"`
	Levels          []LevelStats `json:"levels"`
	RuntimeMS       int64        `json:"runtime_ms"`
}
