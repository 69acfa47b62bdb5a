package refinement

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

// MoveEvent is one applied move in the move log.
type MoveEvent struct {
	MoveNumber int    `json:"move"`
	Algorithm  string `json:"algorithm"`
	Level      int    `json:"level"`
	Vertex     int    `json:"vertex"`
	FromBlock  int    `json:"from_block"`
	ToBlock    int    `json:"to_block"`
	Gain       int64  `json:"gain"`
	Objective  int64  `json:"objective"`
	Timestamp  int64  `json:"timestamp"`
}

// MoveTracker writes MoveEvents as JSON lines. A nil tracker ignores
// every call, so callers never check for it.
type MoveTracker struct {
	mu      sync.Mutex
	closer  io.Closer
	encoder *json.Encoder
	level   int
	count   int
}

// NewMoveTracker logs to w.
func NewMoveTracker(w io.Writer) *MoveTracker {
	mt := &MoveTracker{encoder: json.NewEncoder(w)}
	if c, ok := w.(io.Closer); ok {
		mt.closer = c
	}
	return mt
}

// OpenMoveTracker creates filename and logs to it.
func OpenMoveTracker(filename string) (*MoveTracker, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	return NewMoveTracker(file), nil
}

// SetLevel tags subsequent events with a hierarchy level.
func (mt *MoveTracker) SetLevel(level int) {
	if mt == nil {
		return
	}
	mt.mu.Lock()
	mt.level = level
	mt.mu.Unlock()
}

// LogMove records a move. Encoding errors are ignored.
func (mt *MoveTracker) LogMove(algorithm string, vertex, from, to int, gain, objective int64) {
	if mt == nil {
		return
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.count++
	_ = mt.encoder.Encode(MoveEvent{
		MoveNumber: mt.count,
		Algorithm:  algorithm,
		Level:      mt.level,
		Vertex:     vertex,
		FromBlock:  from,
		ToBlock:    to,
		Gain:       gain,
		Objective:  objective,
		Timestamp:  time.Now().Unix(),
	})
}

// Moves returns the number of logged moves.
func (mt *MoveTracker) Moves() int {
	if mt == nil {
		return 0
	}
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.count
}

// Close closes the underlying writer if it is a Closer.
func (mt *MoveTracker) Close() error {
	if mt == nil || mt.closer == nil {
		return nil
	}
	return mt.closer.Close()
}
