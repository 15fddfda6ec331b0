package dispenser

import (
	"sync"

	"github.com/fuellabs/go-faucet/chain"
)

// priorityWaveFactor spaces priority waves: a wave starts at
// maxDepth*priorityWaveFactor above the floor and counts down one per
// transaction.
const priorityWaveFactor = 100

// State is the in-memory wallet state threaded between in-flight
// transactions: the change output produced by the last submitted transfer
// and the priority counter ordering pending transfers in the mempool.
//
// The mutex is deliberately held across the network calls of a pipeline
// iteration; a contending goroutine parks until the current iteration has
// either recorded its change output or invalidated it.
type State struct {
	mu           sync.Mutex
	lastOutput   *chain.CoinOutput
	nextPriority uint64
	minPriority  uint64
	maxDepth     uint64
}

// NewState returns faucet state for a node with the given priority floor
// and mempool dependency chain depth limit.
func NewState(minPriority, maxDepth uint64) *State {
	return &State{
		minPriority: minPriority,
		maxDepth:    maxDepth,
	}
}

// NextPriority returns the next transaction's priority tier. Within a wave
// of maxDepth calls the values strictly decrease, so the node keeps up to
// maxDepth pending transfers of one dependency chain ordered in its
// mempool. The state lock must be held.
func (s *State) NextPriority() uint64 {
	if s.nextPriority <= s.minPriority {
		s.nextPriority = s.maxDepth*priorityWaveFactor + s.minPriority
	}
	p := s.nextPriority
	s.nextPriority--
	return p
}

// MaxDepth returns the node's mempool dependency chain depth limit.
func (s *State) MaxDepth() uint64 {
	return s.maxDepth
}
