package prover

import (
	"sync"

	"github.com/Klingon-tech/klingnet-guardian/pkg/types"
	"github.com/rs/zerolog"
)

// ApprovalEvent is the audit record of one accepted submission.
type ApprovalEvent struct {
	Guardian  types.Address `json:"guardian"` // zero for signature bundles
	BlockID   uint64        `json:"block_id"`
	StateHash types.Hash    `json:"state_hash"`
	Approved  bool          `json:"approved"`
}

// EventSink receives approval events.
type EventSink interface {
	Emit(ev ApprovalEvent)
}

// EventLog keeps every emitted event in memory, in order.
type EventLog struct {
	mu     sync.Mutex
	events []ApprovalEvent
}

// Emit appends ev.
func (l *EventLog) Emit(ev ApprovalEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

// Events returns a copy of the recorded events.
func (l *EventLog) Events() []ApprovalEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ApprovalEvent(nil), l.events...)
}

// Len returns the number of recorded events.
func (l *EventLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// LogSink writes events to a zerolog logger.
type LogSink struct {
	Logger zerolog.Logger
}

// Emit logs ev at info level.
func (s LogSink) Emit(ev ApprovalEvent) {
	s.Logger.Info().
		Str("guardian", ev.Guardian.String()).
		Uint64("block_id", ev.BlockID).
		Str("state_hash", ev.StateHash.String()).
		Bool("approved", ev.Approved).
		Msg("GuardianApproval")
}

// MultiSink fans an event out to several sinks.
type MultiSink []EventSink

// Emit forwards ev to every sink in order.
func (m MultiSink) Emit(ev ApprovalEvent) {
	for _, s := range m {
		s.Emit(ev)
	}
}
