package prover

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/Klingon-tech/klingnet-guardian/pkg/types"
	"github.com/rs/zerolog"
)

func TestEventLog(t *testing.T) {
	var l EventLog
	if l.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", l.Len())
	}
	l.Emit(ApprovalEvent{BlockID: 1})
	l.Emit(ApprovalEvent{BlockID: 2, Approved: true})

	events := l.Events()
	if len(events) != 2 || events[0].BlockID != 1 || events[1].BlockID != 2 {
		t.Fatalf("Events() = %+v", events)
	}

	events[0].BlockID = 99
	if l.Events()[0].BlockID != 1 {
		t.Error("Events() must return a copy")
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: zerolog.New(&buf)}
	sink.Emit(ApprovalEvent{
		Guardian:  types.Address{0x01},
		BlockID:   5,
		StateHash: types.Hash{0x02},
		Approved:  true,
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["message"] != "GuardianApproval" {
		t.Errorf("message = %v, want GuardianApproval", entry["message"])
	}
	if entry["block_id"] != float64(5) {
		t.Errorf("block_id = %v, want 5", entry["block_id"])
	}
	if entry["approved"] != true {
		t.Errorf("approved = %v, want true", entry["approved"])
	}
	if entry["guardian"] != (types.Address{0x01}).String() {
		t.Errorf("guardian = %v", entry["guardian"])
	}
}

func TestMultiSink(t *testing.T) {
	var a, b EventLog
	sink := MultiSink{&a, &b}
	sink.Emit(ApprovalEvent{BlockID: 3})
	if a.Len() != 1 || b.Len() != 1 {
		t.Errorf("fan-out lengths = %d, %d, want 1, 1", a.Len(), b.Len())
	}
}
