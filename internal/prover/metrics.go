package prover

import (
	"errors"

	"github.com/Klingon-tech/klingnet-guardian/internal/blockproc"
	"github.com/Klingon-tech/klingnet-guardian/internal/guardian"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	pathLabel   = "path"
	reasonLabel = "reason"
)

// Metrics counts gate activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	submissions      *prometheus.CounterVec
	approvals        *prometheus.CounterVec
	rejections       *prometheus.CounterVec
	dispatchFailures prometheus.Counter
}

// NewMetrics creates the gate counters and registers them with registerer.
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_submissions_total",
			Help: "number of submissions received, per approval path",
		}, []string{pathLabel}),
		approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_approvals_total",
			Help: "number of submissions that reached quorum and were dispatched",
		}, []string{pathLabel}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "guardian_rejections_total",
			Help: "number of rejected submissions, per path and reason",
		}, []string{pathLabel, reasonLabel}),
		dispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "guardian_dispatch_failures_total",
			Help: "number of approved submissions whose block processor call failed",
		}),
	}
	err := errors.Join(
		registerer.Register(m.submissions),
		registerer.Register(m.approvals),
		registerer.Register(m.rejections),
		registerer.Register(m.dispatchFailures),
	)
	return m, err
}

func (m *Metrics) submitted(p Path) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(string(p)).Inc()
}

func (m *Metrics) approved(p Path) {
	if m == nil {
		return
	}
	m.approvals.WithLabelValues(string(p)).Inc()
}

func (m *Metrics) rejected(p Path, err error) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(string(p), rejectReason(err)).Inc()
}

func (m *Metrics) dispatchFailed() {
	if m == nil {
		return
	}
	m.dispatchFailures.Inc()
}

// rejectReason maps an error to a low-cardinality label value.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrPaused):
		return "paused"
	case errors.Is(err, ErrReentrant):
		return "reentrant"
	case errors.Is(err, ErrNilProposal):
		return "nil_proposal"
	case errors.Is(err, ErrInvalidProofTier):
		return "proof_tier"
	case errors.Is(err, ErrProofTooLarge):
		return "proof_too_large"
	case errors.Is(err, ErrInsufficientSignatures):
		return "insufficient_signatures"
	case errors.Is(err, ErrInvalidSignatures):
		return "invalid_signatures"
	case errors.Is(err, guardian.ErrNotGuardian):
		return "not_guardian"
	case errors.Is(err, blockproc.ErrServiceNotFound):
		return "no_block_processor"
	default:
		return "other"
	}
}
