package service

import (
	"time"

	"go.uber.org/zap"

	"repair-job-service/internal/authz"
)

const defaultMaxCreateAttempts = 5

type Options struct {
	Logger      *zap.Logger
	Gate        *authz.Gate
	Clock       func() time.Time
	Transitions TransitionTable

	// RestoreStockOnDelete returns the quantities of a job's withdrawn parts
	// to stock when the job is deleted. Off by default: deleting a job drops
	// its JobPart rows and the stock stays consumed.
	RestoreStockOnDelete bool

	// MaxCreateAttempts bounds how many times CreateJob re-runs its
	// transaction after a job-number collision or serialization failure.
	MaxCreateAttempts int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Gate == nil {
		o.Gate = authz.NewGate(nil)
	}
	if o.Clock == nil {
		o.Clock = func() time.Time { return time.Now().UTC() }
	}
	if o.Transitions == nil {
		o.Transitions = PermissiveTransitions()
	}
	if o.MaxCreateAttempts <= 0 {
		o.MaxCreateAttempts = defaultMaxCreateAttempts
	}
	return o
}
