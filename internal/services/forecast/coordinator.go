package forecast

import (
	"sync"
	"time"

	"FinCast/internal/domain/models"
	applogger "FinCast/pkg/logger"
)

type Outcome int

const (
	Granted Outcome = iota
	AlreadyRunning
)

func (o Outcome) String() string {
	if o == Granted {
		return "granted"
	}
	return "already_running"
}

type trainingLock struct {
	acquiredAt time.Time
}

// TrainingCoordinator allows at most one training run per series key.
// A lock older than maxDuration is considered abandoned: the call that
// notices it clears it but is itself refused, so the next call wins.
type TrainingCoordinator struct {
	maxDuration time.Duration
	locks       sync.Map // models.SeriesKey -> *trainingLock
	logger      *applogger.Logger
}

func NewTrainingCoordinator(maxDuration time.Duration, logger *applogger.Logger) *TrainingCoordinator {
	if logger == nil {
		logger = applogger.NewNop()
	}
	return &TrainingCoordinator{maxDuration: maxDuration, logger: logger}
}

func (c *TrainingCoordinator) TryBegin(key models.SeriesKey, now time.Time) Outcome {
	held, loaded := c.locks.LoadOrStore(key, &trainingLock{acquiredAt: now})
	if !loaded {
		return Granted
	}

	lock := held.(*trainingLock)
	if age := now.Sub(lock.acquiredAt); age >= c.maxDuration {
		// only the exact lock we inspected is removed; a newer one survives
		if c.locks.CompareAndDelete(key, lock) {
			c.logger.Warn("stale training lock cleared",
				applogger.String("key", key.String()),
				applogger.Duration("age_ms", age),
			)
		}
	}
	return AlreadyRunning
}

// End releases the lock for key whether or not it is held.
func (c *TrainingCoordinator) End(key models.SeriesKey) {
	c.locks.Delete(key)
}

// Held reports whether key currently has a lock recorded.
func (c *TrainingCoordinator) Held(key models.SeriesKey) bool {
	_, ok := c.locks.Load(key)
	return ok
}
