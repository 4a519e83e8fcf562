package sync

import "time"

// Observer receives measurements from the sync engine. Implementations must
// be cheap and non-blocking; calls happen on the job execution path.
type Observer interface {
	// ObserveJob records one finished job run and its outcome
	// (completed, retried, failed, skipped).
	ObserveJob(platform, outcome string, duration time.Duration)

	// ObserveItems records the write outcome of one job.
	ObserveItems(created, refreshed, quotaSkipped int)

	// ObserveLockContention records a job skipped because the account lock
	// was held.
	ObserveLockContention()

	// ObserveSessionClosed records a batch session closing.
	ObserveSessionClosed()
}

// nopObserver is the default until a metrics collector is attached.
type nopObserver struct{}

func (nopObserver) ObserveJob(string, string, time.Duration) {}
func (nopObserver) ObserveItems(int, int, int)               {}
func (nopObserver) ObserveLockContention()                   {}
func (nopObserver) ObserveSessionClosed()                    {}
