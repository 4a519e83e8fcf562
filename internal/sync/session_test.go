package sync

import (
	"context"
	gosync "sync"
	"testing"
)

func sessionFixture(t *testing.T) (*SessionAggregator, *MemorySessionRepository, *captureNotifier) {
	t.Helper()
	sessions := NewMemorySessionRepository()
	notifier := &captureNotifier{}
	return NewSessionAggregator(sessions, notifier, testLogger()), sessions, notifier
}

func TestStartSessionRejectsNonPositiveExpected(t *testing.T) {
	aggregator, _, _ := sessionFixture(t)

	if _, err := aggregator.StartSession(context.Background(), "proj-1", 0); err == nil {
		t.Error("expected=0 should be rejected")
	}
	if _, err := aggregator.StartSession(context.Background(), "proj-1", -3); err == nil {
		t.Error("negative expected should be rejected")
	}
}

func TestReportCompletionClosesAtExpected(t *testing.T) {
	aggregator, sessions, notifier := sessionFixture(t)

	session, err := aggregator.StartSession(context.Background(), "proj-1", 3)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	for i, items := range []int64{10, 20, 30} {
		if err := aggregator.ReportCompletion(context.Background(), session.ID, "acc", items); err != nil {
			t.Fatalf("ReportCompletion %d: %v", i, err)
		}
	}

	stored, err := sessions.GetByID(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !stored.Closed {
		t.Error("session should be closed")
	}
	if stored.ClosedAt == nil {
		t.Error("ClosedAt not stamped")
	}
	if stored.ItemsSynced != 60 {
		t.Errorf("ItemsSynced = %d, want 60", stored.ItemsSynced)
	}

	if notifier.count() != 1 {
		t.Fatalf("got %d summaries, want exactly 1", notifier.count())
	}
	summary := notifier.summaries[0]
	if summary.Accounts != 3 || summary.ItemsSynced != 60 || summary.ProjectID != "proj-1" {
		t.Errorf("summary = %+v, want 3 accounts, 60 items, proj-1", summary)
	}
}

func TestReportCompletionBeforeCloseEmitsNothing(t *testing.T) {
	aggregator, _, notifier := sessionFixture(t)

	session, err := aggregator.StartSession(context.Background(), "proj-1", 2)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := aggregator.ReportCompletion(context.Background(), session.ID, "acc-1", 5); err != nil {
		t.Fatalf("ReportCompletion: %v", err)
	}
	if notifier.count() != 0 {
		t.Errorf("got %d summaries before the session closed, want 0", notifier.count())
	}
}

func TestReportCompletionAgainstClosedSessionIsNoop(t *testing.T) {
	aggregator, sessions, notifier := sessionFixture(t)

	session, err := aggregator.StartSession(context.Background(), "proj-1", 1)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if err := aggregator.ReportCompletion(context.Background(), session.ID, "acc-1", 5); err != nil {
		t.Fatalf("ReportCompletion: %v", err)
	}

	// Late stragglers after the close change nothing.
	if err := aggregator.ReportCompletion(context.Background(), session.ID, "acc-2", 99); err != nil {
		t.Fatalf("late ReportCompletion: %v", err)
	}

	stored, _ := sessions.GetByID(context.Background(), session.ID)
	if stored.ItemsSynced != 5 {
		t.Errorf("ItemsSynced = %d, want 5 unchanged", stored.ItemsSynced)
	}
	if notifier.count() != 1 {
		t.Errorf("got %d summaries, want exactly 1", notifier.count())
	}
}

func TestReportCompletionUnknownSessionIsNoop(t *testing.T) {
	aggregator, _, notifier := sessionFixture(t)

	if err := aggregator.ReportCompletion(context.Background(), "missing", "acc-1", 5); err != nil {
		t.Fatalf("ReportCompletion: %v", err)
	}
	if notifier.count() != 0 {
		t.Errorf("got %d summaries for unknown session, want 0", notifier.count())
	}
}

func TestConcurrentCompletionsEmitSingleSummary(t *testing.T) {
	aggregator, sessions, notifier := sessionFixture(t)

	const workers = 20
	session, err := aggregator.StartSession(context.Background(), "proj-1", workers)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}

	var wg gosync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := aggregator.ReportCompletion(context.Background(), session.ID, "acc", 1); err != nil {
				t.Errorf("ReportCompletion: %v", err)
			}
		}()
	}
	wg.Wait()

	stored, _ := sessions.GetByID(context.Background(), session.ID)
	if !stored.Closed {
		t.Error("session should be closed after all completions")
	}
	if stored.Completed != workers {
		t.Errorf("Completed = %d, want %d", stored.Completed, workers)
	}
	if stored.ItemsSynced != workers {
		t.Errorf("ItemsSynced = %d, want %d", stored.ItemsSynced, workers)
	}
	if notifier.count() != 1 {
		t.Errorf("got %d summaries under concurrency, want exactly 1", notifier.count())
	}
}
