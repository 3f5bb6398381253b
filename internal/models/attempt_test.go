package models

import (
	"testing"
	"time"
)

func TestFinishStampsEndTime(t *testing.T) {
	start := time.Now().Add(-10 * time.Minute)
	a := &TestAttempt{Status: AttemptStatusInProgress, StartTime: start}
	now := time.Now()

	a.Finish(AttemptStatusCompleted, now)

	if a.Status != AttemptStatusCompleted {
		t.Errorf("Status = %s, want completed", a.Status)
	}
	if a.EndTime == nil || !a.EndTime.Equal(now) {
		t.Errorf("EndTime = %v, want %v", a.EndTime, now)
	}
	if a.TimeSpent != now.Sub(start).Milliseconds() {
		t.Errorf("TimeSpent = %d, want %d", a.TimeSpent, now.Sub(start).Milliseconds())
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	a := &TestAttempt{Status: AttemptStatusInProgress, StartTime: time.Now().Add(-time.Minute)}
	first := time.Now()
	a.Finish(AttemptStatusCompleted, first)

	end := *a.EndTime
	a.Finish(AttemptStatusTimedOut, first.Add(time.Hour))

	if a.Status != AttemptStatusCompleted {
		t.Errorf("second finish must not change the status, got %s", a.Status)
	}
	if !a.EndTime.Equal(end) {
		t.Errorf("second finish must not move the end time")
	}
}

func TestRecordVisitCount(t *testing.T) {
	a := &TestAttempt{}

	a.RecordVisitCount("q1", 1)
	a.RecordVisitCount("q1", 2)
	a.RecordVisitCount("q2", 1)

	if a.Metrics.VisitCounts["q1"] != 2 {
		t.Errorf("VisitCounts[q1] = %d, want 2", a.Metrics.VisitCounts["q1"])
	}
	if a.Metrics.VisitCounts["q2"] != 1 {
		t.Errorf("VisitCounts[q2] = %d, want 1", a.Metrics.VisitCounts["q2"])
	}
}

func TestRecordQuestionTime(t *testing.T) {
	a := &TestAttempt{}

	a.RecordQuestionTime("q1", 4000)
	a.RecordQuestionTime("q1", 9000)

	if a.Metrics.TimePerQuestion["q1"] != 9000 {
		t.Errorf("TimePerQuestion[q1] = %d, want 9000", a.Metrics.TimePerQuestion["q1"])
	}
}

func TestIsTerminal(t *testing.T) {
	testCases := []struct {
		status AttemptStatus
		want   bool
	}{
		{AttemptStatusInProgress, false},
		{AttemptStatusCompleted, true},
		{AttemptStatusTimedOut, true},
		{AttemptStatusAbandoned, true},
	}
	for _, tc := range testCases {
		if got := tc.status.IsTerminal(); got != tc.want {
			t.Errorf("IsTerminal(%s) = %v, want %v", tc.status, got, tc.want)
		}
	}
}
