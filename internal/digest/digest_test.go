package digest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/voxloop/voxloop/internal/history"
)

type fakeRecords struct {
	records []history.Record
}

func (f *fakeRecords) List() []history.Record { return f.records }

type fakeMessenger struct {
	notified []string
}

func (f *fakeMessenger) NotifyOperator(_ context.Context, text string) error {
	f.notified = append(f.notified, text)
	return nil
}

func TestComposeEmpty(t *testing.T) {
	s := New(&fakeRecords{}, &fakeMessenger{})
	if got := s.Compose(time.Now().Add(-time.Hour)); got != "" {
		t.Errorf("Compose = %q, want empty", got)
	}
}

func TestComposeCountsActivity(t *testing.T) {
	now := time.Now()
	records := &fakeRecords{records: []history.Record{
		{
			CreatedAt:           now.Add(-30 * time.Minute),
			Failures:            []string{"caller hung up"},
			CapabilitiesCreated: []string{"check_hours", "send_sms"},
			CallbackTriggered:   true,
		},
		{
			CreatedAt: now.Add(-10 * time.Minute),
			Failures:  []string{"caller hung up"},
			AutomationsDeployed: []history.DeployedRef{
				{Name: "Follow Up", ID: "wf-1"},
			},
		},
		{
			// Before the window, must not be counted.
			CreatedAt: now.Add(-2 * time.Hour),
			Failures:  []string{"old failure"},
		},
	}}

	s := New(records, &fakeMessenger{})
	got := s.Compose(now.Add(-time.Hour))

	if !strings.Contains(got, "2 run(s)") {
		t.Errorf("digest = %q", got)
	}
	if !strings.Contains(got, "capabilities created: 2") {
		t.Errorf("digest = %q", got)
	}
	if !strings.Contains(got, "automations deployed: 1") {
		t.Errorf("digest = %q", got)
	}
	if !strings.Contains(got, "caller hung up (x2)") {
		t.Errorf("digest = %q", got)
	}
	if strings.Contains(got, "old failure") {
		t.Errorf("digest includes out-of-window run: %q", got)
	}
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := New(&fakeRecords{}, &fakeMessenger{})
	if err := s.Start("not a cron spec"); err == nil {
		t.Fatal("expected error for malformed schedule")
	}
}

func TestStartEmptyScheduleDisables(t *testing.T) {
	s := New(&fakeRecords{}, &fakeMessenger{})
	if err := s.Start(""); err != nil {
		t.Fatal(err)
	}
}
