// Package digest periodically summarizes recent improvement activity for
// the operator.
package digest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/voxloop/voxloop/internal/history"
)

type Records interface {
	List() []history.Record
}

type Messenger interface {
	NotifyOperator(ctx context.Context, text string) error
}

// Scheduler sends a digest of improvement runs on a cron schedule. An
// empty schedule disables it.
type Scheduler struct {
	records   Records
	messenger Messenger
	cron      *cron.Cron

	mu    sync.Mutex
	since time.Time
}

func New(records Records, messenger Messenger) *Scheduler {
	return &Scheduler{
		records:   records,
		messenger: messenger,
		cron:      cron.New(),
		since:     time.Now(),
	}
}

// Start registers the schedule and begins running. Returns an error on a
// malformed cron spec.
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		log.Printf("digest: disabled (no schedule)")
		return nil
	}
	if _, err := s.cron.AddFunc(schedule, s.send); err != nil {
		return fmt.Errorf("digest schedule %q: %w", schedule, err)
	}
	s.cron.Start()
	log.Printf("digest: scheduled %q", schedule)
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) send() {
	s.mu.Lock()
	since := s.since
	s.since = time.Now()
	s.mu.Unlock()

	msg := s.Compose(since)
	if msg == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.messenger.NotifyOperator(ctx, msg); err != nil {
		log.Printf("digest: notify failed: %v", err)
	}
}

// Compose builds the digest text for runs recorded after since. Empty
// string means nothing happened.
func (s *Scheduler) Compose(since time.Time) string {
	var recent []history.Record
	for _, rec := range s.records.List() {
		if rec.CreatedAt.After(since) {
			recent = append(recent, rec)
		}
	}
	if len(recent) == 0 {
		return ""
	}

	var caps, autos, callbacks int
	failures := map[string]int{}
	for _, rec := range recent {
		caps += len(rec.CapabilitiesCreated)
		autos += len(rec.AutomationsDeployed)
		if rec.CallbackTriggered {
			callbacks++
		}
		for _, f := range rec.Failures {
			failures[f]++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "improvement digest: %d run(s) since %s\n",
		len(recent), since.Format(time.RFC3339))
	fmt.Fprintf(&sb, "capabilities created: %d, automations deployed: %d, callbacks: %d\n",
		caps, autos, callbacks)
	if len(failures) > 0 {
		sb.WriteString("observed failures:\n")
		for _, rec := range recent {
			for _, f := range rec.Failures {
				if n, ok := failures[f]; ok {
					fmt.Fprintf(&sb, "  - %s (x%d)\n", f, n)
					delete(failures, f)
				}
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
