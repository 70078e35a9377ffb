// Package cron publishes synthetic events on a schedule, letting a
// function trigger itself with no external event source — grounded on the
// teacher's own cron subsystem, trimmed to the one thing it did that this
// specification's supplemented feature set keeps: scheduling a publish.
package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/conduitrun/conduit/dispatcher"
	"github.com/conduitrun/conduit/event"
)

// Publisher is the minimal surface Scheduler needs from a worker: publish
// one event. Its signature matches conduit.Worker.Publish exactly (the
// variadic dispatcher.DispatchOption included) so a *conduit.Worker
// satisfies it with no adapter.
type Publisher interface {
	Publish(ctx context.Context, evt event.Event, opts ...dispatcher.DispatchOption) error
}

// Scheduler runs robfig/cron entries that publish a fixed event on a
// schedule.
type Scheduler struct {
	cron      *cron.Cron
	publisher Publisher
	logger    *slog.Logger
}

// NewScheduler builds a Scheduler that publishes through publisher.
func NewScheduler(publisher Publisher, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		publisher: publisher,
		logger:    logger,
	}
}

// Register schedules eventType to be published with the given payload
// every time schedule fires. schedule follows robfig/cron's six-field
// syntax (seconds first).
func (s *Scheduler) Register(schedule, eventType string, payload any) (cron.EntryID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("cron: marshal payload for %q: %w", eventType, err)
	}

	return s.cron.AddFunc(schedule, func() {
		evt := event.Event{Type: eventType, Data: data}
		if err := s.publisher.Publish(context.Background(), evt); err != nil {
			s.logger.Error("cron: publish failed", slog.String("event_type", eventType), slog.String("error", err.Error()))
		}
	})
}

// Remove cancels a previously registered schedule.
func (s *Scheduler) Remove(id cron.EntryID) { s.cron.Remove(id) }

// Start begins running scheduled entries in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler without waiting; the returned context is done
// once any entry that was already running has finished.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }
