// Package scheduler fires stored prompts into the agent on cron
// schedules, for recurring chores like a nightly lock check.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// cronParser accepts standard 5-field expressions:
// minute hour day-of-month month day-of-week.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Runner executes one scheduled prompt. Implemented by the agent side.
type Runner func(ctx context.Context, name, prompt string)

// Scheduler fires tasks on their cron schedules. A task still running
// when its next fire time arrives is skipped, not stacked.
type Scheduler struct {
	logger *slog.Logger
	run    Runner
	cron   *cron.Cron
	ctx    context.Context
}

// New creates a scheduler that fires tasks through run.
func New(logger *slog.Logger, run Runner) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		logger: logger,
		run:    run,
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx: context.Background(),
	}
}

// Add registers a task. Returns an error if the cron expression is
// invalid; tasks cannot change after Run starts.
func (s *Scheduler) Add(name, cronExpr, prompt string) error {
	_, err := s.cron.AddFunc(cronExpr, func() {
		s.logger.Info("firing scheduled task", "name", name)
		s.run(s.ctx, name, prompt)
	})
	if err != nil {
		return fmt.Errorf("task %q: %w", name, err)
	}
	s.logger.Info("scheduled task", "name", name, "cron", cronExpr)
	return nil
}

// Len returns the number of registered tasks.
func (s *Scheduler) Len() int { return len(s.cron.Entries()) }

// Run fires due tasks until ctx is canceled, then waits for running
// tasks to finish.
func (s *Scheduler) Run(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}
