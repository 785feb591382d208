package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"recurpay/internal/eventbus"
	"recurpay/internal/model"
	"recurpay/internal/recurring"
	logx "recurpay/pkg/logx"
)

const runLogTimeout = 5 * time.Second

// run executes one tick. Items are processed sequentially in due order; a
// failing or panicking item is counted and the tick moves on. ctx is checked
// between items only.
func (s *Service) run(ctx context.Context, trigger string) (TickReport, error) {
	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)

	start := s.clock.Now()
	now := start.In(s.Location())
	rep := TickReport{Trigger: trigger, At: now}
	log := s.log.With(logx.String("trigger", trigger))

	ids, err := s.due.ListDue(ctx, now)
	if err != nil {
		err = fmt.Errorf("list due: %w", err)
		rep.Error = err.Error()
		rep.Took = s.clock.Now().Sub(start)
		log.Error("tick aborted", logx.Err(err))
		s.finish(ctx, rep)
		return rep, err
	}
	rep.Due = len(ids)

	for i, id := range ids {
		if ctx.Err() != nil {
			log.Warn("tick interrupted; remaining items stay due", logx.Int("remaining", len(ids)-i))
			break
		}
		res, err := s.processSafe(ctx, id, now)
		switch res.Outcome {
		case recurring.Applied:
			rep.Applied++
		case recurring.SkippedNotDue, recurring.SkippedInactive:
			rep.Skipped++
		default:
			rep.Failed++
			reason := res.Reason
			if err != nil {
				reason = err.Error()
			}
			rep.Failures = append(rep.Failures, ItemFailure{DefinitionID: id, Reason: reason})
		}
	}
	rep.Took = s.clock.Now().Sub(start)

	fields := []logx.Field{
		logx.Int("due", rep.Due),
		logx.Int("applied", rep.Applied),
		logx.Int("skipped", rep.Skipped),
		logx.Int("failed", rep.Failed),
		logx.Duration("took", rep.Took),
	}
	switch {
	case rep.Failed > 0:
		log.Warn("tick finished with failures", fields...)
	case rep.Due > 0:
		log.Info("tick finished", fields...)
	default:
		log.Debug("tick finished", fields...)
	}
	s.finish(ctx, rep)
	return rep, nil
}

func (s *Service) processSafe(ctx context.Context, id uuid.UUID, now time.Time) (res recurring.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			res = recurring.Result{DefinitionID: id, Outcome: recurring.Failed, Reason: err.Error()}
			s.log.Error("item panicked",
				logx.Stringer("definition_id", id),
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())),
			)
			s.bus.Publish(eventbus.Event{Type: eventbus.RecurringFailed, Data: eventbus.ItemEvent{
				DefinitionID: id.String(),
				Outcome:      string(recurring.Failed),
				At:           s.clock.Now(),
				Error:        err.Error(),
			}})
		}
	}()
	return s.proc.Process(ctx, id, now)
}

func (s *Service) finish(ctx context.Context, rep TickReport) {
	s.ticks.Add(1)
	cp := rep
	s.last.Store(&cp)

	evType := eventbus.SchedulerTick
	if rep.Error != "" {
		evType = eventbus.SchedulerTickFail
	}
	s.bus.Publish(eventbus.Event{Type: evType, Data: eventbus.TickEvent{
		Trigger:  rep.Trigger,
		Due:      rep.Due,
		Applied:  rep.Applied,
		Skipped:  rep.Skipped,
		Failed:   rep.Failed,
		Duration: rep.Took,
		Error:    rep.Error,
	}})

	if s.runs == nil {
		return
	}
	// The run log is written even when the tick's ctx was cancelled.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), runLogTimeout)
	defer cancel()
	if err := s.runs.AppendRun(wctx, model.Run{
		At:      rep.At,
		Trigger: rep.Trigger,
		Due:     rep.Due,
		Applied: rep.Applied,
		Skipped: rep.Skipped,
		Failed:  rep.Failed,
		Error:   rep.Error,
		Took:    rep.Took.Milliseconds(),
	}); err != nil {
		s.log.Warn("run log append failed", logx.Err(err))
		return
	}

	s.mu.Lock()
	keep := s.cfg.RunLogRetain
	s.mu.Unlock()
	if keep > 0 {
		if _, err := s.runs.PruneRuns(wctx, keep); err != nil {
			s.log.Warn("run log prune failed", logx.Err(err))
		}
	}
}
