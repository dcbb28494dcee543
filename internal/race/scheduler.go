// Package race dispatches one parse request to several vision providers
// concurrently, answers with the first result that parses and validates,
// and hands any still-running calls to a background cache writer.
package race

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/saladjay/ChatCoachService-sub002/internal/provider"
	"github.com/saladjay/ChatCoachService-sub002/internal/screenshot"
)

// Task is one provider call prepared for a race.
type Task struct {
	Strategy string
	Run      func(ctx context.Context) (provider.CallResult, error)
}

// completion is the terminal outcome of one task, successful or not.
type completion struct {
	strategy string
	result   provider.CallResult
	err      error
}

// PendingCall is an opaque continuation for a task still running when the
// race returned. Whoever holds it owns the call exclusively: exactly one
// receive on ch will ever happen.
type PendingCall struct {
	strategy string
	ch       <-chan completion
}

// runRace launches every task on callCtx and waits on waitCtx for the
// first completion whose output both parses and passes the structural
// gate. Completions that error, don't parse, or fail validation are
// discarded and the wait continues. Tasks still running when a winner is
// found (or when waitCtx dies) are returned as pending continuations.
//
// Each task writes its single completion into a dedicated buffered
// channel, so no task goroutine ever blocks on a reader — a detached
// call finishes on its own schedule regardless of who consumes it.
func runRace(waitCtx, callCtx context.Context, tasks []Task, logger *slog.Logger) (completion, []byte, []PendingCall, error) {
	channels := make([]chan completion, len(tasks))
	done := make(chan int, len(tasks))

	for i, t := range tasks {
		ch := make(chan completion, 1)
		channels[i] = ch
		go func(i int, t Task) {
			res, err := t.Run(callCtx)
			if err != nil {
				err = fmt.Errorf("%w: %s: %w", screenshot.ErrProviderCall, t.Strategy, err)
			}
			ch <- completion{strategy: t.Strategy, result: res, err: err}
			done <- i
		}(i, t)
	}

	remaining := make(map[int]bool, len(tasks))
	for i := range tasks {
		remaining[i] = true
	}

	pendingOf := func() []PendingCall {
		var pending []PendingCall
		for i := range remaining {
			pending = append(pending, PendingCall{strategy: tasks[i].Strategy, ch: channels[i]})
		}
		return pending
	}

	for len(remaining) > 0 {
		select {
		case <-waitCtx.Done():
			// Caller is gone; every unresolved call moves to background ownership.
			return completion{}, nil, pendingOf(), waitCtx.Err()

		case i := <-done:
			delete(remaining, i)
			c := <-channels[i] // buffered, never blocks after done signal

			if c.err != nil {
				logger.Warn("provider call failed, race continues",
					"strategy", c.strategy, "error", c.err)
				continue
			}
			raw, err := screenshot.ExtractJSON(c.result.Text)
			if err != nil {
				logger.Warn("provider output unparseable, race continues",
					"strategy", c.strategy, "model", c.result.Model, "error", err)
				continue
			}
			if err := screenshot.Validate(raw); err != nil {
				logger.Warn("provider output failed validation, race continues",
					"strategy", c.strategy, "model", c.result.Model, "error", err)
				continue
			}

			// First complete-and-valid result wins; slower calls are not
			// awaited even if they might outrank this one on quality.
			return c, raw, pendingOf(), nil
		}
	}

	return completion{}, nil, nil, screenshot.ErrNoValidResult
}
