package race

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/saladjay/ChatCoachService-sub002/internal/screenshot"
	"github.com/saladjay/ChatCoachService-sub002/internal/storage"
)

// CacheKey addresses one slot in the parse-result cache. It is plain
// value data captured at detach time, deliberately holding no reference
// to the request that triggered the race.
type CacheKey struct {
	SessionID string
	Category  string
	Resource  string
	Scene     string
}

// ResultAppender is the slice of the cache store the writer needs.
type ResultAppender interface {
	AppendResult(e storage.CacheEntry) error
}

// Writer owns the continuation of provider calls detached from finished
// races. Each detached call is awaited, normalized and appended to the
// cache on its own goroutine; nothing on this path can affect a response
// that has already been returned, so every failure is logged and absorbed.
type Writer struct {
	store         ResultAppender
	logger        *slog.Logger
	lowConfidence float64
	wg            sync.WaitGroup
}

// NewWriter creates a Writer appending into store. lowConfidence <= 0
// selects the default review threshold.
func NewWriter(store ResultAppender, lowConfidence float64) *Writer {
	return &Writer{
		store:         store,
		logger:        slog.Default(),
		lowConfidence: lowConfidence,
	}
}

// Detach takes exclusive ownership of a still-running call. The cache key
// and normalization inputs are copied by value here, at detach time: the
// triggering request may be torn down long before the call completes.
func (w *Writer) Detach(call PendingCall, key CacheKey, width, height int, opts screenshot.ParseOptions) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.process(call, key, width, height, opts)
	}()
}

func (w *Writer) process(call PendingCall, key CacheKey, width, height int, opts screenshot.ParseOptions) {
	c := <-call.ch

	if c.err != nil {
		if errors.Is(c.err, context.Canceled) {
			// Process shutdown; a clean, non-error termination.
			w.logger.Info("background call canceled", "strategy", call.strategy)
		} else {
			w.logger.Warn("background provider call failed",
				"strategy", call.strategy, "error", c.err)
		}
		return
	}

	raw, err := screenshot.ExtractJSON(c.result.Text)
	if err != nil {
		w.logger.Warn("background result unparseable, not cached",
			"strategy", c.strategy, "model", c.result.Model, "error", err)
		return
	}
	if err := screenshot.Validate(raw); err != nil {
		w.logger.Warn("background result failed validation, not cached",
			"strategy", c.strategy, "model", c.result.Model, "error", err)
		return
	}
	normalized, err := screenshot.Normalize(raw, width, height, opts, w.lowConfidence)
	if err != nil {
		w.logger.Warn("background result failed normalization, not cached",
			"strategy", c.strategy, "model", c.result.Model, "error", err)
		return
	}

	payload, err := json.Marshal(normalized)
	if err != nil {
		w.logger.Warn("marshaling background result failed", "strategy", c.strategy, "error", err)
		return
	}

	entry := storage.CacheEntry{
		SessionID:   key.SessionID,
		Category:    key.Category,
		Resource:    key.Resource,
		Scene:       key.Scene,
		PayloadJSON: string(payload),
		Model:       c.result.Model,
		Strategy:    c.strategy,
	}
	if err := w.store.AppendResult(entry); err != nil {
		w.logger.Warn("cache write failed", "strategy", c.strategy, "error", err)
		return
	}

	w.logger.Debug("cached background result",
		"strategy", c.strategy,
		"model", c.result.Model,
		"session_id", key.SessionID,
		"elapsed_ms", c.result.ElapsedMs,
	)
}

// Wait blocks until every detached call has been processed or the timeout
// elapses. Returns false on timeout. Used during graceful shutdown to give
// in-flight background writes a chance to land.
func (w *Writer) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
