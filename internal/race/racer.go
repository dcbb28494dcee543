package race

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/saladjay/ChatCoachService-sub002/internal/prompt"
	"github.com/saladjay/ChatCoachService-sub002/internal/provider"
	"github.com/saladjay/ChatCoachService-sub002/internal/screenshot"
)

// CacheCategory is the cache key category owned by this subsystem.
const CacheCategory = "screenshot_parse"

// DefaultScene is used when the caller does not name a scene.
const DefaultScene = "default"

// Input is one parse request.
type Input struct {
	ImageB64  string
	MimeType  string
	Width     int
	Height    int
	Options   screenshot.ParseOptions
	SessionID string
	Scene     string
}

// Outcome is the result of a won race: the normalized screenshot plus
// provenance of the winning call.
type Outcome struct {
	Strategy  string
	Model     string
	ElapsedMs int64
	Cost      float64
	Result    screenshot.ParsedScreenshot
}

// Racer races every configured provider for each request and detaches
// race losers to the background cache writer.
type Racer struct {
	providers     []provider.Provider
	writer        *Writer
	lowConfidence float64
	logger        *slog.Logger

	// callCtx bounds provider calls to the process lifetime, not the
	// request lifetime: a losing call keeps running after the response
	// has been returned and only process shutdown cancels it.
	callCtx context.Context
}

// New creates a Racer. callCtx should be the application context so
// detached calls survive their originating request.
func New(callCtx context.Context, providers []provider.Provider, writer *Writer, lowConfidence float64) *Racer {
	return &Racer{
		providers:     providers,
		writer:        writer,
		lowConfidence: lowConfidence,
		logger:        slog.Default(),
		callCtx:       callCtx,
	}
}

// Parse races the providers on one screenshot and returns the first
// valid, normalized result. Calls still in flight when the race settles
// are detached to the background writer together with a value copy of
// the cache key.
func (r *Racer) Parse(ctx context.Context, in Input) (Outcome, error) {
	if in.Width <= 0 || in.Height <= 0 {
		return Outcome{}, fmt.Errorf("%w: dimensions %dx%d", screenshot.ErrImageInput, in.Width, in.Height)
	}
	imageB64 := strings.TrimSpace(in.ImageB64)
	imageBytes, err := base64.StdEncoding.DecodeString(imageB64)
	if err != nil || len(imageBytes) == 0 {
		return Outcome{}, fmt.Errorf("%w: undecodable image data", screenshot.ErrImageInput)
	}
	if len(r.providers) == 0 {
		return Outcome{}, fmt.Errorf("%w: no providers configured", screenshot.ErrNoValidResult)
	}

	scene := in.Scene
	if scene == "" {
		scene = DefaultScene
	}
	digest := sha256.Sum256(imageBytes)
	key := CacheKey{
		SessionID: in.SessionID,
		Category:  CacheCategory,
		Resource:  hex.EncodeToString(digest[:]),
		Scene:     scene,
	}

	system, user := prompt.Build(
		in.Options.NeedNickname,
		in.Options.NeedSender,
		in.Options.ForceTwoColumns,
		in.Width, in.Height,
	)

	tasks := make([]Task, len(r.providers))
	for i, p := range r.providers {
		tasks[i] = Task{
			Strategy: p.Strategy(),
			Run: func(ctx context.Context) (provider.CallResult, error) {
				callCtx, cancel := context.WithTimeout(ctx, p.Timeout())
				defer cancel()
				return p.Call(callCtx, system, user, imageB64, in.MimeType)
			},
		}
	}

	winner, raw, pending, raceErr := runRace(ctx, r.callCtx, tasks, r.logger)

	// Detach before inspecting the race result: unresolved calls move to
	// background ownership on every return path.
	for _, pc := range pending {
		r.writer.Detach(pc, key, in.Width, in.Height, in.Options)
	}

	if raceErr != nil {
		return Outcome{}, raceErr
	}

	// Normalization failure of a validated winner is a contract violation
	// between parser and normalizer; it escalates, unlike losing-branch errors.
	normalized, err := screenshot.Normalize(raw, in.Width, in.Height, in.Options, r.lowConfidence)
	if err != nil {
		return Outcome{}, err
	}

	r.logger.Debug("race settled",
		"strategy", winner.strategy,
		"model", winner.result.Model,
		"elapsed_ms", winner.result.ElapsedMs,
		"detached", len(pending),
	)

	return Outcome{
		Strategy:  winner.strategy,
		Model:     winner.result.Model,
		ElapsedMs: winner.result.ElapsedMs,
		Cost:      winner.result.Cost,
		Result:    normalized,
	}, nil
}
