package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/saladjay/ChatCoachService-sub002/internal/race"
	"github.com/saladjay/ChatCoachService-sub002/internal/screenshot"
	"github.com/saladjay/ChatCoachService-sub002/internal/storage"
)

// Screenshots are sent inline as base64; leave generous headroom.
const maxParseBodySize = 24 << 20 // 24MB

// Parser is the slice of the racing orchestrator the API needs.
type Parser interface {
	Parse(ctx context.Context, in race.Input) (race.Outcome, error)
}

// CacheStore is the slice of the result cache the API and MCP layers need.
type CacheStore interface {
	GetLatestResult(sessionID, category, resource, scene string) (storage.CacheEntry, error)
	ListRecentResults(limit int) ([]storage.CacheEntry, error)
}

type Deps struct {
	Parser Parser
	Cache  CacheStore
	Token  string // empty disables bearer auth
}

type ParseRequest struct {
	ImageBase64 string       `json:"image_base64"`
	MimeType    string       `json:"mime_type"`
	Width       int          `json:"width"`
	Height      int          `json:"height"`
	SessionID   string       `json:"session_id"`
	Scene       string       `json:"scene"`
	Options     ParseOptions `json:"options"`
}

type ParseOptions struct {
	NeedNickname    bool `json:"need_nickname"`
	NeedSender      bool `json:"need_sender"`
	ForceTwoColumns bool `json:"force_two_columns"`
}

type ParseResponse struct {
	Code      int                          `json:"code"`
	Strategy  string                       `json:"strategy"`
	Model     string                       `json:"model"`
	ElapsedMs int64                        `json:"elapsed_ms"`
	Cost      float64                      `json:"cost"`
	Result    screenshot.ParsedScreenshot `json:"result"`
}

func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		r.Post("/v1/parse", handleParse(deps))
		r.Get("/v1/parse/cached", handleCachedParse(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleParse(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxParseBodySize)
		defer r.Body.Close()

		var req ParseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, screenshot.CodeImageInput, "invalid request body: %v", err)
			return
		}
		if req.ImageBase64 == "" {
			httpError(w, http.StatusBadRequest, screenshot.CodeImageInput, "image_base64 is required")
			return
		}

		out, err := deps.Parser.Parse(r.Context(), race.Input{
			ImageB64:  req.ImageBase64,
			MimeType:  req.MimeType,
			Width:     req.Width,
			Height:    req.Height,
			SessionID: req.SessionID,
			Scene:     req.Scene,
			Options: screenshot.ParseOptions{
				NeedNickname:    req.Options.NeedNickname,
				NeedSender:      req.Options.NeedSender,
				ForceTwoColumns: req.Options.ForceTwoColumns,
			},
		})
		if err != nil {
			writeParseError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ParseResponse{
			Code:      0,
			Strategy:  out.Strategy,
			Model:     out.Model,
			ElapsedMs: out.ElapsedMs,
			Cost:      out.Cost,
			Result:    out.Result,
		})
	}
}

func handleCachedParse(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		sessionID := q.Get("session_id")
		resource := q.Get("resource")
		if sessionID == "" || resource == "" {
			httpError(w, http.StatusBadRequest, screenshot.CodeImageInput, "session_id and resource are required")
			return
		}
		scene := q.Get("scene")
		if scene == "" {
			scene = race.DefaultScene
		}

		entry, err := deps.Cache.GetLatestResult(sessionID, race.CacheCategory, resource, scene)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, 0, "no cached result for this key")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, 0, "cache lookup failed: %v", err)
			return
		}

		var result json.RawMessage = []byte(entry.PayloadJSON)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"code":       0,
			"strategy":   entry.Strategy,
			"model":      entry.Model,
			"created_at": entry.CreatedAt,
			"result":     result,
		})
	}
}

// writeParseError maps domain errors onto the wire taxonomy: input problems
// are the caller's fault, everything else is an upstream/parse failure.
func writeParseError(w http.ResponseWriter, err error) {
	code := screenshot.Code(err)
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, screenshot.ErrImageInput):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	httpError(w, status, code, "%v", err)
}

func httpError(w http.ResponseWriter, status, code int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	})
}
