package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/saladjay/ChatCoachService-sub002/internal/race"
	"github.com/saladjay/ChatCoachService-sub002/internal/screenshot"
	"github.com/saladjay/ChatCoachService-sub002/internal/storage"
)

// --- mocks ---

type mockParser struct {
	out      race.Outcome
	err      error
	gotInput race.Input
}

func (m *mockParser) Parse(_ context.Context, in race.Input) (race.Outcome, error) {
	m.gotInput = in
	return m.out, m.err
}

type mockCache struct {
	entry  storage.CacheEntry
	err    error
	recent []storage.CacheEntry
}

func (m *mockCache) GetLatestResult(_, _, _, _ string) (storage.CacheEntry, error) {
	return m.entry, m.err
}

func (m *mockCache) ListRecentResults(int) ([]storage.CacheEntry, error) {
	return m.recent, nil
}

func parsedFixture() race.Outcome {
	return race.Outcome{
		Strategy:  "fast",
		Model:     "mock/fast",
		ElapsedMs: 42,
		Result: screenshot.ParsedScreenshot{
			Bubbles: []screenshot.ChatBubble{
				{ID: "b0", Text: "hi", Sender: screenshot.SenderOther, Column: screenshot.ColumnLeft, Confidence: 0.5},
			},
		},
	}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errCode(t *testing.T, rec *httptest.ResponseRecorder) int {
	t.Helper()
	var envelope struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("error envelope not JSON: %v (%s)", err, rec.Body.String())
	}
	return envelope.Error.Code
}

// --- tests ---

func TestHealth(t *testing.T) {
	h := NewHandler(Deps{Parser: &mockParser{}, Cache: &mockCache{}})
	rec := doJSON(t, h, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestParse_Success(t *testing.T) {
	p := &mockParser{out: parsedFixture()}
	h := NewHandler(Deps{Parser: p, Cache: &mockCache{}})

	rec := doJSON(t, h, http.MethodPost, "/v1/parse", ParseRequest{
		ImageBase64: "aW1n",
		MimeType:    "image/png",
		Width:       1000,
		Height:      800,
		SessionID:   "sess-1",
		Options:     ParseOptions{NeedSender: true},
	}, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp ParseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	if resp.Code != 0 || resp.Strategy != "fast" || len(resp.Result.Bubbles) != 1 {
		t.Errorf("response = %+v", resp)
	}

	if p.gotInput.SessionID != "sess-1" || !p.gotInput.Options.NeedSender {
		t.Errorf("parser input = %+v", p.gotInput)
	}
}

func TestParse_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"image input", fmt.Errorf("%w: dimensions 0x0", screenshot.ErrImageInput), http.StatusBadRequest, 1001},
		{"no valid result", screenshot.ErrNoValidResult, http.StatusBadGateway, 1002},
		{"missing field", fmt.Errorf("%w: bbox", screenshot.ErrMissingField), http.StatusBadGateway, 1003},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(Deps{Parser: &mockParser{err: tc.err}, Cache: &mockCache{}})
			rec := doJSON(t, h, http.MethodPost, "/v1/parse", ParseRequest{
				ImageBase64: "aW1n", Width: 100, Height: 100,
			}, nil)
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if got := errCode(t, rec); got != tc.wantCode {
				t.Errorf("error code = %d, want %d", got, tc.wantCode)
			}
		})
	}
}

func TestParse_MissingImage(t *testing.T) {
	h := NewHandler(Deps{Parser: &mockParser{}, Cache: &mockCache{}})
	rec := doJSON(t, h, http.MethodPost, "/v1/parse", ParseRequest{Width: 100, Height: 100}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if got := errCode(t, rec); got != 1001 {
		t.Errorf("error code = %d, want 1001", got)
	}
}

func TestParse_InvalidBody(t *testing.T) {
	h := NewHandler(Deps{Parser: &mockParser{}, Cache: &mockCache{}})
	req := httptest.NewRequest(http.MethodPost, "/v1/parse", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCachedParse(t *testing.T) {
	cache := &mockCache{entry: storage.CacheEntry{
		SessionID:   "sess-1",
		Strategy:    "premium",
		Model:       "mock/premium",
		PayloadJSON: `{"bubbles":[]}`,
		CreatedAt:   time.Now().UTC(),
	}}
	h := NewHandler(Deps{Parser: &mockParser{}, Cache: cache})

	rec := doJSON(t, h, http.MethodGet, "/v1/parse/cached?session_id=sess-1&resource=abc", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Code     int             `json:"code"`
		Strategy string          `json:"strategy"`
		Result   json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	if resp.Strategy != "premium" || string(resp.Result) != `{"bubbles":[]}` {
		t.Errorf("response = %+v", resp)
	}
}

func TestCachedParse_NotFound(t *testing.T) {
	h := NewHandler(Deps{Parser: &mockParser{}, Cache: &mockCache{err: storage.ErrNotFound}})
	rec := doJSON(t, h, http.MethodGet, "/v1/parse/cached?session_id=s&resource=r", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestCachedParse_MissingParams(t *testing.T) {
	h := NewHandler(Deps{Parser: &mockParser{}, Cache: &mockCache{}})
	rec := doJSON(t, h, http.MethodGet, "/v1/parse/cached", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestBearerAuth(t *testing.T) {
	h := NewHandler(Deps{Parser: &mockParser{out: parsedFixture()}, Cache: &mockCache{}, Token: "secret"})

	body := ParseRequest{ImageBase64: "aW1n", Width: 100, Height: 100}

	rec := doJSON(t, h, http.MethodPost, "/v1/parse", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/parse", body, map[string]string{"Authorization": "Bearer wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/parse", body, map[string]string{"Authorization": "Bearer secret"})
	if rec.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200", rec.Code)
	}

	// Health stays open regardless of token config.
	rec = doJSON(t, h, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("health: status = %d, want 200", rec.Code)
	}
}
