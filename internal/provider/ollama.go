package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama is a local vision model (e.g. llava) reached over the Ollama
// HTTP API. Useful as a zero-cost race participant when a local instance
// is available.
type Ollama struct {
	strategy   string
	model      string
	timeout    time.Duration
	baseURL    string
	httpClient *http.Client
}

// NewOllama creates an Ollama provider targeting the given base URL.
func NewOllama(baseURL, strategy, model string, timeout time.Duration) *Ollama {
	return &Ollama{
		strategy: strategy,
		model:    model,
		timeout:  timeout,
		baseURL:  strings.TrimRight(baseURL, "/"),
		// Per-call deadlines come from the provider timeout budget.
		httpClient: &http.Client{Timeout: 0},
	}
}

func (o *Ollama) Strategy() string       { return o.strategy }
func (o *Ollama) Model() string          { return o.model }
func (o *Ollama) Timeout() time.Duration { return o.timeout }

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaChatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	PromptEvalCount int `json:"prompt_eval_count"`
	EvalCount       int `json:"eval_count"`
}

func (o *Ollama) Call(ctx context.Context, systemPrompt, userPrompt, imageB64, mimeType string) (CallResult, error) {
	start := time.Now()

	reqBody := ollamaChatRequest{
		Model: o.model,
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt, Images: []string{imageB64}},
		},
		Stream: false,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return CallResult{}, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return CallResult{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return CallResult{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return CallResult{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return CallResult{}, fmt.Errorf("decoding response: %w", err)
	}

	model := decoded.Model
	if model == "" {
		model = o.model
	}
	return CallResult{
		Strategy:     o.strategy,
		Text:         decoded.Message.Content,
		Model:        model,
		InputTokens:  decoded.PromptEvalCount,
		OutputTokens: decoded.EvalCount,
		Cost:         0, // local inference
		ElapsedMs:    time.Since(start).Milliseconds(),
	}, nil
}

// Ping checks the local Ollama instance is up.
func (o *Ollama) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/version", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting version: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
