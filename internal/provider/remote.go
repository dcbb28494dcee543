package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	maxRetries     = 3
	initialBackoff = 500 * time.Millisecond
)

// Client communicates with an OpenRouter-compatible chat completions API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	referer    string
	title      string
}

// NewClient creates a gateway client with the given API key.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		// Per-call deadlines come from the provider timeout budget.
		httpClient: &http.Client{Timeout: 0},
		referer:    "https://github.com/saladjay/ChatCoachService-sub002",
		title:      "chatparse",
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Usage    *usageOptions `json:"usage,omitempty"`
}

// usageOptions asks the gateway to include cost accounting in the response.
type usageOptions struct {
	Include bool `json:"include"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int     `json:"prompt_tokens"`
		CompletionTokens int     `json:"completion_tokens"`
		Cost             float64 `json:"cost"`
	} `json:"usage"`
}

// VisionChat sends one multimodal chat completion: a system prompt, and a
// user turn combining the instruction text with the screenshot as a data
// URL. Retries on HTTP 429 with exponential backoff.
func (c *Client) VisionChat(ctx context.Context, model, systemPrompt, userPrompt, imageB64, mimeType string) (CallResult, error) {
	if mimeType == "" {
		mimeType = "image/png"
	}
	req := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: userPrompt},
				{Type: "image_url", ImageURL: &imageRef{
					URL: fmt.Sprintf("data:%s;base64,%s", mimeType, imageB64),
				}},
			}},
		},
		Usage: &usageOptions{Include: true},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return CallResult{}, fmt.Errorf("marshaling request: %w", err)
	}

	var lastErr error
	for attempt := range maxRetries {
		res, err := c.doChat(ctx, body)
		if err == nil {
			return res, nil
		}

		if !isRateLimit(err) {
			return CallResult{}, err
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := time.Duration(float64(initialBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return CallResult{}, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return CallResult{}, fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

// rateLimitError is returned on HTTP 429.
type rateLimitError struct {
	status int
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited (HTTP %d)", e.status)
}

func isRateLimit(err error) bool {
	_, ok := err.(*rateLimitError)
	return ok
}

func (c *Client) doChat(ctx context.Context, body []byte) (CallResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return CallResult{}, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return CallResult{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return CallResult{}, &rateLimitError{status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return CallResult{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return CallResult{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return CallResult{}, fmt.Errorf("response has no choices")
	}

	return CallResult{
		Text:         decoded.Choices[0].Message.Content,
		Model:        decoded.Model,
		InputTokens:  decoded.Usage.PromptTokens,
		OutputTokens: decoded.Usage.CompletionTokens,
		Cost:         decoded.Usage.Cost,
	}, nil
}

// Ping verifies the gateway is reachable and the key is accepted.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", c.referer)
	req.Header.Set("X-Title", c.title)
}

// Remote is one strategy (e.g. "fast" or "premium") backed by a gateway
// model with its own timeout budget.
type Remote struct {
	strategy string
	model    string
	timeout  time.Duration
	client   *Client
}

// NewRemote creates a Remote provider for the given strategy and model.
func NewRemote(client *Client, strategy, model string, timeout time.Duration) *Remote {
	return &Remote{strategy: strategy, model: model, timeout: timeout, client: client}
}

func (r *Remote) Strategy() string       { return r.strategy }
func (r *Remote) Model() string          { return r.model }
func (r *Remote) Timeout() time.Duration { return r.timeout }

func (r *Remote) Call(ctx context.Context, systemPrompt, userPrompt, imageB64, mimeType string) (CallResult, error) {
	start := time.Now()
	res, err := r.client.VisionChat(ctx, r.model, systemPrompt, userPrompt, imageB64, mimeType)
	if err != nil {
		return CallResult{}, err
	}
	res.Strategy = r.strategy
	res.ElapsedMs = time.Since(start).Milliseconds()
	if res.Model == "" {
		res.Model = r.model
	}
	return res, nil
}

func (r *Remote) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}
