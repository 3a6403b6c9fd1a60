package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rcliao/studymap/internal/logger"
	"github.com/rcliao/studymap/internal/model"
)

// OpenAIConfig configures OpenAIClient.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	// Backoff is the first retry delay; it doubles per attempt.
	Backoff time.Duration
	// RequestsPerSecond throttles outbound calls. Zero disables throttling.
	RequestsPerSecond float64
	// PromptBudget caps the source text sent per request, in tokens. Zero
	// sends everything.
	PromptBudget int
	Temperature  *float64
	Importance   model.ImportanceRange
}

// DefaultOpenAIConfig returns the defaults used when a field is unset.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:      "https://api.openai.com",
		Model:        "gpt-4o-mini",
		Timeout:      180 * time.Second,
		MaxRetries:   3,
		Backoff:      time.Second,
		PromptBudget: 24000,
		Importance:   model.DefaultImportanceRange,
	}
}

// OpenAIClient implements Generator with the OpenAI Responses API and
// json_schema structured output.
type OpenAIClient struct {
	log        *logger.Logger
	cfg        OpenAIConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewOpenAIClient validates cfg and builds a client.
func NewOpenAIClient(cfg OpenAIConfig, log *logger.Logger) (*OpenAIClient, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	def := DefaultOpenAIConfig()
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	if !cfg.Importance.Valid() || cfg.Importance == (model.ImportanceRange{}) {
		cfg.Importance = def.Importance
	}
	if log == nil {
		log = logger.Nop()
	}

	c := &OpenAIClient{
		log:        log.With("service", "OpenAIClient", "model", cfg.Model),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

type inputMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type responsesRequest struct {
	Model string         `json:"model"`
	Input []inputMessage `json:"input"`
	Text  struct {
		Format map[string]any `json:"format,omitempty"`
	} `json:"text,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text,omitempty"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
}

// outputText joins the assistant's output_text parts. A refusal part is
// returned separately.
func outputText(resp responsesResponse) (text, refusal string) {
	var out strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, c := range item.Content {
			switch c.Type {
			case "output_text":
				out.WriteString(c.Text)
			case "refusal":
				refusal = c.Refusal
			}
		}
	}
	return out.String(), refusal
}

type httpError struct {
	StatusCode int
	Body       string
	retryAfter time.Duration
}

func (e *httpError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *httpError) overloaded() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return strings.Contains(strings.ToLower(e.Body), "overloaded")
}

func (e *httpError) retryable() bool {
	return e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// generateJSON sends one structured-output request and decodes the result
// into out.
func (c *OpenAIClient) generateJSON(ctx context.Context, schemaName string, schema map[string]any, input []inputMessage, out any) error {
	req := responsesRequest{Model: c.cfg.Model, Input: input, Temperature: c.cfg.Temperature}
	req.Text.Format = map[string]any{
		"type":   "json_schema",
		"name":   schemaName,
		"schema": schema,
		"strict": true,
	}

	var resp responsesResponse
	if err := c.do(ctx, "/v1/responses", &req, &resp); err != nil {
		return err
	}
	text, refusal := outputText(resp)
	if refusal != "" {
		return fmt.Errorf("%w: model refused: %s", ErrMalformedResponse, refusal)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: no output_text in response", ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		c.log.Warn("structured output did not decode", "schema", schemaName, "error", err)
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func (c *OpenAIClient) do(ctx context.Context, path string, body, out any) error {
	backoff := c.cfg.Backoff
	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		raw, err := c.doOnce(ctx, path, body)
		if err == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("%w: decode response: %v", ErrMalformedResponse, uErr)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var he *httpError
		isHTTP := errors.As(err, &he)
		retryable := !isHTTP || he.retryable()
		if !retryable || attempt >= c.cfg.MaxRetries {
			if !isHTTP || he.overloaded() {
				return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
			}
			return err
		}

		sleepFor := backoff
		if isHTTP && he.retryAfter > 0 {
			sleepFor = he.retryAfter
		}
		if sleepFor > 10*time.Second {
			sleepFor = 10 * time.Second
		}
		sleepFor = jitter(sleepFor)

		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.cfg.MaxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}
}

func (c *OpenAIClient) doOnce(ctx context.Context, path string, body any) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		he := &httpError{StatusCode: resp.StatusCode, Body: truncate(string(raw), 512)}
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				he.retryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, he
	}
	return raw, nil
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delta := float64(base) * 0.2
	return time.Duration(float64(base) - delta + rand.Float64()*2*delta)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
