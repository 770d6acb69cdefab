package external

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/MitraaBalasubramanian/rural-health-ai-aid/internal/domain"
)

// ErrMissingAPIKey is wrapped in ErrAnalysisUnavailable when no provider key is configured.
var ErrMissingAPIKey = errors.New("inference api key not configured")

// InferenceClient calls an OpenAI-compatible chat completions endpoint with a
// multimodal message. It makes exactly one attempt per call.
type InferenceClient struct {
	http    *resty.Client
	config  domain.InferenceConfig
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *logrus.Logger
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens"`
	Temperature    float64         `json:"temperature"`
	TopP           float64         `json:"top_p"`
	TopK           int             `json:"top_k"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// NewInferenceClient creates a new inference client
func NewInferenceClient(config domain.InferenceConfig, logger *logrus.Logger) *InferenceClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if config.APIKey != "" {
		httpClient.SetAuthToken(config.APIKey)
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	breakerCfg := config.Breaker
	if breakerCfg.MinRequests == 0 {
		breakerCfg.MinRequests = 3
	}
	if breakerCfg.FailureRatio == 0 {
		breakerCfg.FailureRatio = 0.6
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "inference",
		MaxRequests: breakerCfg.MaxRequests,
		Interval:    breakerCfg.Interval,
		Timeout:     breakerCfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= breakerCfg.MinRequests && failureRatio >= breakerCfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &InferenceClient{
		http:    httpClient,
		config:  config,
		breaker: breaker,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// AnalyzeImage sends the image and patient context to the model and returns its
// raw text output. Every failure is reported as domain.ErrAnalysisUnavailable.
func (c *InferenceClient) AnalyzeImage(ctx context.Context, image []byte, mimeType string, patient domain.PatientContext) (string, error) {
	if c.config.APIKey == "" {
		return "", unavailable(ErrMissingAPIKey)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return "", unavailable(fmt.Errorf("rate limit wait failed: %w", err))
	}

	req := c.buildRequest(image, mimeType, patient)

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.complete(ctx, req)
	})
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"model":    c.config.Model,
			"duration": time.Since(start).String(),
			"breaker":  c.breaker.State().String(),
			"error":    err.Error(),
		}).Warn("Inference request failed")
		return "", unavailable(err)
	}

	c.logger.WithFields(logrus.Fields{
		"model":    c.config.Model,
		"duration": time.Since(start).String(),
	}).Debug("Inference request completed")

	return result.(string), nil
}

// BreakerState reports the circuit breaker state for readiness checks.
func (c *InferenceClient) BreakerState() string {
	return c.breaker.State().String()
}

func (c *InferenceClient) buildRequest(image []byte, mimeType string, patient domain.PatientContext) chatRequest {
	req := chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemInstruction},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: BuildUserPrompt(patient)},
				{Type: "image_url", ImageURL: &imageURL{URL: ImageDataURL(image, mimeType)}},
			}},
		},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
		TopP:        c.config.TopP,
		TopK:        c.config.TopK,
	}
	if c.config.JSONMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return req
}

func (c *InferenceClient) complete(ctx context.Context, req chatRequest) (string, error) {
	var out chatResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("inference request failed: %w", err)
	}

	if resp.IsError() {
		return "", fmt.Errorf("inference service returned status %d: %s", resp.StatusCode(), truncate(resp.String(), 256))
	}

	if len(out.Choices) == 0 {
		return "", errors.New("inference response has no choices")
	}

	content := out.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", errors.New("inference response has empty content")
	}
	return content, nil
}

func unavailable(cause error) error {
	return fmt.Errorf("%w: %w", domain.ErrAnalysisUnavailable, cause)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
