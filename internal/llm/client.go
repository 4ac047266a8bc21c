package llm

import (
	"context"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/abbasKakoolvand/OKR-analyze/internal/metrics"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/circuitbreaker"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/config"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/logger"
	"github.com/abbasKakoolvand/OKR-analyze/pkg/retry"
)

type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	seed        int
	maxTokens   int
	timeout     time.Duration
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	// Temperature and Seed fall back to the client defaults when nil.
	Temperature *float32
	Seed        *int
	MaxTokens   int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

func NewClient(cfg config.LLMConfig) (*Client, error) {
	var clientConfig openai.ClientConfig
	switch cfg.Provider {
	case "azure":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("azure provider requires an endpoint")
		}
		clientConfig = openai.DefaultAzureConfig(cfg.APIKey, cfg.Endpoint)
		clientConfig.APIVersion = cfg.APIVersion
		deployment := cfg.Model
		clientConfig.AzureModelMapperFunc = func(string) string { return deployment }
	case "openai", "":
		clientConfig = openai.DefaultConfig(cfg.APIKey)
		if cfg.Endpoint != "" {
			clientConfig.BaseURL = cfg.Endpoint
		}
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}

	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	log := logger.Named("llm")

	halfOpen := cfg.HalfOpenRequests
	if halfOpen < 1 {
		halfOpen = 1
	}

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      uint32(halfOpen),
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		IsFailure:        IsTransient,
		OnStateChange: func(name, _, to string) {
			open := 0.0
			if to == "open" {
				open = 1
			}
			metrics.CircuitBreakerState.WithLabelValues(name).Set(open)
		},
		Logger: log,
	})

	retryConfig := retry.Config{
		MaxAttempts:    cfg.MaxRetries,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Retryable:      IsTransient,
		Logger:         log,
	}

	logger.Info("LLM client initialized",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Duration("timeout", timeout),
	)

	return &Client{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		seed:        cfg.Seed,
		maxTokens:   cfg.MaxTokens,
		timeout:     timeout,
		cb:          cb,
		retryConfig: retryConfig,
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// WithoutRetry returns a client sharing this one's connection and breaker that
// makes a single provider attempt per call, for callers with their own retry loop.
func (c *Client) WithoutRetry() *Client {
	clone := *c
	clone.retryConfig.MaxAttempts = 1
	return &clone
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	chatReq := c.chatRequest(req)
	chatReq.Messages = []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
	}

	resp, err := c.create(ctx, "complete", chatReq)
	if err != nil {
		return nil, err
	}

	return &CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Usage:   usageOf(resp),
	}, nil
}

func (c *Client) chatRequest(req CompletionRequest) openai.ChatCompletionRequest {
	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	// go-openai drops a zero temperature from the payload, which the API
	// reads as its default of 1.
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	seed := c.seed
	if req.Seed != nil {
		seed = *req.Seed
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	return openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		Seed:        &seed,
		MaxTokens:   maxTokens,
	}
}

// create runs one chat completion under the per-call timeout, the circuit
// breaker and the transient-error retry policy.
func (c *Client) create(ctx context.Context, operation string, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var result openai.ChatCompletionResponse
	start := time.Now()

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			resp, err := c.client.CreateChatCompletion(callCtx, req)
			if err != nil {
				return classifyError(err)
			}
			if len(resp.Choices) == 0 {
				return &ProviderError{Transient: true, Err: ErrEmptyCompletion}
			}

			result = resp
			return nil
		})
	})

	metrics.LLMLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.LLMRequests.WithLabelValues(operation, "error").Inc()
		logger.Warn("LLM completion failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
		if perr := classifyError(err); perr != nil {
			return result, perr
		}
		return result, err
	}

	metrics.LLMRequests.WithLabelValues(operation, "ok").Inc()
	metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(result.Usage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(result.Usage.CompletionTokens))

	logger.Debug("LLM completion generated",
		zap.String("operation", operation),
		zap.Int("prompt_tokens", result.Usage.PromptTokens),
		zap.Int("completion_tokens", result.Usage.CompletionTokens),
	)

	return result, nil
}

func usageOf(resp openai.ChatCompletionResponse) Usage {
	return Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
}
