package editorsession

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider is an ExternalStreamer backed by the real OpenAI chat
// completion API, adapted from llm.OpenAIAdapter's retry/backoff
// streaming loop to this engine's one-chunk-at-a-time completion
// contract instead of a multi-turn chat conversation.
type OpenAIProvider struct {
	client *openai.Client

	Model          string
	Timeout        time.Duration
	MaxRetries     int
	RetryDelayBase time.Duration
}

// NewOpenAIProvider builds a provider for the given API key and model.
// An empty baseURL uses OpenAI's default endpoint; a non-empty one
// points at a compatible gateway, matching llm.NewOpenAIAdapter's
// BaseURL override.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	client := openai.NewClient(apiKey)
	if baseURL != "" {
		cfg := openai.DefaultConfig(apiKey)
		cfg.BaseURL = baseURL
		client = openai.NewClientWithConfig(cfg)
	}
	return &OpenAIProvider{
		client:         client,
		Model:          model,
		Timeout:        300 * time.Second,
		MaxRetries:     3,
		RetryDelayBase: time.Second,
	}
}

func (p *OpenAIProvider) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(p.RetryDelayBase) * math.Pow(2, float64(attempt)))
	if max := 30 * time.Second; delay > max {
		delay = max
	}
	return delay
}

func isRetryableCompletionError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	for _, marker := range []string{
		"context deadline exceeded", "connection refused", "connection reset",
		"no such host", "rate limit", "429", "500", "502", "503", "504",
	} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// Stream satisfies ExternalStreamer: it sends prompt as a single user
// message and relays the model's streamed deltas as ExternalChunks,
// retrying the request (not individual deltas) on a retryable error.
func (p *OpenAIProvider) Stream(ctx context.Context, prompt string, chunks chan<- ExternalChunk) error {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		attempts = attempt + 1
		timeoutCtx, cancel := context.WithTimeout(ctx, p.Timeout)

		stream, err := p.client.CreateChatCompletionStream(timeoutCtx, openai.ChatCompletionRequest{
			Model: p.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Stream: true,
		})
		if err != nil {
			cancel()
			lastErr = err
			if !isRetryableCompletionError(err) || attempt == p.MaxRetries {
				break
			}
			if !sleepOrDone(ctx, p.backoff(attempt)) {
				return ctx.Err()
			}
			continue
		}

		streamErr := relayOpenAIStream(timeoutCtx, stream, chunks)
		cancel()
		if streamErr == nil {
			return nil
		}
		lastErr = streamErr
		if !isRetryableCompletionError(streamErr) || attempt == p.MaxRetries {
			break
		}
		if !sleepOrDone(ctx, p.backoff(attempt)) {
			return ctx.Err()
		}
	}

	return fmt.Errorf("openai completion stream failed after %d attempts: %w", attempts, lastErr)
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

func relayOpenAIStream(ctx context.Context, stream *openai.ChatCompletionStream, chunks chan<- ExternalChunk) error {
	defer stream.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		resp, err := stream.Recv()
		if err == io.EOF {
			chunks <- ExternalChunk{Done: true}
			return nil
		}
		if err != nil {
			return fmt.Errorf("openai stream recv: %w", err)
		}
		if len(resp.Choices) > 0 {
			if content := resp.Choices[0].Delta.Content; content != "" {
				chunks <- ExternalChunk{Content: content}
			}
		}
	}
}
