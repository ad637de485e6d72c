// Package llm is a small client for OpenAI-compatible chat completion servers.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dbddv01/MicroGptSequence/internal/logging"
	"github.com/rs/zerolog"
)

// DefaultURL is the chat completion endpoint of a local llama.cpp style server.
const DefaultURL = "http://localhost:8080/v1/chat/completions"

const defaultTimeout = 120 * time.Second

// Client sends single-turn prompts to a chat completion endpoint.
type Client struct {
	URL          string
	Model        string
	SystemPrompt string
	Temperature  *float64
	Client       *http.Client

	logger zerolog.Logger
}

// Options configures a Client.
type Options struct {
	URL          string
	Model        string
	SystemPrompt string
	Temperature  *float64
	Timeout      time.Duration
}

// NewClient constructs a client with defaults applied.
func NewClient(opts Options) *Client {
	url := strings.TrimSpace(opts.URL)
	if url == "" {
		url = DefaultURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		URL:          url,
		Model:        opts.Model,
		SystemPrompt: opts.SystemPrompt,
		Temperature:  opts.Temperature,
		Client:       &http.Client{Timeout: timeout},
		logger:       logging.Component("llm"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends prompt as a user message and returns the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if c == nil || strings.TrimSpace(c.URL) == "" {
		return "", errors.New("llm endpoint is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	payload := chatRequest{Model: c.Model, Temperature: c.Temperature}
	if c.SystemPrompt != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: c.SystemPrompt})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: prompt})

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("call llm endpoint: %w", err)
	}
	defer resp.Body.Close()

	data, err := readResponseBody(resp)
	if err != nil {
		return "", err
	}

	var decoded chatResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("chat response has no choices")
	}

	c.logger.Debug().
		Int("prompt_len", len(prompt)).
		Dur("elapsed", time.Since(started)).
		Msg("completion received")
	return decoded.Choices[0].Message.Content, nil
}

func (c *Client) httpClient() *http.Client {
	if c.Client == nil {
		c.Client = &http.Client{Timeout: defaultTimeout}
	}
	return c.Client
}

func readResponseBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read llm response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet := strings.TrimSpace(string(body))
		if snippet == "" {
			snippet = resp.Status
		}
		return nil, fmt.Errorf("llm request failed (%s): %s", resp.Status, snippet)
	}
	return body, nil
}
