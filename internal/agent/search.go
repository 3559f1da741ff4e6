package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/vampirenirmal/docagent/pkg/docagent/errors"
)

// SearchClient answers external retrieval queries through a Perplexity-style
// chat completion API. Without an API key every query reports not found, so
// the refinement loop degrades to internal context only.
type SearchClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
	usage      *Tracker
}

type SearchOption func(*SearchClient)

func WithSearchLogger(logger *slog.Logger) SearchOption {
	return func(c *SearchClient) {
		c.logger = logger.With("component", "search_client")
	}
}

func WithSearchUsage(tracker *Tracker) SearchOption {
	return func(c *SearchClient) {
		c.usage = tracker
	}
}

func WithSearchTimeout(timeout time.Duration) SearchOption {
	return func(c *SearchClient) {
		c.httpClient = &http.Client{Timeout: timeout}
	}
}

func NewSearchClient(apiKey, baseURL, model string, opts ...SearchOption) *SearchClient {
	c := &SearchClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     slog.Default().With("component", "search_client"),
		usage:      NewTracker(0, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *SearchClient) Search(ctx context.Context, query string) (string, error) {
	if c.apiKey == "" {
		return "", pkgerrors.ErrNotFound
	}

	requestID := fmt.Sprintf("search_%d", time.Now().UnixNano())

	requestBody := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": "Answer concisely for a software engineer writing documentation."},
			{"role": "user", "content": query},
		},
	}

	body, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	c.logger.Debug("sending search request",
		"request_id", requestID,
		"query_length", len(query))

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", requestError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("search API error",
			"request_id", requestID,
			"status_code", resp.StatusCode,
			"response_body", string(respBody))
		return "", statusError(resp.StatusCode, respBody)
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}

	if err := json.Unmarshal(respBody, &response); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}

	if len(response.Choices) == 0 || strings.TrimSpace(response.Choices[0].Message.Content) == "" {
		return "", pkgerrors.ErrNotFound
	}

	c.usage.Record(response.Usage.PromptTokens, response.Usage.CompletionTokens)

	c.logger.Info("search request completed",
		"request_id", requestID,
		"prompt_tokens", response.Usage.PromptTokens,
		"completion_tokens", response.Usage.CompletionTokens,
		"response_length", len(response.Choices[0].Message.Content))

	return response.Choices[0].Message.Content, nil
}
