// Package httpservice implements memory.Service against the external
// memory API, using the same plain net/http client idiom as crm.Client
// rather than a generic REST client library.
package httpservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nexacrm/coordinator/memory"
)

const defaultTimeout = 3 * time.Second

// Service calls the external memory API's recall and synthesize endpoints.
type Service struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Options configures a Service.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// New builds a Service. httpClient may be nil, in which case a default
// client with a 3s per-call timeout is used, matching the recall budget
// the memory.Client wrapper enforces independently.
func New(opts Options) *Service {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Service{baseURL: opts.BaseURL, apiKey: opts.APIKey, httpClient: httpClient}
}

type recallRequest struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

type recallResponse struct {
	Items []struct {
		Text      string         `json:"text"`
		Relevance float64        `json:"relevance"`
		Metadata  map[string]any `json:"metadata"`
	} `json:"items"`
}

// Recall fetches the recalled memory items relevant to query.
func (s *Service) Recall(ctx context.Context, sessionID, query string) ([]memory.Item, error) {
	var out recallResponse
	if err := s.post(ctx, "/memory/recall", recallRequest{SessionID: sessionID, Query: query}, &out); err != nil {
		return nil, err
	}
	items := make([]memory.Item, 0, len(out.Items))
	for _, it := range out.Items {
		items = append(items, memory.Item{Text: it.Text, Relevance: it.Relevance, Metadata: it.Metadata})
	}
	return items, nil
}

type synthesizeRequest struct {
	SessionID string            `json:"session_id"`
	Messages  []synthesizeTurn  `json:"messages"`
}

type synthesizeTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Synthesize submits the turn's messages for background memory extraction.
func (s *Service) Synthesize(ctx context.Context, sessionID string, messages []memory.Message) error {
	turns := make([]synthesizeTurn, 0, len(messages))
	for _, m := range messages {
		turns = append(turns, synthesizeTurn{Role: m.Role, Text: m.Text})
	}
	return s.post(ctx, "/memory/synthesize", synthesizeRequest{SessionID: sessionID, Messages: turns}, nil)
}

func (s *Service) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("memory: request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("memory: %s returned %d: %s", path, resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
