package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
	"github.com/kirillkom/jeonse-legal-assistant/internal/infrastructure/resilience"
)

const scrollPageSize = 256

// Client reads one Qdrant collection over the REST API. Points are expected
// in the layout written by LangChain: the text under "page_content" (or
// "text") and the remaining attributes under "metadata".
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	probeMu    sync.Mutex
	probed     bool
	vectorSize int
}

type Option func(*Client)

func WithExecutor(executor *resilience.Executor) Option {
	return func(c *Client) {
		c.executor = executor
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

func New(baseURL, collection string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Collection() string {
	return c.collection
}

type point struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.Document, error) {
	reqBody := map[string]any{
		"vector":       queryVector,
		"limit":        limit,
		"with_payload": true,
	}

	var resp struct {
		Result []point `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/points/search", reqBody, &resp, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.Document, 0, len(resp.Result))
	for _, p := range resp.Result {
		out = append(out, toDocument(p).WithScore(p.Score))
	}
	return out, nil
}

// ScrollAll pages through the whole collection.
func (c *Client) ScrollAll(ctx context.Context) ([]domain.Document, error) {
	out := make([]domain.Document, 0, scrollPageSize)
	var offset any
	for {
		reqBody := map[string]any{
			"limit":        scrollPageSize,
			"with_payload": true,
			"with_vector":  false,
		}
		if offset != nil {
			reqBody["offset"] = offset
		}

		var resp struct {
			Result struct {
				Points         []point `json:"points"`
				NextPageOffset any     `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := c.do(ctx, http.MethodPost, "/points/scroll", reqBody, &resp, "scroll"); err != nil {
			return nil, err
		}
		for _, p := range resp.Result.Points {
			out = append(out, toDocument(p))
		}
		if resp.Result.NextPageOffset == nil || len(resp.Result.Points) == 0 {
			return out, nil
		}
		offset = resp.Result.NextPageOffset
	}
}

func (c *Client) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, "/points/count", map[string]any{"exact": true}, &resp, "count"); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// VectorSize reads the collection config. The first successful answer is
// kept for the lifetime of the client.
func (c *Client) VectorSize(ctx context.Context) (int, error) {
	c.probeMu.Lock()
	if c.probed {
		size := c.vectorSize
		c.probeMu.Unlock()
		return size, nil
	}
	c.probeMu.Unlock()

	var resp struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors json.RawMessage `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := c.do(ctx, http.MethodGet, "", nil, &resp, "collection info"); err != nil {
		return 0, err
	}
	size, err := parseVectorSize(resp.Result.Config.Params.Vectors)
	if err != nil {
		return 0, fmt.Errorf("qdrant collection %s: %w", c.collection, err)
	}

	c.probeMu.Lock()
	c.probed = true
	c.vectorSize = size
	c.probeMu.Unlock()
	return size, nil
}

// parseVectorSize accepts both the unnamed ({"size":768}) and the named
// ({"dense":{"size":768}}) vector layouts; with several named vectors the
// result is ambiguous and rejected.
func parseVectorSize(raw json.RawMessage) (int, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing vectors config")
	}
	var single struct {
		Size int `json:"size"`
	}
	if err := json.Unmarshal(raw, &single); err == nil && single.Size > 0 {
		return single.Size, nil
	}
	var named map[string]struct {
		Size int `json:"size"`
	}
	if err := json.Unmarshal(raw, &named); err != nil {
		return 0, fmt.Errorf("decode vectors config: %w", err)
	}
	if len(named) != 1 {
		return 0, fmt.Errorf("expected one vector config, got %d", len(named))
	}
	for _, v := range named {
		if v.Size > 0 {
			return v.Size, nil
		}
	}
	return 0, fmt.Errorf("vector size not set")
}

func (c *Client) do(ctx context.Context, method, path string, payload any, out any, operation string) error {
	err := c.executor.Execute(ctx, "qdrant."+operation, func(ctx context.Context) error {
		return c.roundTrip(ctx, method, path, payload, out, operation)
	}, classifyQdrantError)
	return wrapTemporaryIfNeeded("qdrant "+operation, err)
}

func (c *Client) roundTrip(ctx context.Context, method, path string, payload any, out any, operation string) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s body: %w", operation, err)
		}
		body = bytes.NewReader(raw)
	}

	url := fmt.Sprintf("%s/collections/%s%s", c.baseURL, c.collection, path)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{Operation: operation, StatusCode: resp.StatusCode, Status: resp.Status, Body: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func toDocument(p point) domain.Document {
	content := getStringPayload(p.Payload, "page_content")
	if content == "" {
		content = getStringPayload(p.Payload, "text")
	}

	var metadata map[string]any
	if nested, ok := p.Payload["metadata"].(map[string]any); ok {
		metadata = nested
	} else {
		metadata = make(map[string]any, len(p.Payload))
		for k, v := range p.Payload {
			if k == "page_content" || k == "text" {
				continue
			}
			metadata[k] = v
		}
	}
	return domain.NewDocument(pointID(p.ID), content, metadata)
}

func pointID(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
