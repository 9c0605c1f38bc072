// Package embedding is a small VoyageAI client used to index snapshot
// blocks for semantic search.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	voyageAPIURL     = "https://api.voyageai.com/v1/embeddings"
	defaultModel     = "voyage-3-lite"
	defaultBatchSize = 128
)

// Input types accepted by the API.
const (
	InputDocument = "document"
	InputQuery    = "query"
)

// Client is a lightweight VoyageAI embeddings HTTP client.
type Client struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithModel overrides the default "voyage-3-lite" model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient sets the HTTP client. The default is http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithURL points the client at another embeddings endpoint.
func WithURL(u string) Option {
	return func(c *Client) { c.url = u }
}

// NewClient creates a VoyageAI embedding client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		model:      defaultModel,
		url:        voyageAPIURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the embedding model in use.
func (c *Client) Model() string {
	return c.model
}

type embeddingRequest struct {
	Input     []string `json:"input"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type voyageErrorResponse struct {
	Detail string `json:"detail"`
}

// Embed embeds texts in a single request. inputType is InputDocument for
// stored content or InputQuery for search queries.
func (c *Client) Embed(ctx context.Context, texts []string, inputType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	bodyBytes, err := json.Marshal(embeddingRequest{
		Input:     texts,
		Model:     c.model,
		InputType: inputType,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var voyageErr voyageErrorResponse
		_ = json.Unmarshal(respBody, &voyageErr)
		return nil, fmt.Errorf("voyage API %d: %s", resp.StatusCode, voyageErr.Detail)
	}

	var embResp embeddingResponse
	if err := json.Unmarshal(respBody, &embResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	// The API returns vectors tagged with their input index.
	embeddings := make([][]float32, len(texts))
	for _, d := range embResp.Data {
		if d.Index >= 0 && d.Index < len(embeddings) {
			embeddings[d.Index] = d.Embedding
		}
	}
	return embeddings, nil
}

// ProgressFunc is called after each batch completes during EmbedBatch.
// batchIndex is 1-based.
type ProgressFunc func(batchIndex, totalBatches int)

// EmbedBatch calls Embed on consecutive slices of at most batchSize texts
// and returns the vectors in input order. onProgress may be nil.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, inputType string, batchSize int, onProgress ProgressFunc) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	totalBatches := (len(texts) + batchSize - 1) / batchSize

	all := make([][]float32, 0, len(texts))
	for i, batchIdx := 0, 1; i < len(texts); i, batchIdx = i+batchSize, batchIdx+1 {
		end := min(i+batchSize, len(texts))

		batch, err := c.Embed(ctx, texts[i:end], inputType)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", i, end, err)
		}
		all = append(all, batch...)

		if onProgress != nil {
			onProgress(batchIdx, totalBatches)
		}
	}
	return all, nil
}
