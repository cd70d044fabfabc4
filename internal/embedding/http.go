package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/entropyguard/entropyguard/internal/core/domain"
	"github.com/entropyguard/entropyguard/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*HTTPEmbedding)(nil)

// HTTPEmbedding calls an OpenAI-compatible embeddings endpoint. The base
// URL is configurable so the same adapter serves OpenAI and self-hosted
// API-compatible servers.
type HTTPEmbedding struct {
	apiKey     string
	model      string
	baseURL    string
	dimensions int
	client     *http.Client
}

// NewHTTPEmbedding builds an HTTPEmbedding. dimensions is the model's
// known output width; the embedder trusts the server's response shape
// rather than truncating/padding against it.
func NewHTTPEmbedding(apiKey, model, baseURL string, dimensions int) *HTTPEmbedding {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if dimensions <= 0 {
		dimensions = defaultDimensions
	}
	return &HTTPEmbedding{
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		dimensions: dimensions,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

type embeddingRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	EncodingFormat string   `json:"encoding_format,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed generates one embedding per text and L2-normalizes every row;
// the backend's raw output is not assumed to already be normalized. A
// response row whose norm is near-zero becomes a nil Embedding (the
// degenerate-input sentinel).
func (e *HTTPEmbedding) Embed(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embeddingRequest{Input: texts, Model: e.model, EncodingFormat: "float"})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("embedding backend error: %s", parsed.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding backend returned status %d", resp.StatusCode)
	}

	out := make([]domain.Embedding, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		out[d.Index] = normalize(d.Embedding)
	}
	return out, nil
}

func normalize(v []float32) domain.Embedding {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq < 1e-12 {
		return nil
	}
	norm := math.Sqrt(sumSq)
	out := make(domain.Embedding, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func (e *HTTPEmbedding) Dimensions() int { return e.dimensions }
func (e *HTTPEmbedding) Model() string   { return e.model }

func (e *HTTPEmbedding) HealthCheck(ctx context.Context) error {
	_, err := e.Embed(ctx, []string{"health check"})
	return err
}

func (e *HTTPEmbedding) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
