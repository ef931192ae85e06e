package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/temcen/newsrank/internal/config"
)

const defaultHuggingFaceURL = "https://api-inference.huggingface.co/pipeline/feature-extraction/"

// HuggingFace calls the Inference API feature-extraction pipeline.
type HuggingFace struct {
	client     *http.Client
	baseURL    string
	model      string
	apiToken   string
	dimensions int
	batchSize  int
	logger     *logrus.Logger
}

func NewHuggingFace(cfg *config.EmbeddingConfig, logger *logrus.Logger) *HuggingFace {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultHuggingFaceURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	return &HuggingFace{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    baseURL,
		model:      cfg.Model,
		apiToken:   cfg.APIToken,
		dimensions: cfg.Dimensions,
		batchSize:  batchSize,
		logger:     logger,
	}
}

func (h *HuggingFace) Dimension() int {
	return h.dimensions
}

func (h *HuggingFace) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, h, text)
}

// EmbedBatch embeds texts in requests of at most batchSize inputs.
func (h *HuggingFace) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += h.batchSize {
		end := start + h.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vectors, err := h.request(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (h *HuggingFace) request(ctx context.Context, texts []string) ([][]float32, error) {
	payload := map[string]interface{}{
		"inputs":  texts,
		"options": map[string]bool{"wait_for_model": true},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+h.model, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiToken)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(vectors) == 0 {
		return nil, ErrEmptyResponse
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: sent %d, got %d", ErrUnexpectedCount, len(texts), len(vectors))
	}
	for i, v := range vectors {
		if h.dimensions > 0 && len(v) != h.dimensions {
			return nil, fmt.Errorf("%w: vector %d has %d, want %d", ErrDimensionMismatch, i, len(v), h.dimensions)
		}
	}

	h.logger.WithFields(logrus.Fields{
		"model": h.model,
		"count": len(vectors),
	}).Debug("Embedded batch")

	return vectors, nil
}
