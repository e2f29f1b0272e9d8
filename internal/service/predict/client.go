package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"time"

	"brickscan/internal/config"
	"brickscan/internal/dto"
)

const predictPath = "/api/predict"

// ErrDisabled is returned by Predict when no endpoint is configured.
var ErrDisabled = errors.New("prediction endpoint not configured")

// Client sends part crops to the BrickScan prediction API.
type Client struct {
	baseURL  string
	minScore float64
	topK     int
	http     *http.Client
}

// NewClient creates a client from the prediction settings in cfg.
// With an empty PredictionURL the client is disabled.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:  cfg.PredictionURL,
		minScore: cfg.PredictionMinScore,
		topK:     cfg.PredictionTopK,
		http: &http.Client{
			Timeout: time.Duration(cfg.PredictionTimeout) * time.Second,
		},
	}
}

// Enabled reports whether a prediction endpoint is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Predict uploads a JPEG crop and returns the filtered predictions, best first.
func (c *Client) Predict(ctx context.Context, jpeg []byte) ([]dto.PredictionResult, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", "part.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fw.Write(jpeg); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+predictPath, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prediction request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("prediction API returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	var results []dto.PredictionResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode predictions: %w", err)
	}

	return Filter(results, c.minScore, c.topK), nil
}

// Filter drops predictions scoring below minScore, orders the rest by
// descending score and keeps at most topK of them. topK <= 0 keeps all.
func Filter(results []dto.PredictionResult, minScore float64, topK int) []dto.PredictionResult {
	kept := make([]dto.PredictionResult, 0, len(results))
	for _, r := range results {
		if r.Label == "" || r.Score < minScore {
			continue
		}
		kept = append(kept, r)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})

	if topK > 0 && len(kept) > topK {
		kept = kept[:topK]
	}
	return kept
}
