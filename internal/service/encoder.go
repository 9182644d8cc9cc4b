package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/motionclinic/casematch/internal/domain"
	"github.com/motionclinic/casematch/internal/engine"
	"golang.org/x/image/draw"
)

const encoderInputSize = 224

// EncoderService generates fixed-dimension embeddings for text and images
// through a Jina-compatible multimodal embedding API. Outputs are
// unit-normalized before they reach the index, so inner product equals
// cosine similarity downstream.
type EncoderService struct {
	client     *resty.Client
	endpoint   string
	model      string
	dimensions int
}

// EncoderConfig holds configuration for the encoder service.
type EncoderConfig struct {
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
}

// NewEncoderService creates a new encoder service.
// Parameters:
//   - cfg: encoder configuration including model and API key.
// Returns:
//   - *EncoderService: initialized encoder client wrapper.
func NewEncoderService(cfg *EncoderConfig) *EncoderService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(60 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.jina.ai/v1"
	}

	return &EncoderService{
		client:     client,
		endpoint:   baseURL + "/embeddings",
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// GetModel returns the model name being used.
func (s *EncoderService) GetModel() string {
	return s.model
}

// Dimensions returns the configured embedding dimension.
func (s *EncoderService) Dimensions() int {
	return s.dimensions
}

// Embedding API request/response structures. Input items carry either a
// text or an image field, matching the multimodal endpoint contract.
type embedRequest struct {
	Model      string       `json:"model"`
	Dimensions int          `json:"dimensions,omitempty"`
	Input      []embedInput `json:"input"`
}

type embedInput struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"` // base64, no data URL prefix
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Detail string `json:"detail,omitempty"`
}

// EncodeText embeds a free-text query.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - text: query text.
// Returns:
//   - []float32: unit-normalized embedding.
//   - error: wraps domain.ErrEncoding on any failure.
func (s *EncoderService) EncodeText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.embed(ctx, []embedInput{{Text: text}})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EncodeImage embeds a scan image. The image is decoded, resampled to the
// encoder's expected input size, and re-encoded before upload.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - data: raw image bytes (jpeg or png).
//   - format: format hint, unused when the payload self-describes.
// Returns:
//   - []float32: unit-normalized embedding.
//   - error: wraps domain.ErrEncoding on unreadable input or API failure.
func (s *EncoderService) EncodeImage(ctx context.Context, data []byte, format string) ([]float32, error) {
	_ = format
	prepared, err := prepareImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEncoding, err)
	}

	vectors, err := s.embed(ctx, []embedInput{{Image: base64.StdEncoding.EncodeToString(prepared)}})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds multiple texts in one call, used during ingestion.
func (s *EncoderService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	inputs := make([]embedInput, len(texts))
	for i, t := range texts {
		inputs[i] = embedInput{Text: t}
	}
	return s.embed(ctx, inputs)
}

// embed sends one embedding request and returns normalized vectors in
// input order.
func (s *EncoderService) embed(ctx context.Context, inputs []embedInput) ([][]float32, error) {
	req := embedRequest{
		Model:      s.model,
		Dimensions: s.dimensions,
		Input:      inputs,
	}

	var resp embedResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding API call failed: %v", domain.ErrEncoding, err)
	}
	if httpResp.StatusCode() != 200 {
		if resp.Detail != "" {
			return nil, fmt.Errorf("%w: embedding API: %s", domain.ErrEncoding, resp.Detail)
		}
		return nil, fmt.Errorf("%w: embedding API: status %d", domain.ErrEncoding, httpResp.StatusCode())
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", domain.ErrEncoding, len(inputs), len(resp.Data))
	}

	vectors := make([][]float32, len(inputs))
	for _, item := range resp.Data {
		if item.Index < len(vectors) {
			vectors[item.Index] = engine.Normalize(item.Embedding)
		}
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: missing embedding at index %d", domain.ErrEncoding, i)
		}
	}

	return vectors, nil
}

// prepareImage decodes, resamples to a square encoderInputSize frame, and
// re-encodes as JPEG.
func prepareImage(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, encoderInputSize, encoderInputSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}
