package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/motionclinic/casematch/internal/domain"
	"github.com/motionclinic/casematch/internal/engine"
	"github.com/motionclinic/casematch/internal/prompts"
)

// CaptionerService generates natural-language scan descriptions through an
// OpenAI-compatible chat completion API. It is only consulted on the
// terminal fallback tier, when no corpus data exists for a category.
type CaptionerService struct {
	client   *resty.Client
	model    string
	endpoint string
}

// CaptionerConfig holds configuration for the captioner service.
type CaptionerConfig struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}

// NewCaptionerService creates a new captioner service.
// Parameters:
//   - cfg: captioner configuration including provider, model, and API key.
// Returns:
//   - *CaptionerService: initialized captioner client wrapper.
func NewCaptionerService(cfg *CaptionerConfig) *CaptionerService {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(60 * time.Second)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	return &CaptionerService{
		client:   client,
		model:    cfg.Model,
		endpoint: baseURL + "/chat/completions",
	}
}

// GetModel returns the model name being used.
func (s *CaptionerService) GetModel() string {
	return s.model
}

// OpenAI-compatible chat completion request/response structures.
type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string for system, []interface{} for user with images
}

type chatTextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatImageContent struct {
	Type     string       `json:"type"`
	ImageURL chatImageURL `json:"image_url"`
}

type chatImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Caption describes a query for the caption fallback tier. Image queries
// get a visual description; text queries get a clinical restatement of the
// complaint.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - q: the query being evaluated.
// Returns:
//   - string: generated description.
//   - error: wraps domain.ErrCaption on API failure or empty output.
func (s *CaptionerService) Caption(ctx context.Context, q engine.Query) (string, error) {
	var userContent interface{}
	if len(q.Image) > 0 {
		mimeType := getMIMEType(q.ImageFormat)
		dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(q.Image))
		userContent = []interface{}{
			chatTextContent{Type: "text", Text: prompts.CaptionUserPrompt},
			chatImageContent{
				Type:     "image_url",
				ImageURL: chatImageURL{URL: dataURL, Detail: "auto"},
			},
		}
	} else {
		userContent = prompts.TextCaptionUserPrompt + q.Text
	}

	req := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompts.CaptionSystemPrompt},
			{Role: "user", Content: userContent},
		},
		MaxTokens: 300,
	}

	var resp chatResponse
	httpResp, err := s.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&resp).
		Post(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: caption API call failed: %v", domain.ErrCaption, err)
	}
	if httpResp.StatusCode() != 200 {
		if resp.Error != nil {
			return "", fmt.Errorf("%w: caption API: %s", domain.ErrCaption, resp.Error.Message)
		}
		return "", fmt.Errorf("%w: caption API: status %d", domain.ErrCaption, httpResp.StatusCode())
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: caption API returned no choices", domain.ErrCaption)
	}

	caption := strings.TrimSpace(resp.Choices[0].Message.Content)
	if caption == "" {
		return "", fmt.Errorf("%w: caption API returned empty content", domain.ErrCaption)
	}
	return caption, nil
}

// getMIMEType maps a format extension to its MIME type.
func getMIMEType(format string) string {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
