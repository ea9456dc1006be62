// Package gemini reads meter values from photographs with the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/septivank/meter-reading-service/internal/config"
	"github.com/septivank/meter-reading-service/internal/reading"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Prompt is sent along with every uploaded photograph.
const Prompt = "Return an integer corresponding to the measured value on the device if it is a water or gas meter; otherwise, return 'ERROR'."

// Client implements reading.Recognizer on top of the Gemini file and
// generative model APIs.
type Client struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

var _ reading.Recognizer = (*Client)(nil)

// NewClient creates a Gemini client and closes it when the app stops
func NewClient(lc fx.Lifecycle, logger *zap.Logger, cfg config.GeminiConfig) (*Client, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("[GEMINI] failed to create client: %w", err)
	}

	c := &Client{
		client: client,
		model:  cfg.Model,
		logger: logger,
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := client.Close(); err != nil {
				logger.Error("failed to close gemini client", zap.Error(err))
				return err
			}
			logger.Info("gemini client closed")
			return nil
		},
	})

	logger.Info("gemini client initialized", zap.String("model", cfg.Model))
	return c, nil
}

// Upload sends the file at path to the Gemini file store
func (c *Client) Upload(ctx context.Context, path, mediaType, displayName string) (reading.UploadedImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return reading.UploadedImage{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	file, err := c.client.UploadFile(ctx, "", f, &genai.UploadFileOptions{
		DisplayName: displayName,
		MIMEType:    mediaType,
	})
	if err != nil {
		return reading.UploadedImage{}, fmt.Errorf("failed to upload file: %w", err)
	}

	c.logger.Debug("image uploaded",
		zap.String("uri", file.URI),
		zap.String("display_name", displayName),
	)

	uploaded := reading.UploadedImage{URI: file.URI, MediaType: file.MIMEType}
	if uploaded.MediaType == "" {
		uploaded.MediaType = mediaType
	}
	return uploaded, nil
}

// Extract asks the model for the value displayed on the uploaded image
func (c *Client) Extract(ctx context.Context, image reading.UploadedImage) (string, error) {
	model := c.client.GenerativeModel(c.model)

	resp, err := model.GenerateContent(ctx,
		genai.FileData{MIMEType: image.MediaType, URI: image.URI},
		genai.Text(Prompt),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	// An empty answer reads as an inconclusive value, not a failure
	text := answerText(resp)
	if text == "" {
		c.logger.Warn("gemini returned no text", zap.String("uri", image.URI))
	}
	return text, nil
}

// answerText concatenates the text parts of the first candidate that has any
func answerText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		if sb.Len() > 0 {
			return sb.String()
		}
	}
	return ""
}
