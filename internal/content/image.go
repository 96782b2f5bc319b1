package content

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"

	"github.com/jackzampolin/memoir/internal/normalize"
	"github.com/jackzampolin/memoir/internal/types"
)

// GenerateImage renders prompt through the images API. Base64 results are
// returned as raw bytes in Data; the persistence layer encodes them.
func (s *Service) GenerateImage(ctx context.Context, prompt string) (*types.MediaResult, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, fmt.Errorf("image prompt is required")
	}
	if !s.configured {
		return nil, ErrNotConfigured
	}

	params := openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModel(s.imageModel),
	}
	if strings.HasPrefix(s.imageModel, "dall-e") {
		params.ResponseFormat = openai.ImageGenerateParamsResponseFormatB64JSON
	}

	var resp *openai.ImagesResponse
	err := s.do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = s.client.Images.Generate(ctx, params)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("image generation failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, ErrEmptyResponse
	}

	img := resp.Data[0]
	result := &types.MediaResult{
		OriginatingPrompt: prompt,
		Posts:             []types.Post{},
	}
	switch {
	case img.B64JSON != "":
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
		result.Data = data
		result.ContentType = normalize.SniffSignature(data)
		if result.ContentType == "" {
			result.ContentType = "image/png"
		}
	case img.URL != "":
		result.MediaURL = img.URL
	default:
		return nil, ErrEmptyResponse
	}

	s.logger.Info("studio image generated", "model", s.imageModel, "bytes", len(result.Data))
	return result, nil
}
