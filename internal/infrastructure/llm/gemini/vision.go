package gemini

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/lake2804/ChatPDF/internal/core/domain"
)

const (
	captionPrompt = "Describe this image in detail. Include any charts, diagrams, tables or figures and what they show."
	ocrPrompt     = "Extract all text visible in this image. Return only the extracted text, preserving line breaks. If there is no text, return an empty response."
)

// Vision runs caption and OCR passes over images through the multimodal
// model.
type Vision struct {
	client *Client
}

func NewVision(client *Client) *Vision {
	return &Vision{client: client}
}

func (v *Vision) Caption(ctx context.Context, image []byte, mimeType string) (string, error) {
	return v.describe(ctx, image, mimeType, captionPrompt, 0.4, 1024, "caption")
}

func (v *Vision) OCR(ctx context.Context, image []byte, mimeType string) (string, error) {
	return v.describe(ctx, image, mimeType, ocrPrompt, 0.1, 2048, "ocr")
}

func (v *Vision) describe(
	ctx context.Context,
	image []byte,
	mimeType string,
	prompt string,
	temperature float64,
	maxTokens int,
	operation string,
) (string, error) {
	if len(image) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, operation, fmt.Errorf("empty image payload"))
	}

	request := generateRequest{
		Contents: []content{{Parts: []part{
			{Text: prompt},
			{InlineData: &inlineData{
				MimeType: mimeType,
				Data:     base64.StdEncoding.EncodeToString(image),
			}},
		}}},
		GenerationConfig: generationConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxTokens,
		},
	}

	var response generateResponse
	url := v.client.modelPath(v.client.visionModel, "generateContent")
	if err := v.client.postJSON(ctx, url, request, &response, operation); err != nil {
		return "", wrapProviderError(domain.ErrGeneration, operation, err)
	}
	return response.text(), nil
}
