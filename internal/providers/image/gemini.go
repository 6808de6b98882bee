package image

import (
	"context"

	"proprofile/internal/imagegen"
	"proprofile/internal/intake"
	"proprofile/internal/providers/genai"
)

// GeminiTransformer edits portraits through the Gemini REST client.
type GeminiTransformer struct {
	client *genai.Client
}

func NewGeminiTransformer(client *genai.Client) *GeminiTransformer {
	return &GeminiTransformer{client: client}
}

func (g *GeminiTransformer) Transform(ctx context.Context, source intake.DataURI, instruction string) (intake.DataURI, error) {
	data, err := source.Bytes()
	if err != nil {
		return intake.DataURI{}, err
	}
	asset, err := g.client.EditImage(ctx, genai.EditRequest{
		Image:       data,
		MIMEType:    source.MediaType(),
		Instruction: instruction,
	})
	if err != nil {
		return intake.DataURI{}, err
	}
	return intake.NewDataURI(asset.Format, asset.Data), nil
}

var _ imagegen.Transformer = (*GeminiTransformer)(nil)
