package image

import (
	"context"
	"errors"
	"strings"

	gsdk "google.golang.org/genai"

	"proprofile/internal/imagegen"
	"proprofile/internal/intake"
	"proprofile/internal/providers/genai"
)

// SDKTransformer performs the same edit call through the official Go SDK.
type SDKTransformer struct {
	client *gsdk.Client
	model  string
}

// sdkError carries the API message out of a gsdk.APIError.
type sdkError struct {
	err     error
	message string
}

func (e *sdkError) Error() string          { return e.err.Error() }
func (e *sdkError) Unwrap() error          { return e.err }
func (e *sdkError) ServiceMessage() string { return e.message }

func NewSDKTransformer(ctx context.Context, opts Options) (*SDKTransformer, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, errors.New("genai-sdk: API key is missing")
	}
	cfg := &gsdk.ClientConfig{
		APIKey:     key,
		Backend:    gsdk.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	client, err := gsdk.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	model := opts.Model
	if model == "" {
		model = imagegen.ModelName
	}
	return &SDKTransformer{client: client, model: model}, nil
}

func (s *SDKTransformer) Transform(ctx context.Context, source intake.DataURI, instruction string) (intake.DataURI, error) {
	data, err := source.Bytes()
	if err != nil {
		return intake.DataURI{}, err
	}
	parts := []*gsdk.Part{
		gsdk.NewPartFromBytes(data, source.MediaType()),
		gsdk.NewPartFromText(instruction),
	}
	contents := []*gsdk.Content{gsdk.NewContentFromParts(parts, gsdk.RoleUser)}
	resp, err := s.client.Models.GenerateContent(ctx, s.model, contents, &gsdk.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		var apiErr gsdk.APIError
		if errors.As(err, &apiErr) {
			return intake.DataURI{}, &sdkError{err: err, message: apiErr.Message}
		}
		return intake.DataURI{}, err
	}
	return imageFromSDKResponse(resp)
}

func imageFromSDKResponse(resp *gsdk.GenerateContentResponse) (intake.DataURI, error) {
	if resp == nil {
		return intake.DataURI{}, &genai.RefusalError{}
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return intake.DataURI{}, &genai.RefusalError{BlockReason: string(fb.BlockReason), Text: fb.BlockReasonMessage}
	}
	var texts []string
	var finishReason string
	for _, candidate := range resp.Candidates {
		if candidate == nil {
			continue
		}
		if finishReason == "" {
			finishReason = string(candidate.FinishReason)
		}
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if text := strings.TrimSpace(part.Text); text != "" {
				texts = append(texts, text)
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				mimeType := part.InlineData.MIMEType
				if mimeType == "" {
					mimeType = intake.DetectMediaType(part.InlineData.Data, "")
				}
				return intake.NewDataURI(mimeType, part.InlineData.Data), nil
			}
		}
	}
	if strings.EqualFold(finishReason, "STOP") {
		finishReason = ""
	}
	return intake.DataURI{}, &genai.RefusalError{FinishReason: finishReason, Text: strings.Join(texts, "\n")}
}

var _ imagegen.Transformer = (*SDKTransformer)(nil)
