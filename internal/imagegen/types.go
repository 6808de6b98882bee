package imagegen

import (
	"context"
	"errors"
	"strings"

	"proprofile/internal/intake"
)

// ModelName is the generative-image model portraits are requested from.
const ModelName = "gemini-2.5-flash-image"

// DefaultErrorMessage is shown when the service fails without saying why.
const DefaultErrorMessage = "Failed to generate professional portrait."

// DefaultInstruction is the baseline studio-portrait instruction. It asks the
// model to keep identity-relevant facial features and change only attire,
// lighting and background.
const DefaultInstruction = `A professional studio portrait of the man in the reference image. 
Keep the nose shape, eyes, face structure, beard line, jaw, and overall proportions exactly the same as the reference photo. 
Do not alter or stylize facial features. He is wearing a well-fitted dark navy blue blazer over a crisp, solid-color white shirt. 
Expression should be calm, confident, and natural, with a subtle, professional smile. 
Lighting should be soft, even, and realistic, enhancing clarity without beautification or artificial skin smoothing. 
Skin tone should remain natural and real. Background should be a neutral, soft grey studio backdrop. 
Camera angle: eye-level, head-and-shoulders framing. Style: realistic professional photography, not illustration, not cinematic.`

// ErrNoImage is returned by transformers when the service answers without a
// usable image.
var ErrNoImage = errors.New("the model returned no image")

// Transformer is the single outbound call to a generative-image service.
type Transformer interface {
	Transform(ctx context.Context, source intake.DataURI, instruction string) (intake.DataURI, error)
}

// TransformerFunc adapts a function to Transformer.
type TransformerFunc func(ctx context.Context, source intake.DataURI, instruction string) (intake.DataURI, error)

func (f TransformerFunc) Transform(ctx context.Context, source intake.DataURI, instruction string) (intake.DataURI, error) {
	return f(ctx, source, instruction)
}

// ServiceMessager is implemented by provider errors that carry the message
// returned by the remote service.
type ServiceMessager interface {
	ServiceMessage() string
}

// GenerationError is the only failure kind surfaced to the user.
type GenerationError struct {
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	return e.Message
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// MessageOf extracts the user-facing message for err. Only messages reported
// by the service reach the user; transport failures and errors without a
// service message map to DefaultErrorMessage.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var genErr *GenerationError
	if errors.As(err, &genErr) && genErr.Message != "" {
		return genErr.Message
	}
	var svc ServiceMessager
	if errors.As(err, &svc) {
		if msg := strings.TrimSpace(svc.ServiceMessage()); msg != "" {
			return msg
		}
	}
	return DefaultErrorMessage
}
