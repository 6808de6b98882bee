package imagegen

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"proprofile/internal/intake"
	"proprofile/internal/metrics"
)

// Options configures a Client.
type Options struct {
	Transformer Transformer
	Provider    string
	Model       string
	Logger      *zerolog.Logger
}

// Client performs one portrait generation per call. It holds no session or
// cache; every invocation is independent.
type Client struct {
	transformer Transformer
	provider    string
	model       string
	logger      zerolog.Logger
}

func NewClient(opts Options) (*Client, error) {
	if opts.Transformer == nil {
		return nil, errors.New("imagegen: transformer is required")
	}
	model := opts.Model
	if model == "" {
		model = ModelName
	}
	provider := opts.Provider
	if provider == "" {
		provider = "custom"
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Client{
		transformer: opts.Transformer,
		provider:    provider,
		model:       model,
		logger:      logger.With().Str("component", "imagegen").Logger(),
	}, nil
}

func (c *Client) Provider() string {
	return c.provider
}

func (c *Client) Model() string {
	return c.model
}

// Generate asks the service to transform source according to instruction.
// It either yields one image or a *GenerationError; there is no retry.
func (c *Client) Generate(ctx context.Context, source intake.DataURI, instruction string) (intake.DataURI, error) {
	if source.IsZero() {
		return intake.DataURI{}, &GenerationError{Message: "No source image to transform.", Err: errors.New("imagegen: empty source image")}
	}

	metrics.GenerationsInFlight.Inc()
	defer metrics.GenerationsInFlight.Dec()

	start := time.Now()
	out, err := c.transformer.Transform(ctx, source, NormalizeInstruction(instruction))
	elapsed := time.Since(start)
	if err == nil && out.IsZero() {
		err = ErrNoImage
	}
	if err != nil {
		genErr := &GenerationError{Message: MessageOf(err), Err: err}
		metrics.RecordGeneration(c.provider, "failed", elapsed.Seconds())
		c.logger.Warn().
			Err(err).
			Str("provider", c.provider).
			Str("model", c.model).
			Dur("elapsed", elapsed).
			Msg("portrait generation failed")
		return intake.DataURI{}, genErr
	}

	metrics.RecordGeneration(c.provider, "succeeded", elapsed.Seconds())
	c.logger.Info().
		Str("provider", c.provider).
		Str("model", c.model).
		Str("media_type", out.MediaType()).
		Int("bytes", out.Size()).
		Dur("elapsed", elapsed).
		Msg("portrait generated")
	return out, nil
}
