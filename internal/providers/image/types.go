package image

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"proprofile/internal/imagegen"
	"proprofile/internal/infra"
	"proprofile/internal/providers/genai"
)

// Supported portrait providers.
const (
	ProviderGemini    = "gemini"
	ProviderGenAISDK  = "genai-sdk"
	ProviderSynthetic = "synthetic"
)

// Options selects and configures a provider.
type Options struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	Timeout        time.Duration
	HTTPClient     *http.Client
	Logger         *infra.Logger
	SyntheticDelay time.Duration
}

// NormalizeProvider sanitizes free-form provider names. An empty name
// resolves to gemini when an API key is available and synthetic otherwise.
func NormalizeProvider(name, apiKey string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProviderGemini, "gemini-rest", "rest":
		return ProviderGemini
	case ProviderGenAISDK, "sdk", "genai":
		return ProviderGenAISDK
	case ProviderSynthetic, "fake", "offline":
		return ProviderSynthetic
	case "":
		if strings.TrimSpace(apiKey) != "" {
			return ProviderGemini
		}
		return ProviderSynthetic
	default:
		return ""
	}
}

// NewTransformer builds the Transformer for opts.Provider.
func NewTransformer(ctx context.Context, opts Options) (imagegen.Transformer, error) {
	provider := NormalizeProvider(opts.Provider, opts.APIKey)
	switch provider {
	case ProviderGemini:
		client, err := genai.NewClient(genai.Options{
			APIKey:     opts.APIKey,
			BaseURL:    opts.BaseURL,
			Model:      opts.Model,
			Timeout:    opts.Timeout,
			HTTPClient: opts.HTTPClient,
			Logger:     opts.Logger,
		})
		if err != nil {
			return nil, err
		}
		return NewGeminiTransformer(client), nil
	case ProviderGenAISDK:
		return NewSDKTransformer(ctx, opts)
	case ProviderSynthetic:
		return NewSyntheticTransformer(opts.SyntheticDelay), nil
	default:
		return nil, fmt.Errorf("unsupported portrait provider %q", opts.Provider)
	}
}
