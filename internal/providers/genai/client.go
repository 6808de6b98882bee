package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"proprofile/internal/imagegen"
	"proprofile/internal/infra"
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a thin REST facade over the Gemini generateContent endpoint,
// restricted to image-in/image-out editing.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// EditRequest is one image editing call: the source photo plus the
// instruction describing the transformation.
type EditRequest struct {
	Image       []byte
	MIMEType    string
	Instruction string
	RequestID   string
}

// ImageAsset is the normalized image returned by the Gemini client.
type ImageAsset struct {
	URL    string
	Format string
	Width  int
	Height int
	Data   []byte
}

// APIError is a non-2xx answer from the Gemini API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gemini status %d", e.StatusCode)
	}
	return fmt.Sprintf("gemini status %d: %s", e.StatusCode, e.Message)
}

// ServiceMessage returns the message reported by the API.
func (e *APIError) ServiceMessage() string {
	return e.Message
}

// RefusalError is a successful HTTP answer in which the model declined to
// produce an image: a blocked prompt, a safety finish reason, or text only.
type RefusalError struct {
	BlockReason  string
	FinishReason string
	Text         string
}

func (e *RefusalError) Error() string {
	if msg := e.ServiceMessage(); msg != "" {
		return "gemini refused: " + msg
	}
	return "gemini refused: " + imagegen.ErrNoImage.Error()
}

func (e *RefusalError) ServiceMessage() string {
	switch {
	case strings.TrimSpace(e.Text) != "":
		return strings.TrimSpace(e.Text)
	case e.BlockReason != "":
		return fmt.Sprintf("The request was blocked by the model (%s).", e.BlockReason)
	case e.FinishReason != "":
		return fmt.Sprintf("The model stopped without an image (%s).", e.FinishReason)
	default:
		return ""
	}
}

func (e *RefusalError) Unwrap() error {
	return imagegen.ErrNoImage
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
	FileData   *geminiFileData   `json:"fileData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri,omitempty"`
}

type geminiGenerationConfig struct {
	CandidateCount     int      `json:"candidateCount,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiPromptFeedback struct {
	BlockReason        string `json:"blockReason,omitempty"`
	BlockReasonMessage string `json:"blockReasonMessage,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates     []geminiCandidate     `json:"candidates"`
	PromptFeedback *geminiPromptFeedback `json:"promptFeedback,omitempty"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; one with the configured timeout will be created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("genai: invalid base url: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash-image"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// EditImage sends the source image and instruction in one user turn and
// returns the first image part of the answer.
func (c *Client) EditImage(ctx context.Context, req EditRequest) (*ImageAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.apiKey == "" {
		return nil, errors.New("genai: API key is missing")
	}
	if len(req.Image) == 0 {
		return nil, errors.New("genai: source image required")
	}

	mimeType := firstNonEmpty(req.MIMEType, http.DetectContentType(req.Image))
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{
			{
				Role: "user",
				Parts: []geminiPart{
					{InlineData: &geminiInlineData{
						MimeType: mimeType,
						Data:     base64.StdEncoding.EncodeToString(req.Image),
					}},
					{Text: req.Instruction},
				},
			},
		},
		GenerationConfig: &geminiGenerationConfig{
			CandidateCount:     1,
			ResponseModalities: []string{"IMAGE", "TEXT"},
		},
	}

	var response geminiGenerateContentResponse
	if err := c.invokeGemini(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model)), payload, &response); err != nil {
		return nil, err
	}

	if fb := response.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return nil, &RefusalError{BlockReason: fb.BlockReason, Text: fb.BlockReasonMessage}
	}

	var texts []string
	var finishReason string
	for _, candidate := range response.Candidates {
		if finishReason == "" {
			finishReason = candidate.FinishReason
		}
		for _, part := range candidate.Content.Parts {
			if text := strings.TrimSpace(part.Text); text != "" {
				texts = append(texts, text)
			}
			asset, err := c.decodeInlineAsset(ctx, part)
			if err != nil {
				c.logger.Debug().Err(err).Str("request_id", req.RequestID).Msg("genai: skipping undecodable part")
				continue
			}
			if len(asset.Data) == 0 {
				continue
			}
			w, h := decodeImageDimensions(asset.Data)
			c.logger.Debug().
				Str("request_id", req.RequestID).
				Str("model", c.model).
				Str("format", asset.Format).
				Int("bytes", len(asset.Data)).
				Msg("genai: received edited image")
			return &ImageAsset{
				URL:    asset.URL,
				Format: firstNonEmpty(asset.Format, http.DetectContentType(asset.Data)),
				Width:  w,
				Height: h,
				Data:   asset.Data,
			}, nil
		}
	}

	if strings.EqualFold(finishReason, "STOP") {
		finishReason = ""
	}
	return nil, &RefusalError{FinishReason: finishReason, Text: strings.Join(texts, "\n")}
}

type inlineAsset struct {
	Data   []byte
	Format string
	URL    string
}

func (c *Client) invokeGemini(ctx context.Context, path string, payload any, out any) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var decoded geminiErrorResponse
		if err := json.Unmarshal(data, &decoded); err == nil && decoded.Error.Message != "" {
			apiErr.Message = decoded.Error.Message
			apiErr.Status = decoded.Error.Status
		} else if text := strings.TrimSpace(string(data)); text != "" {
			apiErr.Message = text
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

func (c *Client) decodeInlineAsset(ctx context.Context, part geminiPart) (inlineAsset, error) {
	if part.InlineData != nil && part.InlineData.Data != "" {
		data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return inlineAsset{}, fmt.Errorf("decode inline data: %w", err)
		}
		return inlineAsset{Data: data, Format: part.InlineData.MimeType}, nil
	}

	if part.FileData != nil && part.FileData.FileURI != "" {
		data, mime, err := c.downloadFile(ctx, part.FileData.FileURI)
		if err != nil {
			return inlineAsset{}, err
		}
		return inlineAsset{Data: data, Format: firstNonEmpty(part.FileData.MimeType, mime), URL: part.FileData.FileURI}, nil
	}

	return inlineAsset{}, nil
}

func (c *Client) downloadFile(ctx context.Context, uri string) ([]byte, string, error) {
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(uri, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}
	if strings.HasPrefix(target, c.baseURL) {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("download file status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	return blob, resp.Header.Get("Content-Type"), nil
}

func decodeImageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
