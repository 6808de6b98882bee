package httpapi

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proprofile/internal/http/handlers"
	"proprofile/internal/imagegen"
	"proprofile/internal/infra"
	"proprofile/internal/intake"
	"proprofile/internal/middleware"
	"proprofile/internal/studio"
)

type snapshot struct {
	SessionID      string `json:"session_id"`
	Status         string `json:"status"`
	SourceImage    string `json:"source_image"`
	GeneratedImage string `json:"generated_image"`
	Instruction    string `json:"instruction"`
	IsDefault      bool   `json:"instruction_is_default"`
	Error          string `json:"error"`
}

type serviceError string

func (e serviceError) Error() string          { return "service: " + string(e) }
func (e serviceError) ServiceMessage() string { return string(e) }

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testClient struct {
	t      *testing.T
	server *httptest.Server
	http   *http.Client
}

func newTestClient(t *testing.T, fn imagegen.TransformerFunc) *testClient {
	t.Helper()
	client, err := imagegen.NewClient(imagegen.Options{Transformer: fn, Provider: "fake"})
	require.NoError(t, err)

	cfg := &infra.Config{AppEnv: "test", MaxUploadBytes: 1 << 20, SessionMax: 100, GenerationConcurrency: 2}
	app := &handlers.App{
		Config: cfg,
		Logger: zerolog.Nop(),
		Store:  studio.NewStore(cfg.SessionMax, time.Hour),
		Runner: studio.NewRunner(client, cfg.GenerationConcurrency, zerolog.Nop()),
		Client: client,
	}
	srv := httptest.NewServer(NewRouter(app))
	t.Cleanup(func() {
		srv.Close()
		_ = app.Runner.Wait(context.Background())
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testClient{t: t, server: srv, http: &http.Client{Jar: jar}}
}

func (c *testClient) do(method, path string, body io.Reader, contentType string) *http.Response {
	c.t.Helper()
	req, err := http.NewRequest(method, c.server.URL+path, body)
	require.NoError(c.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (c *testClient) snapshot(resp *http.Response, wantStatus int) snapshot {
	c.t.Helper()
	require.Equal(c.t, wantStatus, resp.StatusCode)
	var snap snapshot
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap
}

func (c *testClient) errorCode(resp *http.Response, wantStatus int) string {
	c.t.Helper()
	require.Equal(c.t, wantStatus, resp.StatusCode)
	var env errorEnvelope
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&env))
	return env.Error.Code
}

func (c *testClient) upload(filename string, data []byte) *http.Response {
	c.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(c.t, err)
	_, err = part.Write(data)
	require.NoError(c.t, err)
	require.NoError(c.t, mw.Close())
	return c.do(http.MethodPost, "/v1/session/image", &body, mw.FormDataContentType())
}

func (c *testClient) setInstruction(text string) snapshot {
	c.t.Helper()
	body, _ := json.Marshal(map[string]string{"instruction": text})
	return c.snapshot(c.do(http.MethodPut, "/v1/session/instruction", bytes.NewReader(body), "application/json"), http.StatusOK)
}

func (c *testClient) waitForStatus(want ...string) snapshot {
	c.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := c.snapshot(c.do(http.MethodGet, "/v1/session", nil, ""), http.StatusOK)
		for _, w := range want {
			if snap.Status == w {
				return snap
			}
		}
		if time.Now().After(deadline) {
			c.t.Fatalf("status %q never reached %v", snap.Status, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func photo(t *testing.T, w, h int) image.Image {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 9), G: uint8(y * 3), B: 120, A: 255})
		}
	}
	return img
}

func jpegPhoto(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, photo(t, 20, 25), nil))
	return buf.Bytes()
}

func pngPortrait(t *testing.T) intake.DataURI {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, photo(t, 16, 20)))
	return intake.NewDataURI("image/png", buf.Bytes())
}

func TestHealthAndDocs(t *testing.T) {
	c := newTestClient(t, func(context.Context, intake.DataURI, string) (intake.DataURI, error) {
		return intake.DataURI{}, errors.New("unused")
	})

	resp := c.do(http.MethodGet, "/v1/healthz", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "fake", health["provider"])
	assert.Equal(t, imagegen.ModelName, health["model"])
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp = c.do(http.MethodGet, "/v1/openapi.json", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var doc map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Contains(t, doc["paths"], "/v1/session/generate")

	resp = c.do(http.MethodGet, "/v1/docs", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = c.do(http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	page, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(page), "ProProfile AI")

	resp = c.do(http.MethodGet, "/v1/stats", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.EqualValues(t, 1, stats["active_sessions"])

	resp = c.do(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	metrics, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(metrics), "proprofile_http_requests_total")
}

func TestPortraitFlow(t *testing.T) {
	out := pngPortrait(t)
	var mu sync.Mutex
	var gotSource intake.DataURI
	var gotInstruction string
	c := newTestClient(t, func(_ context.Context, source intake.DataURI, instruction string) (intake.DataURI, error) {
		mu.Lock()
		defer mu.Unlock()
		gotSource = source
		gotInstruction = instruction
		return out, nil
	})

	snap := c.snapshot(c.do(http.MethodGet, "/v1/session", nil, ""), http.StatusOK)
	assert.Equal(t, "idle", snap.Status)
	assert.Equal(t, imagegen.DefaultInstruction, snap.Instruction)
	assert.True(t, snap.IsDefault)

	code := c.errorCode(c.do(http.MethodPost, "/v1/session/generate", nil, ""), http.StatusConflict)
	assert.Equal(t, "no_source_image", code)
	assert.Equal(t, "idle", c.snapshot(c.do(http.MethodGet, "/v1/session", nil, ""), http.StatusOK).Status)

	raw := jpegPhoto(t)
	snap = c.snapshot(c.upload("portrait.jpg", raw), http.StatusOK)
	assert.Equal(t, "image_loaded", snap.Status)
	assert.Equal(t, intake.NewDataURI("image/jpeg", raw).String(), snap.SourceImage)
	assert.Empty(t, snap.GeneratedImage)
	assert.Empty(t, snap.Error)

	snap = c.setInstruction("Navy suit, white backdrop")
	assert.False(t, snap.IsDefault)

	snap = c.snapshot(c.do(http.MethodPost, "/v1/session/generate", nil, ""), http.StatusAccepted)
	assert.Equal(t, "running", snap.Status)

	snap = c.waitForStatus("succeeded", "failed")
	require.Equal(t, "succeeded", snap.Status)
	assert.Equal(t, out.String(), snap.GeneratedImage)
	assert.Empty(t, snap.Error)
	mu.Lock()
	assert.Equal(t, snap.SourceImage, gotSource.String())
	assert.Equal(t, "Navy suit, white backdrop", gotInstruction)
	mu.Unlock()

	resp := c.do(http.MethodGet, "/v1/session/download", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, "attachment; filename=professional-headshot.png", resp.Header.Get("Content-Disposition"))
	data, _ := io.ReadAll(resp.Body)
	want, _ := out.Bytes()
	assert.Equal(t, want, data)

	resp = c.do(http.MethodGet, "/v1/session/bundle", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	archive, _ := io.ReadAll(resp.Body)
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"original.jpg", "professional-headshot.png"}, names)

	snap = c.snapshot(c.do(http.MethodPost, "/v1/session/reset", nil, ""), http.StatusOK)
	assert.Equal(t, "idle", snap.Status)
	assert.Empty(t, snap.SourceImage)
	assert.Empty(t, snap.GeneratedImage)
	assert.Equal(t, imagegen.DefaultInstruction, snap.Instruction)

	code = c.errorCode(c.do(http.MethodGet, "/v1/session/download", nil, ""), http.StatusNotFound)
	assert.Equal(t, "no_generated_image", code)
}

func TestGenerationFailureKeepsPreviousPortrait(t *testing.T) {
	out := pngPortrait(t)
	var fail atomic.Bool
	c := newTestClient(t, func(context.Context, intake.DataURI, string) (intake.DataURI, error) {
		if fail.Load() {
			return intake.DataURI{}, serviceError("unsafe content detected")
		}
		return out, nil
	})

	c.snapshot(c.upload("portrait.jpg", jpegPhoto(t)), http.StatusOK)
	c.snapshot(c.do(http.MethodPost, "/v1/session/generate", nil, ""), http.StatusAccepted)
	c.waitForStatus("succeeded")

	fail.Store(true)
	c.snapshot(c.do(http.MethodPost, "/v1/session/generate", nil, ""), http.StatusAccepted)
	snap := c.waitForStatus("failed")
	assert.Equal(t, "unsafe content detected", snap.Error)
	assert.Equal(t, out.String(), snap.GeneratedImage)
}

func TestGenerationInProgress(t *testing.T) {
	release := make(chan struct{})
	out := pngPortrait(t)
	c := newTestClient(t, func(context.Context, intake.DataURI, string) (intake.DataURI, error) {
		<-release
		return out, nil
	})

	c.snapshot(c.upload("portrait.jpg", jpegPhoto(t)), http.StatusOK)
	c.snapshot(c.do(http.MethodPost, "/v1/session/generate", nil, ""), http.StatusAccepted)
	code := c.errorCode(c.do(http.MethodPost, "/v1/session/generate", nil, ""), http.StatusConflict)
	assert.Equal(t, "generation_in_progress", code)

	close(release)
	c.waitForStatus("succeeded")
}

func TestUploadRejections(t *testing.T) {
	c := newTestClient(t, func(context.Context, intake.DataURI, string) (intake.DataURI, error) {
		return intake.DataURI{}, errors.New("unused")
	})
	raw := jpegPhoto(t)
	loaded := c.snapshot(c.upload("portrait.jpg", raw), http.StatusOK)

	tests := []struct {
		name       string
		resp       func() *http.Response
		wantStatus int
		wantCode   string
	}{
		{
			name:       "text file",
			resp:       func() *http.Response { return c.upload("notes.txt", []byte("not a photo at all")) },
			wantStatus: http.StatusUnsupportedMediaType,
			wantCode:   "not_an_image",
		},
		{
			name:       "empty file",
			resp:       func() *http.Response { return c.upload("empty.jpg", nil) },
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "unreadable_file",
		},
		{
			name:       "too large",
			resp:       func() *http.Response { return c.upload("huge.jpg", bytes.Repeat([]byte{0xff}, 1<<20+16<<10)) },
			wantStatus: http.StatusRequestEntityTooLarge,
			wantCode:   "file_too_large",
		},
		{
			name: "missing field",
			resp: func() *http.Response {
				var body bytes.Buffer
				mw := multipart.NewWriter(&body)
				_ = mw.WriteField("other", "value")
				_ = mw.Close()
				return c.do(http.MethodPost, "/v1/session/image", &body, mw.FormDataContentType())
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "bad_request",
		},
		{
			name: "malformed data uri",
			resp: func() *http.Response {
				return c.do(http.MethodPost, "/v1/session/image", strings.NewReader(`{"image":"data:image/png,abc"}`), "application/json")
			},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "unreadable_file",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantCode, c.errorCode(tc.resp(), tc.wantStatus))
			snap := c.snapshot(c.do(http.MethodGet, "/v1/session", nil, ""), http.StatusOK)
			assert.Equal(t, loaded.SourceImage, snap.SourceImage)
			assert.Equal(t, "image_loaded", snap.Status)
		})
	}
}

func TestUploadDataURI(t *testing.T) {
	c := newTestClient(t, func(context.Context, intake.DataURI, string) (intake.DataURI, error) {
		return intake.DataURI{}, errors.New("unused")
	})
	uri := intake.NewDataURI("image/jpeg", jpegPhoto(t))
	body, _ := json.Marshal(map[string]string{"image": uri.String()})

	snap := c.snapshot(c.do(http.MethodPost, "/v1/session/image", bytes.NewReader(body), "application/json"), http.StatusOK)
	assert.Equal(t, uri.String(), snap.SourceImage)
	assert.Equal(t, "image_loaded", snap.Status)
}

func TestUploadDataURINearLimit(t *testing.T) {
	c := newTestClient(t, func(context.Context, intake.DataURI, string) (intake.DataURI, error) {
		return intake.DataURI{}, errors.New("unused")
	})
	const limit = 1 << 20
	pngSignature := []byte("\x89PNG\r\n\x1a\n")

	under := append(append([]byte{}, pngSignature...), make([]byte, 900<<10)...)
	body, _ := json.Marshal(map[string]string{"image": intake.NewDataURI("image/png", under).String()})
	snap := c.snapshot(c.do(http.MethodPost, "/v1/session/image", bytes.NewReader(body), "application/json"), http.StatusOK)
	assert.Equal(t, "image_loaded", snap.Status)
	assert.Equal(t, intake.NewDataURI("image/png", under).String(), snap.SourceImage)

	over := append(append([]byte{}, pngSignature...), make([]byte, limit+1<<10)...)
	body, _ = json.Marshal(map[string]string{"image": intake.NewDataURI("image/png", over).String()})
	code := c.errorCode(c.do(http.MethodPost, "/v1/session/image", bytes.NewReader(body), "application/json"), http.StatusRequestEntityTooLarge)
	assert.Equal(t, "file_too_large", code)
}

func TestSessionsAreIsolated(t *testing.T) {
	c := newTestClient(t, func(context.Context, intake.DataURI, string) (intake.DataURI, error) {
		return intake.DataURI{}, errors.New("unused")
	})
	c.snapshot(c.upload("portrait.jpg", jpegPhoto(t)), http.StatusOK)

	resp, err := http.Get(c.server.URL + "/v1/session")
	require.NoError(t, err)
	defer resp.Body.Close()
	var other snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&other))
	assert.Equal(t, "idle", other.Status)
	assert.Empty(t, other.SourceImage)

	var found bool
	for _, ck := range resp.Cookies() {
		if ck.Name == middleware.SessionCookie {
			found = true
		}
	}
	assert.True(t, found, "fresh client should receive a session cookie")
}
