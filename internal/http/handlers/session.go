package handlers

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"proprofile/internal/domain"
	"proprofile/internal/intake"
	"proprofile/internal/metrics"
	"proprofile/pkg/zip"
)

const (
	multipartOverhead   = 64 << 10
	maxInstructionBytes = 64 << 10
	bundleFilename      = "proprofile-portraits.zip"
)

type imageRequest struct {
	Image intake.DataURI `json:"image"`
}

type instructionRequest struct {
	Instruction *string `json:"instruction"`
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, sess.Snapshot())
}

// UploadImage accepts the selected file as multipart field "file", or a JSON
// body {"image": "data:..."}. A rejected file leaves the session untouched.
func (a *App) UploadImage(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	limit := a.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, uploadBodyLimit(r, limit))

	src, err := a.readImage(r, limit)
	if err != nil {
		a.uploadError(w, r, err)
		return
	}
	if err := sess.LoadImage(src); err != nil {
		a.uploadError(w, r, err)
		return
	}
	metrics.RecordUpload(src.MediaType(), "success", src.Size())
	a.log(r).Info().
		Str("session_id", sess.ID()).
		Str("media_type", src.MediaType()).
		Int("bytes", src.Size()).
		Msg("source image loaded")
	a.json(w, http.StatusOK, sess.Snapshot())
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// uploadBodyLimit caps the request body. A JSON data URI is base64, so its
// cap is the encoded length of limit; the decoded size is checked afterwards.
func uploadBodyLimit(r *http.Request, limit int64) int64 {
	if isJSON(r) {
		return int64(base64.StdEncoding.EncodedLen(int(limit))) + multipartOverhead
	}
	return limit + multipartOverhead
}

func (a *App) readImage(r *http.Request, limit int64) (intake.DataURI, error) {
	if isJSON(r) {
		var req imageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return intake.DataURI{}, err
		}
		if req.Image.IsZero() {
			return intake.DataURI{}, fmt.Errorf("%w: image field required", intake.ErrUnreadable)
		}
		if int64(req.Image.Size()) > limit {
			return intake.DataURI{}, &http.MaxBytesError{Limit: limit}
		}
		data, err := req.Image.Bytes()
		if err != nil {
			return intake.DataURI{}, err
		}
		return intake.Encode(bytes.NewReader(data), "")
	}

	if err := r.ParseMultipartForm(limit); err != nil {
		return intake.DataURI{}, err
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return intake.DataURI{}, errMissingFile
	}
	defer file.Close()
	if header.Size > limit {
		return intake.DataURI{}, &http.MaxBytesError{Limit: limit}
	}
	return intake.Encode(file, header.Filename)
}

var errMissingFile = errors.New("multipart field \"file\" is required")

func (a *App) uploadError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	var status int
	var code, message string
	switch {
	case errors.As(err, &tooLarge):
		status, code = http.StatusRequestEntityTooLarge, "file_too_large"
		message = fmt.Sprintf("The selected file exceeds %d bytes.", a.maxUploadBytes())
	case errors.Is(err, intake.ErrNotImage):
		status, code, message = http.StatusUnsupportedMediaType, "not_an_image", "The selected file is not an image."
	case errors.Is(err, intake.ErrUnreadable), errors.Is(err, intake.ErrMalformedDataURI):
		status, code, message = http.StatusUnprocessableEntity, "unreadable_file", "The selected file could not be read."
	case errors.Is(err, errMissingFile):
		status, code, message = http.StatusBadRequest, "bad_request", err.Error()
	default:
		status, code, message = http.StatusBadRequest, "bad_request", "invalid upload"
	}
	metrics.RecordUpload("", "rejected", 0)
	a.log(r).Warn().Err(err).Int("status", status).Msg("source image rejected")
	a.error(w, status, code, message)
}

func (a *App) SetInstruction(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxInstructionBytes)
	var req instructionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Instruction == nil {
		a.error(w, http.StatusBadRequest, "bad_request", "instruction required")
		return
	}
	sess.SetInstruction(*req.Instruction)
	a.json(w, http.StatusOK, sess.Snapshot())
}

// Generate starts a generation and answers 202 with the Running snapshot;
// clients poll GetSession for the outcome.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	snap, err := a.Runner.Start(sess)
	switch {
	case errors.Is(err, domain.ErrNoSourceImage):
		a.error(w, http.StatusConflict, "no_source_image", "Upload a photo before generating.")
		return
	case errors.Is(err, domain.ErrGenerationInProgress):
		a.error(w, http.StatusConflict, "generation_in_progress", "A portrait is already being generated.")
		return
	case err != nil:
		a.error(w, http.StatusInternalServerError, "internal", "failed to start generation")
		return
	}
	a.log(r).Info().Str("session_id", sess.ID()).Msg("generation started")
	a.json(w, http.StatusAccepted, snap)
}

func (a *App) Reset(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	sess.Reset()
	a.json(w, http.StatusOK, sess.Snapshot())
}

func (a *App) Download(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	dl, err := sess.Download()
	if err != nil {
		a.downloadError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", dl.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(dl.Data)
}

// Bundle downloads the source photo and the generated portrait as one zip.
func (a *App) Bundle(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.session(w, r)
	if !ok {
		return
	}
	dl, err := sess.Download()
	if err != nil {
		a.downloadError(w, r, err)
		return
	}
	assets := []zip.Asset{{Filename: dl.Filename, MIME: dl.ContentType, Data: dl.Data}}
	if src, err := intake.ParseDataURI(sess.Snapshot().SourceImage); err == nil {
		if data, err := src.Bytes(); err == nil {
			assets = append([]zip.Asset{{Filename: "original" + extensionFor(src.MediaType()), MIME: src.MediaType(), Data: data}}, assets...)
		}
	}
	archive, err := zip.ArchiveAssets(assets, time.Now())
	if err != nil {
		a.log(r).Error().Err(err).Msg("bundle failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", bundleFilename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (a *App) downloadError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrNoGeneratedImage) {
		a.error(w, http.StatusNotFound, "no_generated_image", "No portrait has been generated yet.")
		return
	}
	a.log(r).Error().Err(err).Msg("download failed")
	a.error(w, http.StatusInternalServerError, "internal", "failed to prepare download")
}

func (a *App) maxUploadBytes() int64 {
	if a.Config != nil && a.Config.MaxUploadBytes > 0 {
		return a.Config.MaxUploadBytes
	}
	return 20 << 20
}

func extensionFor(mediaType string) string {
	if mt := mimetype.Lookup(mediaType); mt != nil && mt.Extension() != "" {
		return mt.Extension()
	}
	return ".img"
}
