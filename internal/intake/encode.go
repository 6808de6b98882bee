package intake

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

var (
	// ErrNotImage is returned when the selected file is not an image media type.
	ErrNotImage = errors.New("intake: file is not an image")
	// ErrUnreadable is returned when the selected file cannot be read or is empty.
	ErrUnreadable = errors.New("intake: file could not be read")
)

// Info summarises an encoded image for display.
type Info struct {
	MediaType string `json:"media_type"`
	Bytes     int    `json:"bytes"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// Encode reads a selected file and produces its data URI. The media type is
// sniffed from content; the filename extension is consulted only when the
// content is not recognised.
func Encode(r io.Reader, filename string) (DataURI, error) {
	if r == nil {
		return DataURI{}, fmt.Errorf("%w: no file", ErrUnreadable)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return DataURI{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if len(data) == 0 {
		return DataURI{}, fmt.Errorf("%w: empty file", ErrUnreadable)
	}
	mediaType := DetectMediaType(data, filename)
	if !strings.HasPrefix(mediaType, "image/") {
		return DataURI{}, fmt.Errorf("%w: detected %s", ErrNotImage, mediaType)
	}
	return NewDataURI(mediaType, data), nil
}

// EncodeFile opens path and encodes it.
func EncodeFile(path string) (DataURI, error) {
	f, err := os.Open(path)
	if err != nil {
		return DataURI{}, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close()
	return Encode(f, filepath.Base(path))
}

// DetectMediaType returns the media type of data without parameters.
func DetectMediaType(data []byte, filename string) string {
	detected := mimetype.Detect(data)
	mediaType := detected.String()
	if detected.Is("application/octet-stream") {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
			mediaType = byExt
		}
	}
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}
	return strings.ToLower(mediaType)
}

// Describe reports media type, size and, when decodable, pixel dimensions.
func Describe(d DataURI) (Info, error) {
	data, err := d.Bytes()
	if err != nil {
		return Info{}, err
	}
	info := Info{MediaType: d.MediaType(), Bytes: len(data)}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		info.Width = cfg.Width
		info.Height = cfg.Height
	}
	return info, nil
}

// ToPNG returns PNG bytes for d, re-encoding when the source is another format.
func ToPNG(d DataURI) ([]byte, error) {
	data, err := d.Bytes()
	if err != nil {
		return nil, err
	}
	if d.MediaType() == "image/png" {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("intake: decode %s: %w", d.MediaType(), err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("intake: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
