package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	stdimage "image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"strconv"
	"time"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"proprofile/internal/imagegen"
	"proprofile/internal/intake"
)

const (
	syntheticWidth  = 1024
	syntheticHeight = 1280
)

var studioGrey = color.RGBA{R: 0xc8, G: 0xca, B: 0xcd, A: 0xff}

// SyntheticTransformer renders a deterministic stand-in portrait locally: the
// source photo fitted onto a 4:5 grey studio backdrop with an accent band
// derived from the instruction. Used when no API key is configured.
type SyntheticTransformer struct {
	delay time.Duration
}

func NewSyntheticTransformer(delay time.Duration) *SyntheticTransformer {
	return &SyntheticTransformer{delay: delay}
}

func (s *SyntheticTransformer) Transform(ctx context.Context, source intake.DataURI, instruction string) (intake.DataURI, error) {
	data, err := source.Bytes()
	if err != nil {
		return intake.DataURI{}, err
	}
	src, _, err := stdimage.Decode(bytes.NewReader(data))
	if err != nil {
		return intake.DataURI{}, fmt.Errorf("synthetic: decode source: %w", err)
	}

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return intake.DataURI{}, ctx.Err()
		}
	}

	out, err := renderStudioPortrait(src, deterministicSeed(instruction))
	if err != nil {
		return intake.DataURI{}, err
	}
	return intake.NewDataURI("image/png", out), nil
}

func renderStudioPortrait(src stdimage.Image, seed string) ([]byte, error) {
	canvas := stdimage.NewRGBA(stdimage.Rect(0, 0, syntheticWidth, syntheticHeight))
	xdraw.Draw(canvas, canvas.Bounds(), &stdimage.Uniform{C: studioGrey}, stdimage.Point{}, xdraw.Src)

	band := syntheticHeight / 10
	accent := colorFromSeed(seed)
	bandRect := stdimage.Rect(0, syntheticHeight-band, syntheticWidth, syntheticHeight)
	xdraw.Draw(canvas, bandRect, &stdimage.Uniform{C: accent}, stdimage.Point{}, xdraw.Src)

	target := fitRect(src.Bounds(), stdimage.Rect(0, 0, syntheticWidth, syntheticHeight-band))
	xdraw.CatmullRom.Scale(canvas, target, src, src.Bounds(), xdraw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("synthetic: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// fitRect centres a rectangle with src's aspect ratio inside bounds.
func fitRect(src, bounds stdimage.Rectangle) stdimage.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	bw, bh := bounds.Dx(), bounds.Dy()
	if sw <= 0 || sh <= 0 {
		return bounds
	}
	w, h := bw, sh*bw/sw
	if h > bh {
		w, h = sw*bh/sh, bh
	}
	x := bounds.Min.X + (bw-w)/2
	y := bounds.Min.Y + (bh-h)/2
	return stdimage.Rect(x, y, x+w, y+h)
}

func colorFromSeed(seed string) color.RGBA {
	if len(seed) < 6 {
		seed = "1f2a44"
	}
	r := mustParseHexByte(seed[0:2])
	g := mustParseHexByte(seed[2:4])
	b := mustParseHexByte(seed[4:6])
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func mustParseHexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(fmt.Sprintf("%v", part)))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}

var _ imagegen.Transformer = (*SyntheticTransformer)(nil)
