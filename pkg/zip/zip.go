package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"
)

// Asset is one file placed in an archive.
type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// ArchiveAssets writes assets into an in-memory zip archive. Image payloads
// are already compressed, so they are stored rather than deflated.
func ArchiveAssets(assets []Asset, modified time.Time) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := make(map[string]struct{}, len(assets))
	for _, asset := range assets {
		if asset.Filename == "" {
			return nil, fmt.Errorf("zip: asset without filename")
		}
		if _, dup := seen[asset.Filename]; dup {
			return nil, fmt.Errorf("zip: duplicate filename %q", asset.Filename)
		}
		seen[asset.Filename] = struct{}{}

		hdr := &zip.FileHeader{Name: asset.Filename, Method: zip.Store, Modified: modified}
		if asset.MIME != "" {
			hdr.Comment = asset.MIME
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", asset.Filename, err)
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", asset.Filename, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close: %w", err)
	}
	return buf.Bytes(), nil
}
