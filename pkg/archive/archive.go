// Package archive bundles job artifacts into a single zip download.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
)

// Entry is one file inside a bundle.
type Entry struct {
	Filename string
	Data     []byte
}

// Build assembles the entries into a zip archive.
func Build(entries []Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, entry := range entries {
		w, err := zw.Create(entry.Filename)
		if err != nil {
			return nil, fmt.Errorf("archive: create %s: %w", entry.Filename, err)
		}
		if _, err := w.Write(entry.Data); err != nil {
			return nil, fmt.Errorf("archive: write %s: %w", entry.Filename, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("archive: close: %w", err)
	}
	return buf.Bytes(), nil
}
