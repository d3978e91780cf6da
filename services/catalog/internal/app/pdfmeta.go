package app

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// pageCount reads the page count from raw PDF bytes. Best effort: admin
// forms may omit the count, and a malformed file only costs the metadata.
func pageCount(data []byte) (int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	return reader.NumPage(), nil
}
