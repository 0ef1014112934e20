package epub

import (
	"bytes"
	"fmt"

	fixzip "github.com/hidez8891/zip"
)

// withoutDataDescriptors rewrites archive so no entry uses data descriptor,
// some readers can not handle them.
func withoutDataDescriptors(data []byte) ([]byte, error) {
	r, err := fixzip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("unable to read archive: %w", err)
	}

	out := new(bytes.Buffer)
	w := fixzip.NewWriter(out)
	for _, file := range r.File {
		file.Flags &= ^fixzip.FlagDataDescriptor
		if err := w.CopyFile(file); err != nil {
			return nil, fmt.Errorf("unable to copy entry %s: %w", file.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("unable to finalize archive: %w", err)
	}
	return out.Bytes(), nil
}
