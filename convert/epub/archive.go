package epub

import (
	"archive/zip"
	"compress/flate"
	"hash/crc32"
	"io"
	"time"
)

// Archive is the container writing capability packager depends on.
type Archive interface {
	// WriteStored adds entry without compression and without data
	// descriptor
	WriteStored(name string, data []byte) error
	// Write adds compressed entry
	Write(name string, data []byte) error
	Close() error
}

// ArchiveFactory creates archive writing into w, all entries get modified
// time.
type ArchiveFactory func(w io.Writer, modified time.Time) (Archive, error)

type zipArchive struct {
	zw       *zip.Writer
	modified time.Time
}

// NewZipArchive is default factory: archive/zip with maximum DEFLATE
// compression.
func NewZipArchive(w io.Writer, modified time.Time) (Archive, error) {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	return &zipArchive{zw: zw, modified: modified.UTC()}, nil
}

func (a *zipArchive) WriteStored(name string, data []byte) error {
	size := uint64(len(data))
	w, err := a.zw.CreateRaw(&zip.FileHeader{
		Name:               name,
		Method:             zip.Store,
		CRC32:              crc32.ChecksumIEEE(data),
		CompressedSize64:   size,
		UncompressedSize64: size,
	})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (a *zipArchive) Write(name string, data []byte) error {
	w, err := a.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: a.modified,
	})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (a *zipArchive) Close() error {
	return a.zw.Close()
}
