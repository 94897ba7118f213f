package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"irrigation/internal/types"
)

// ZstdSuffix marks compressed tables.
const ZstdSuffix = ".zst"

// IsCompressed reports whether name refers to a zstd-compressed table.
func IsCompressed(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ZstdSuffix)
}

// decompressReader wraps body in a streaming zstd decoder. Closing the
// result releases the decoder and closes body.
func decompressReader(body io.ReadCloser) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(body, zstd.WithDecoderConcurrency(1))
	if err != nil {
		body.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &zstdReadCloser{dec: dec, body: body}, nil
}

type zstdReadCloser struct {
	dec  *zstd.Decoder
	body io.Closer
}

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return z.body.Close()
}

// OpenFile opens a table file, transparently decompressing ".zst" files.
func OpenFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeMissingData,
			fmt.Sprintf("failed to open dataset %s", path), err)
	}
	if !IsCompressed(path) {
		return f, nil
	}
	return decompressReader(f)
}

// CreateFile creates a table file, compressing when path ends in ".zst".
// The caller must Close the writer to flush the compressed frame.
func CreateFile(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	if !IsCompressed(path) {
		return f, nil
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return &zstdWriteCloser{enc: enc, file: f}, nil
}

type zstdWriteCloser struct {
	enc  *zstd.Encoder
	file io.Closer
}

func (z *zstdWriteCloser) Write(p []byte) (int, error) { return z.enc.Write(p) }

func (z *zstdWriteCloser) Close() error {
	if err := z.enc.Close(); err != nil {
		z.file.Close()
		return fmt.Errorf("failed to flush zstd frame: %w", err)
	}
	return z.file.Close()
}

// FileSource loads a record table from a local CSV or CSV.zst file.
type FileSource struct {
	Path string
}

// Load implements types.RecordSource.
func (s FileSource) Load(ctx context.Context) (*types.RecordTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := OpenFile(s.Path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	table, err := ReadCSV(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Path, err)
	}
	return table, nil
}

// WriteFile writes rows to path as CSV, compressed when path ends in ".zst".
func WriteFile(path string, rows []types.RawObservation) error {
	w, err := CreateFile(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(w, rows); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
