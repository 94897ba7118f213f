package dataset

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irrigation/internal/types"
)

func TestFileSource_PlainAndCompressed(t *testing.T) {
	table, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	dir := t.TempDir()
	for _, name := range []string{"history.csv", "history.csv.zst"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, WriteFile(path, table.Rows))

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, IsCompressed(name), !bytes.HasPrefix(raw, []byte("date,")))

			got, err := FileSource{Path: path}.Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, table.Rows, got.Rows)
		})
	}
}

func TestFileSource_Missing(t *testing.T) {
	_, err := FileSource{Path: filepath.Join(t.TempDir(), "absent.csv")}.Load(context.Background())
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeMissingData, appErr.Code)
}

func TestFileSource_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FileSource{Path: "unused.csv"}.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// mockS3 serves fixed objects by key.
type mockS3 struct {
	objects map[string][]byte
	err     error
	gotKey  string
}

func (m *mockS3) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.gotKey = *params.Key
	if m.err != nil {
		return nil, m.err
	}
	body, ok := m.objects[*params.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func compress(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func TestS3Source(t *testing.T) {
	client := &mockS3{objects: map[string][]byte{
		"ankara/history.csv":     []byte(sampleCSV),
		"ankara/history.csv.zst": compress(t, []byte(sampleCSV)),
	}}

	for _, key := range []string{"ankara/history.csv", "ankara/history.csv.zst"} {
		table, err := S3Source{Client: client, Bucket: "datasets", Key: key}.Load(context.Background())
		require.NoError(t, err, key)
		assert.Len(t, table.Rows, 3)
		assert.Equal(t, key, client.gotKey)
	}
}

func TestS3Source_FetchError(t *testing.T) {
	client := &mockS3{err: errors.New("access denied")}

	_, err := S3Source{Client: client, Bucket: "datasets", Key: "x.csv"}.Load(context.Background())
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalStorage, appErr.Code)
}
