package dataset

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"irrigation/internal/types"
)

// S3GetClient abstracts the S3 GetObject operation for testability.
type S3GetClient interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source loads a record table from an S3 object. Keys ending in ".zst"
// are decompressed while streaming.
type S3Source struct {
	Client S3GetClient
	Bucket string
	Key    string
}

// Load implements types.RecordSource.
func (s S3Source) Load(ctx context.Context) (*types.RecordTable, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key),
	})
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalStorage,
			fmt.Sprintf("failed to fetch s3://%s/%s", s.Bucket, s.Key), err)
	}

	body := out.Body
	if IsCompressed(s.Key) {
		body, err = decompressReader(out.Body)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalStorage,
				fmt.Sprintf("failed to decompress s3://%s/%s", s.Bucket, s.Key), err)
		}
	}
	defer body.Close()

	table, err := ReadCSV(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", s.Bucket, s.Key, err)
	}
	return table, nil
}
