// Package publish delivers the artifacts of a distillation run (rendered
// rules, the report) to a file system directory or an S3 prefix, and emits
// run metrics.
package publish

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"irrigation/internal/types"
)

// Artifact is one named output of a run.
type Artifact struct {
	Name        string
	ContentType string
	Body        []byte
}

// Sink stores artifacts.
type Sink interface {
	Put(ctx context.Context, a Artifact) error
}

// FileSink writes artifacts into Dir, creating it when needed.
type FileSink struct {
	Dir string
}

// Put implements Sink.
func (s FileSink) Put(ctx context.Context, a Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validName(a.Name); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage, fmt.Sprintf("failed to create %s", s.Dir), err)
	}
	p := filepath.Join(s.Dir, a.Name)
	if err := os.WriteFile(p, a.Body, 0o644); err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage, fmt.Sprintf("failed to write %s", p), err)
	}
	return nil
}

// S3PutClient abstracts the S3 PutObject operation for testability.
type S3PutClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads artifacts under Bucket/Prefix.
type S3Sink struct {
	Client S3PutClient
	Bucket string
	Prefix string
}

// Key returns the object key an artifact is stored under.
func (s S3Sink) Key(name string) string {
	return path.Join(strings.Trim(s.Prefix, "/"), name)
}

// Put implements Sink.
func (s S3Sink) Put(ctx context.Context, a Artifact) error {
	if err := validName(a.Name); err != nil {
		return err
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.Key(a.Name)),
		Body:   bytes.NewReader(a.Body),
	}
	if a.ContentType != "" {
		input.ContentType = aws.String(a.ContentType)
	}
	if _, err := s.Client.PutObject(ctx, input); err != nil {
		return types.NewAppError(types.ErrCodeInternalStorage,
			fmt.Sprintf("failed to upload s3://%s/%s", s.Bucket, s.Key(a.Name)), err)
	}
	return nil
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return types.NewAppError(types.ErrCodeInternalUnexpected, fmt.Sprintf("invalid artifact name %q", name), nil)
	}
	return nil
}

// PutAll stores every artifact, stopping at the first failure.
func PutAll(ctx context.Context, sink Sink, artifacts []Artifact) error {
	for _, a := range artifacts {
		if err := sink.Put(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
