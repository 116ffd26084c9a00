package s3driver

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// mockS3Client simulates the s3.Client calls used by ObjectStorage and records their inputs.
type mockS3Client struct {
	err        error
	headOutput *s3.HeadObjectOutput
	body       string

	lastCopy *s3.CopyObjectInput
	lastPut  *s3.PutObjectInput
}

func (m *mockS3Client) CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	m.lastCopy = params
	if m.err != nil {
		return nil, m.err
	}
	return &s3.CopyObjectOutput{}, nil
}

func (m *mockS3Client) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(m.body))}, nil
}

func (m *mockS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.headOutput != nil {
		return m.headOutput, nil
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *mockS3Client) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.lastPut = in
	if m.err != nil {
		return nil, m.err
	}
	return &s3.PutObjectOutput{}, nil
}

// mockNotFoundError mimics the smithy API error S3 returns for a missing key.
type mockNotFoundError struct {
	code string
}

func (e *mockNotFoundError) Error() string { return "not found" }

func (e *mockNotFoundError) ErrorCode() string {
	if e.code == "" {
		return "NotFound"
	}
	return e.code
}
