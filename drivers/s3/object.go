package s3driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	medialib "github.com/shoraid/go-medialib"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type s3Client interface {
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type presignClient interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// ObjectStorageConfig defines the configuration needed to connect to an S3-compatible storage.
// You can use this with AWS S3, Cloudflare R2, MinIO, GCS (S3 API), etc.
type ObjectStorageConfig struct {
	Bucket        string              // bucket name where files will be stored
	Region        string              // AWS region or equivalent
	AccessKey     string              // access key for authentication
	SecretKey     string              // secret key for authentication
	Endpoint      string              // optional custom endpoint (for R2, MinIO, etc.)
	UseSSL        bool                // true = https, false = http
	Visibility    medialib.Visibility // public or private
	PublicBaseURL string              // optional CDN origin for public URLs
	DefaultExpiry time.Duration       // default expiry duration for signed URLs
}

// ObjectStorage is the concrete implementation of medialib.StorageDriver for S3-compatible storages.
type ObjectStorage struct {
	client        s3Client
	bucket        string
	config        ObjectStorageConfig
	presignClient presignClient // used to generate signed URLs
}

// NewObjectStorage initializes and returns an ObjectStorage instance using the given config.
// It loads AWS configuration, sets up the S3 client, and prepares a presign client.
// Returns medialib.ErrInvalidConfig if credentials or config are invalid.
func NewObjectStorage(cfg ObjectStorageConfig) (*ObjectStorage, error) {
	if cfg.Bucket == "" {
		return nil, medialib.ErrInvalidConfig
	}

	if cfg.AccessKey == "" {
		return nil, medialib.ErrInvalidConfig
	}

	if cfg.SecretKey == "" {
		return nil, medialib.ErrInvalidConfig
	}

	storageCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return nil, medialib.ErrInvalidConfig
	}

	client := s3.NewFromConfig(storageCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint, cfg.UseSSL))
			o.UsePathStyle = true // needed for MinIO / R2
		}
	})

	if cfg.DefaultExpiry == 0 {
		cfg.DefaultExpiry = 15 * time.Minute
	}

	if cfg.Visibility == "" {
		cfg.Visibility = medialib.VisibilityPrivate
	}

	return &ObjectStorage{
		client:        client,
		bucket:        cfg.Bucket,
		config:        cfg,
		presignClient: s3.NewPresignClient(client),
	}, nil
}

// endpointURL adds a scheme to a bare host:port endpoint.
func endpointURL(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

func isNotFound(err error) bool {
	var apiError interface{ ErrorCode() string }
	if errors.As(err, &apiError) {
		switch apiError.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}

// acl is empty for private buckets so buckets with ACLs disabled keep working.
func (s *ObjectStorage) acl() types.ObjectCannedACL {
	if s.config.Visibility == medialib.VisibilityPublic {
		return types.ObjectCannedACLPublicRead
	}
	return ""
}

// copySource escapes each segment of key for the x-amz-copy-source header.
func (s *ObjectStorage) copySource(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.bucket + "/" + strings.Join(segments, "/")
}

// Copy duplicates srcKey to dstKey inside the bucket.
// Usage: Called when a temporary upload is moved to its permanent key.
func (s *ObjectStorage) Copy(ctx context.Context, srcKey, dstKey string) error {
	if err := validateKey(dstKey); err != nil {
		log.Error().Err(err).Str("key", dstKey).Msg("invalid key")
		return medialib.ErrInvalidKey
	}

	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(s.copySource(srcKey)),
		ACL:        s.acl(),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%w: %s", medialib.ErrObjectNotFound, srcKey)
		}
		log.Error().Err(err).Str("src", srcKey).Str("dst", dstKey).Msg("failed to copy file in S3")
		return medialib.ErrInternal
	}

	return nil
}

// Delete permanently removes a file from the bucket.
// Usage: Call when you want to delete a file by its key.
func (s *ObjectStorage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to delete file from S3")
		return medialib.ErrInternal
	}

	return nil
}

// Exists checks if a file exists in the bucket.
// Usage: Call before uploading or deleting to verify the file's presence.
func (s *ObjectStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Head(ctx, key)
	if errors.Is(err, medialib.ErrObjectNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

// Get opens a file for reading.
// Usage: Call to download an original before rendering conversions.
func (s *ObjectStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", medialib.ErrObjectNotFound, key)
		}
		log.Error().Err(err).Str("key", key).Msg("failed to get file from S3")
		return nil, medialib.ErrInternal
	}

	return out.Body, nil
}

// GetSignedURL generates a temporary signed URL for downloading a file.
// Usage: Call this when you need to share temporary access to a private file.
func (s *ObjectStorage) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		expiry = s.config.DefaultExpiry
	}

	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to generate signed URL")
		return "", medialib.ErrInternal
	}

	return req.URL, nil
}

// GetURL returns the direct public URL for a file, through the CDN when one is configured.
// Usage: Call this when you want to embed or link a public file directly.
func (s *ObjectStorage) GetURL(ctx context.Context, key string) (string, error) {
	if s.config.PublicBaseURL != "" {
		return strings.TrimRight(s.config.PublicBaseURL, "/") + "/" + key, nil
	}

	base := endpointURL(s.config.Endpoint, s.config.UseSSL)
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), s.bucket, key), nil
}

// Head reports the size and content type of a file.
// Usage: Call to verify a client upload before accepting it.
func (s *ObjectStorage) Head(ctx context.Context, key string) (medialib.ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return medialib.ObjectInfo{}, fmt.Errorf("%w: %s", medialib.ErrObjectNotFound, key)
		}

		log.Error().Err(err).Str("key", key).Msg("failed to check if file exists in S3")
		return medialib.ObjectInfo{}, medialib.ErrInternal
	}

	return medialib.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// validateKey ensures that every segment of the provided key is valid (not empty, no invalid characters).
// Usage: Called internally by Put and Copy to prevent writing bad file names.
var fileNameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

func validateKey(key string) error {
	if len(key) == 0 {
		return errors.New("key cannot be empty")
	}

	for _, name := range strings.Split(key, "/") {
		switch {
		case len(name) == 0:
			return errors.New("key contains an empty segment")
		case !fileNameRegex.MatchString(name):
			return errors.New("key contains invalid characters")
		case name == "." || name == "..":
			return errors.New("invalid key")
		}
	}
	return nil
}

// Put uploads a file to the bucket.
// Usage: Call this to save a new file or overwrite an existing file.
func (s *ObjectStorage) Put(ctx context.Context, key string, file io.Reader, contentType string) error {
	if err := validateKey(key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("invalid key")
		return medialib.ErrInvalidKey
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(s.bucket),
		Key:                  aws.String(key),
		Body:                 file,
		ContentType:          aws.String(contentType),
		ACL:                  s.acl(),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to upload file to S3")
		return medialib.ErrInternal
	}

	return nil
}

// SignUpload generates a presigned PUT URL bound to key and content type.
// Usage: Hand the URL to a client so it uploads directly to the bucket.
func (s *ObjectStorage) SignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	if err := validateKey(key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("invalid key")
		return "", medialib.ErrInvalidKey
	}

	if expiry <= 0 {
		expiry = s.config.DefaultExpiry
	}

	req, err := s.presignClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
		ACL:         s.acl(),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to generate upload URL")
		return "", medialib.ErrInternal
	}

	return req.URL, nil
}

// Visibility reports whether this bucket serves public or private objects.
func (s *ObjectStorage) Visibility() medialib.Visibility {
	return s.config.Visibility
}
