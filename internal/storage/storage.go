// Package storage keeps patient identification documents in object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"carepulse-server/internal/apperr"
)

// MaxDocumentSize is the largest identification document accepted (10 MB).
const MaxDocumentSize = 10 * 1024 * 1024

// DefaultURLExpiry is the longest lifetime S3 allows for a presigned URL.
const DefaultURLExpiry = 7 * 24 * time.Hour

var allowedDocumentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
	"image/gif":       true,
	"application/pdf": true,
}

// StoredFile identifies an uploaded document.
type StoredFile struct {
	ID  string `json:"id"`
	Key string `json:"key"`
	URL string `json:"url"`
}

type DocumentStore interface {
	StoreIdentificationDocument(ctx context.Context, data []byte, filename string) (StoredFile, error)
	// DocumentURL returns a fresh retrievable URL for a stored document id.
	DocumentURL(ctx context.Context, id string) (string, error)
}

// ObjectPutter is the subset of the S3 client used here.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ObjectPresigner is implemented by *s3.PresignClient.
type ObjectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config configures the S3 document store.
type S3Config struct {
	Bucket        string
	Region        string
	Endpoint      string // optional, for S3-compatible services
	PublicBaseURL string // optional, serves objects without signing
	URLExpiry     time.Duration
}

// S3DocumentStore writes documents to one bucket under "identification/".
// Objects are private; URLs are presigned unless PublicBaseURL is set.
type S3DocumentStore struct {
	client    ObjectPutter
	presigner ObjectPresigner
	cfg       S3Config
}

func NewS3DocumentStore(client ObjectPutter, presigner ObjectPresigner, cfg S3Config) *S3DocumentStore {
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = DefaultURLExpiry
	}
	return &S3DocumentStore{client: client, presigner: presigner, cfg: cfg}
}

// NewS3Client builds a path-style S3 client from the default AWS credential chain.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

func (s *S3DocumentStore) StoreIdentificationDocument(ctx context.Context, data []byte, filename string) (StoredFile, error) {
	if len(data) == 0 {
		return StoredFile{}, apperr.Validation("identificationDocument", "File is empty")
	}
	if len(data) > MaxDocumentSize {
		return StoredFile{}, apperr.Validation("identificationDocument", "File exceeds the 10 MB limit")
	}
	contentType := mimetype.Detect(data).String()
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	if !allowedDocumentTypes[contentType] {
		return StoredFile{}, apperr.Validation("identificationDocument", "Only images and PDF files are accepted")
	}

	id := uuid.New().String()
	key := documentKey(id)
	name := sanitizeFilename(filename)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:             aws.String(s.cfg.Bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(data),
		ContentType:        aws.String(contentType),
		ContentDisposition: aws.String(fmt.Sprintf("inline; filename=%q", name)),
		ACL:                types.ObjectCannedACLPrivate,
		Metadata:           map[string]string{"original-filename": filename},
	})
	if err != nil {
		return StoredFile{}, apperr.Persistence("store identification document", err)
	}
	url, err := s.DocumentURL(ctx, id)
	if err != nil {
		return StoredFile{}, err
	}
	return StoredFile{ID: id, Key: key, URL: url}, nil
}

func (s *S3DocumentStore) DocumentURL(ctx context.Context, id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", apperr.NotFound("identification document", id)
	}
	key := documentKey(id)
	if s.cfg.PublicBaseURL != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.cfg.PublicBaseURL, "/"), s.cfg.Bucket, key), nil
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.cfg.URLExpiry))
	if err != nil {
		return "", apperr.Persistence("presign identification document", err)
	}
	return req.URL, nil
}

func documentKey(id string) string {
	return path.Join("identification", id)
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "document"
	}
	return name
}
