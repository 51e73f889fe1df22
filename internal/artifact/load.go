package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	apperrors "github.com/soilfusion/cropadvisor/internal/errors"
	"github.com/soilfusion/cropadvisor/internal/logger"
)

const s3Scheme = "s3://"

// S3API is the subset of the S3 client the loader needs
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type loadOptions struct {
	s3       S3API
	region   string
	endpoint string
	now      func() time.Time
}

// Option configures Load
type Option func(*loadOptions)

// WithS3Client uses the given client for s3:// URIs
func WithS3Client(client S3API) Option {
	return func(o *loadOptions) { o.s3 = client }
}

// WithRegion sets the AWS region used when no client is injected
func WithRegion(region string) Option {
	return func(o *loadOptions) { o.region = region }
}

// WithEndpoint points the S3 client at a custom endpoint (MinIO, LocalStack)
func WithEndpoint(endpoint string) Option {
	return func(o *loadOptions) { o.endpoint = endpoint }
}

// WithClock overrides the LoadedAt timestamp source
func WithClock(now func() time.Time) Option {
	return func(o *loadOptions) { o.now = now }
}

// NewS3Client builds an S3 client from the default AWS credential chain
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	var cfgOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Load reads, decodes and validates the artifact at uri. The uri is either a
// local path or s3://bucket/key. A trailing .zst means zstd-compressed; the
// extension before it selects YAML (.yaml, .yml) or JSON (anything else).
func Load(ctx context.Context, uri string, opts ...Option) (*Artifact, error) {
	o := loadOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	raw, err := fetch(ctx, uri, &o)
	if err != nil {
		return nil, apperrors.ArtifactError("failed to read model artifact", err).WithOperation("artifact.Load").WithDetails(uri)
	}

	doc, err := Decode(uri, raw)
	if err != nil {
		return nil, apperrors.ArtifactError("failed to decode model artifact", err).WithOperation("artifact.Load").WithDetails(uri)
	}
	if doc.Version == "" {
		doc.Version = contentVersion(raw)
	}

	a, err := Build(doc, uri, o.now().UTC())
	if err != nil {
		return nil, apperrors.ArtifactError("invalid model artifact", err).WithOperation("artifact.Load").WithDetails(uri)
	}
	return a, nil
}

// LoadOptional loads the artifact or returns nil when it is missing or
// invalid. Callers treat nil as "model not trained".
func LoadOptional(ctx context.Context, uri string, log logger.Logger, opts ...Option) *Artifact {
	a, err := Load(ctx, uri, opts...)
	if err != nil {
		log.Warn("Model artifact unavailable, predictions will be degraded", "source", uri, "error", err.Error())
		return nil
	}
	log.Info("Model artifact loaded",
		"source", uri,
		"version", a.Meta.Version,
		"kind", a.Meta.Kind,
		"classes", len(a.Meta.Classes),
	)
	return a
}

// Decode parses raw artifact bytes. The name decides compression and format.
func Decode(name string, raw []byte) (Document, error) {
	var doc Document

	if strings.HasSuffix(name, ".zst") {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return doc, fmt.Errorf("create zstd decoder: %w", err)
		}
		defer dec.Close()
		raw, err = dec.DecodeAll(raw, nil)
		if err != nil {
			return doc, fmt.Errorf("zstd decompression failed: %w", err)
		}
		name = strings.TrimSuffix(name, ".zst")
	}

	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return doc, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, &doc); err != nil {
			return doc, fmt.Errorf("parse json: %w", err)
		}
	}
	return doc, nil
}

func fetch(ctx context.Context, uri string, o *loadOptions) ([]byte, error) {
	if !strings.HasPrefix(uri, s3Scheme) {
		return os.ReadFile(uri)
	}

	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	client := o.s3
	if client == nil {
		c, err := NewS3Client(ctx, o.region, o.endpoint)
		if err != nil {
			return nil, err
		}
		client = c
	}

	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3 object %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// ParseS3URI splits s3://bucket/key
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, s3Scheme)
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri needs a bucket and a key: %q", uri)
	}
	return bucket, key, nil
}

// contentVersion derives a stable version from the artifact bytes
func contentVersion(raw []byte) string {
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:6])
}
