package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// s3API is the subset of *s3.Client the store calls.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // MinIO or another S3-compatible endpoint
	PathStyle       bool
	AccessKeyID     string // empty uses the default credential chain
	SecretAccessKey string
}

// S3Store keeps images in a single bucket. Object ids are the object keys
// and URLs point at the public object location.
type S3Store struct {
	client s3API
	bucket string
	region string
	base   *url.URL
	path   bool
}

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	store := &S3Store{client: client, bucket: cfg.Bucket, region: region, path: cfg.PathStyle}
	if cfg.Endpoint != "" {
		base, err := url.Parse(cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse s3 endpoint: %w", err)
		}
		store.base = base
	}
	return store, nil
}

func (s *S3Store) Upload(ctx context.Context, obj Object, content io.Reader) (*Object, error) {
	data, err := readValidated(&obj, content)
	if err != nil {
		return nil, err
	}
	key := objectKey(obj.Purpose, uuid.NewString(), obj.ContentType)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(obj.ContentType),
		ContentLength: aws.Int64(obj.Size),
		Metadata: map[string]string{
			"file-name": obj.FileName,
			"purpose":   obj.Purpose,
			"sha256":    obj.Hash,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("put object %s: %w", key, err)
	}

	obj.ID = key
	obj.URL = s.objectURL(key)
	return &obj, nil
}

func (s *S3Store) Download(ctx context.Context, id string) (io.ReadCloser, *Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(id)})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil, ErrBlobNotFound
		}
		return nil, nil, fmt.Errorf("get object %s: %w", id, err)
	}
	obj := &Object{
		ID:          id,
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
		URL:         s.objectURL(id),
		FileName:    out.Metadata["file-name"],
		Purpose:     out.Metadata["purpose"],
		Hash:        out.Metadata["sha256"],
	}
	if out.LastModified != nil {
		obj.CreatedAt = *out.LastModified
	}
	return out.Body, obj, nil
}

func (s *S3Store) Delete(ctx context.Context, id string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(id)})
	if err != nil {
		return fmt.Errorf("delete object %s: %w", id, err)
	}
	return nil
}

// objectURL builds the public location of key. Keys are generated from the
// purpose, a uuid and an extension, so they need no escaping.
func (s *S3Store) objectURL(key string) string {
	if s.base != nil {
		u := *s.base
		if s.path {
			u.Path = strings.TrimRight(u.Path, "/") + "/" + s.bucket + "/" + key
		} else {
			u.Host = s.bucket + "." + u.Host
			u.Path = "/" + key
		}
		return u.String()
	}
	if s.path {
		return fmt.Sprintf("https://s3.%s.amazonaws.com/%s/%s", s.region, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}
