package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3API is the part of *s3.Client the store uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

type S3Config struct {
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	Bucket       string
	Prefix       string
}

// S3Store keeps each envelope as one object named by its content address.
// Tags travel as user metadata.
type S3Store struct {
	client s3API
	bucket string
	prefix string
}

var loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return newS3Store(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3Store(client s3API, bucket, prefix string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix}
}

func (s *S3Store) key(address string) string {
	return s.prefix + address
}

// S3 metadata keys are header names, so ':' in tag keys becomes '-'.
func metaKey(tag string) string   { return strings.ReplaceAll(tag, ":", "-") }
func tagKey(header string) string { return strings.Replace(strings.ToLower(header), "keepr-", "keepr:", 1) }

func (s *S3Store) Upload(ctx context.Context, data []byte, meta Metadata) (string, error) {
	addr, err := ComputeAddress(data)
	if err != nil {
		return "", err
	}

	md := map[string]string{"name": meta.Name}
	for k, v := range meta.Tags {
		md[metaKey(k)] = v
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(addr)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
		Metadata:      md,
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return addr, nil
}

func (s *S3Store) Download(ctx context.Context, address string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(address)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	if err := Verify(address, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *S3Store) List(ctx context.Context, filter Filter) ([]Pin, error) {
	var out []Pin
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			pin, err := s.head(ctx, aws.ToString(obj.Key))
			if err != nil {
				return nil, err
			}
			if filter.Match(pin.Tags) {
				out = append(out, pin)
			}
		}
	}
	return out, nil
}

func (s *S3Store) head(ctx context.Context, key string) (Pin, error) {
	h, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Pin{}, fmt.Errorf("head %s: %w", key, err)
	}

	pin := Pin{
		Address: strings.TrimPrefix(key, s.prefix),
		Tags:    make(map[string]string),
		Size:    aws.ToInt64(h.ContentLength),
	}
	if h.LastModified != nil {
		pin.CreatedAt = *h.LastModified
	}
	for k, v := range h.Metadata {
		if strings.EqualFold(k, "name") {
			pin.Name = v
			continue
		}
		pin.Tags[tagKey(k)] = v
	}
	return pin, nil
}
