// Package archive copies data blocks to an S3-compatible bucket and mints
// presigned GET URLs for archived blocks.
package archive

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in, optFns...)
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// Options locate and authenticate against the archive bucket.
type Options struct {
	Region       string
	User         string
	Password     string
	Bucket       string
	BaseEndpoint string
}

// Archiver stores blocks under "blocks/<md5>" in one bucket.
type Archiver struct {
	bucket  string
	client  *s3.Client
	presign *s3.PresignClient
}

// New builds an Archiver with static credentials and a custom endpoint
// (MinIO or any S3-compatible service).
func New(ctx context.Context, opts Options) (*Archiver, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.User, opts.Password, "")))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		o.UsePathStyle = true
	})

	return &Archiver{
		bucket:  opts.Bucket,
		client:  client,
		presign: newS3PresignClient(client),
	}, nil
}

// Key returns the object key of the block with the given hash.
func Key(md5Hash string) string {
	return "blocks/" + md5Hash
}

// Put uploads the block stored at location and returns its archive id.
func (a *Archiver) Put(ctx context.Context, md5Hash, location string) (string, error) {
	f, err := os.Open(location)
	if err != nil {
		return "", err
	}
	defer f.Close()

	key := Key(md5Hash)
	_, err = putObject(a.client, ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}

// PresignGet returns a time-limited GET URL for an archived block.
func (a *Archiver) PresignGet(ctx context.Context, archiveID string, ttl time.Duration) (string, error) {
	req, err := presignGetObject(a.presign, ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(archiveID),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
