package filesystem

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"filetap/internal/config"
)

// S3Backend reads files from S3 or an S3-compatible service.
type S3Backend struct {
	client *s3.Client
	config *config.S3Config
}

// NewS3Backend creates a new S3 backend.
func NewS3Backend(ctx context.Context, s3Config *config.S3Config) (*S3Backend, error) {
	if s3Config.Region == "" {
		return nil, fmt.Errorf("region is required")
	}

	// Load AWS configuration
	cfgOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(s3Config.Region),
	}

	// Set credentials if provided
	if s3Config.Anonymous {
		cfgOpts = append(cfgOpts, awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}))
	} else if s3Config.AccessKey != "" && s3Config.SecretKey != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithCredentialsProvider(
			aws.CredentialsProviderFunc(func(ctx context.Context) (aws.Credentials, error) {
				return aws.Credentials{
					AccessKeyID:     s3Config.AccessKey,
					SecretAccessKey: s3Config.SecretKey,
					SessionToken:    s3Config.SessionToken,
				}, nil
			}),
		))
	}

	if s3Config.MaxRetries > 0 {
		cfgOpts = append(cfgOpts, awsconfig.WithRetryMaxAttempts(s3Config.MaxRetries))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Assume IAM role if specified
	if s3Config.RoleARN != "" {
		stsSvc := sts.NewFromConfig(cfg)
		cfg.Credentials = stscreds.NewAssumeRoleProvider(stsSvc, s3Config.RoleARN, func(o *stscreds.AssumeRoleOptions) {
			if s3Config.ExternalID != "" {
				o.ExternalID = aws.String(s3Config.ExternalID)
			}
		})
	}

	clientOpts := []func(*s3.Options){}
	if s3Config.EndpointURL != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(s3Config.EndpointURL)
			o.UsePathStyle = s3Config.ForcePathStyle
		})
	}

	return &S3Backend{
		client: s3.NewFromConfig(cfg, clientOpts...),
		config: s3Config,
	}, nil
}

// Protocol returns the backend kind.
func (b *S3Backend) Protocol() string {
	return "s3"
}

// List returns objects under the given path, following continuation tokens
// until the listing is complete. The path is "bucket" or "bucket/prefix";
// last-modified comes from the object metadata the service reports.
func (b *S3Backend) List(ctx context.Context, path string) ([]FileEntry, error) {
	bucket, prefix := splitBucketPath(path)

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var entries []FileEntry
	for {
		result, err := b.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range result.Contents {
			key := aws.ToString(obj.Key)
			entries = append(entries, FileEntry{
				Name:         bucket + "/" + key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified).UTC(),
				IsDirectory:  strings.HasSuffix(key, "/"),
			})
		}

		if !aws.ToBool(result.IsTruncated) {
			break
		}
		input.ContinuationToken = result.NextContinuationToken
	}

	return entries, nil
}

// Open returns a reader for an object. The name is "bucket/key".
func (b *S3Backend) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	bucket, key := splitBucketPath(name)

	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", name, err)
	}

	return result.Body, nil
}

// splitBucketPath splits "bucket/key/path" into bucket and key.
func splitBucketPath(path string) (bucket, key string) {
	path = strings.TrimPrefix(path, "s3://")
	if idx := strings.IndexByte(path, '/'); idx >= 0 {
		return path[:idx], path[idx+1:]
	}
	return path, ""
}
