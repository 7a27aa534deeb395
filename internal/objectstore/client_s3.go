// Package objectstore adapts an S3-compatible bucket to the three-way
// reconciler's Store interface.
package objectstore

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// encodeTagging renders a tag map as the URL-encoded "key1=val1&key2=val2"
// string S3's PutObject Tagging header expects, in stable key order so
// repeated puts of the same tag set produce identical requests.
func encodeTagging(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := url.Values{}
	for _, k := range keys {
		values.Set(k, tags[k])
	}
	return values.Encode()
}

// Client is the S3-backed Store implementation.
type Client struct {
	s3Client *s3.Client
	config   *Config
}

var _ Store = (*Client)(nil)

// New wraps an already-constructed s3.Client. Exposed mainly for tests that
// supply a client pointed at a local test endpoint.
func New(s3Client *s3.Client, cfg *Config) *Client {
	return &Client{s3Client: s3Client, config: cfg}
}

// NewFromConfig builds an s3.Client from static credentials and an optional
// path-style endpoint, tuned for the sustained connection reuse a reconciler
// loop produces rather than bursty one-shot requests.
func NewFromConfig(ctx context.Context, cfg *Config) (*Client, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			MaxIdleConns:          200,
			MaxIdleConnsPerHost:   100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ForceAttemptHTTP2:     true,
		},
		Timeout: 60 * time.Second,
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.UseAccelerate {
			o.UseAccelerate = true
		}
	})

	return New(s3Client, cfg), nil
}

func stripQuotes(etag string) string {
	return strings.ReplaceAll(etag, "\"", "")
}

func (c *Client) ListRecursive(ctx context.Context, prefix string) ([]Object, error) {
	var objects []Object

	paginator := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket: &c.config.BucketName,
		Prefix: &prefix,
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, Object{
				Key:          aws.ToString(obj.Key),
				ETag:         stripQuotes(aws.ToString(obj.ETag)),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	return objects, nil
}

func (c *Client) Get(ctx context.Context, key string) (*GetResult, error) {
	resp, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket:       &c.config.BucketName,
		Key:          &key,
		ChecksumMode: types.ChecksumModeEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return &GetResult{
		Body:         resp.Body,
		Size:         aws.ToInt64(resp.ContentLength),
		ETag:         stripQuotes(aws.ToString(resp.ETag)),
		LastModified: aws.ToTime(resp.LastModified),
	}, nil
}

func (c *Client) Put(ctx context.Context, params PutParams) (*PutResult, error) {
	input := &s3.PutObjectInput{
		Bucket:        &c.config.BucketName,
		Key:           &params.Key,
		Body:          params.Body,
		ContentLength: aws.Int64(params.Size),
	}
	if len(params.Metadata) > 0 {
		input.Metadata = params.Metadata
	}
	if len(params.Tags) > 0 {
		input.Tagging = aws.String(encodeTagging(params.Tags))
	}

	resp, err := c.s3Client.PutObject(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("put %q: %w", params.Key, err)
	}
	return &PutResult{
		Key:          params.Key,
		Size:         params.Size,
		ETag:         stripQuotes(aws.ToString(resp.ETag)),
		LastModified: time.Now().UTC(),
	}, nil
}

func (c *Client) Copy(ctx context.Context, sourceKey, destinationKey string) (*CopyResult, error) {
	resp, err := c.s3Client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     &c.config.BucketName,
		CopySource: aws.String(fmt.Sprintf("%s/%s", c.config.BucketName, sourceKey)),
		Key:        &destinationKey,
	})
	if err != nil {
		return nil, fmt.Errorf("copy %q -> %q: %w", sourceKey, destinationKey, err)
	}
	return &CopyResult{
		ETag:         stripQuotes(aws.ToString(resp.CopyObjectResult.ETag)),
		LastModified: aws.ToTime(resp.CopyObjectResult.LastModified),
	}, nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &c.config.BucketName,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}
