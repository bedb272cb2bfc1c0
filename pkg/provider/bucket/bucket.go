// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bucket is the production backend: any S3-compatible object store,
// Google Cloud Storage through its interoperability endpoint by default.
package bucket

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/amiller-gh/hoist/pkg/config"
	"github.com/amiller-gh/hoist/pkg/hash"
	"github.com/amiller-gh/hoist/pkg/provider"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ContentSizeMetadata carries the uncompressed size of an object.
const ContentSizeMetadata = "x-content-size"

var _ provider.Provider = (*Bucket)(nil)

func init() {
	provider.Register("bucket", New)
}

// 🪣 Bucket talks to one bucket through the S3 API
type Bucket struct {
	client   *s3.Client
	name     string
	location string
	timeout  time.Duration
}

// 🏭 New builds an S3 client for cfg.Endpoint. Static keys from the config
// win over the default AWS credential chain.
func New(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true
		// GCS and most S3 clones reject the newer default checksums
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *s3.Client, cfg *config.Config) *Bucket {
	timeout := cfg.OpTimeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}
	return &Bucket{
		client:   client,
		name:     cfg.Bucket,
		location: cfg.Location,
		timeout:  timeout,
	}
}

func (b *Bucket) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.timeout)
}

// 🏗️ Init creates the bucket when missing and configures website routing
// and CORS. Website and CORS failures are logged; some S3 clones lack them.
func (b *Bucket) Init(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)

	tctx, cancel := b.withTimeout(ctx)
	defer cancel()

	_, err := b.client.HeadBucket(tctx, &s3.HeadBucketInput{Bucket: aws.String(b.name)})
	if err != nil {
		if !isNotFound(err) {
			return errors.Errorf("checking bucket %s: %w", b.name, err)
		}
		logger.Info().Str("bucket", b.name).Str("location", b.location).Msg("creating bucket")
		input := &s3.CreateBucketInput{Bucket: aws.String(b.name)}
		if b.location != "" {
			input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
				LocationConstraint: types.BucketLocationConstraint(b.location),
			}
		}
		if _, err := b.client.CreateBucket(tctx, input); err != nil {
			return errors.Errorf("creating bucket %s: %w", b.name, err)
		}
	}

	_, err = b.client.PutBucketCors(tctx, &s3.PutBucketCorsInput{
		Bucket: aws.String(b.name),
		CORSConfiguration: &types.CORSConfiguration{
			CORSRules: []types.CORSRule{{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "HEAD", "POST"},
				AllowedHeaders: []string{"Authorization", "Origin", "X-Requested-With", "Content-Type", "Accept"},
				MaxAgeSeconds:  aws.Int32(3600),
			}},
		},
	})
	if err != nil {
		logger.Warn().Err(err).Str("bucket", b.name).Msg("configuring cors")
	}

	_, err = b.client.PutBucketWebsite(tctx, &s3.PutBucketWebsiteInput{
		Bucket: aws.String(b.name),
		WebsiteConfiguration: &types.WebsiteConfiguration{
			IndexDocument: &types.IndexDocument{Suffix: aws.String("index.html")},
			ErrorDocument: &types.ErrorDocument{Key: aws.String("404.html")},
		},
	})
	if err != nil {
		logger.Warn().Err(err).Str("bucket", b.name).Msg("configuring website")
	}

	return nil
}

func (b *Bucket) publicPolicy() (string, error) {
	policy := map[string]any{
		"Version": "2012-10-17",
		"Statement": []map[string]any{{
			"Sid":       "HoistPublicRead",
			"Effect":    "Allow",
			"Principal": "*",
			"Action":    []string{"s3:GetObject"},
			"Resource":  []string{"arn:aws:s3:::" + b.name + "/*"},
		}},
	}
	data, err := json.Marshal(policy)
	if err != nil {
		return "", errors.Errorf("encoding bucket policy: %w", err)
	}
	return string(data), nil
}

// 🔓 MakePublic applies a public-read policy, falling back to a canned ACL
// on stores without policy support.
func (b *Bucket) MakePublic(ctx context.Context) error {
	tctx, cancel := b.withTimeout(ctx)
	defer cancel()

	policy, err := b.publicPolicy()
	if err != nil {
		return err
	}
	_, err = b.client.PutBucketPolicy(tctx, &s3.PutBucketPolicyInput{
		Bucket: aws.String(b.name),
		Policy: aws.String(policy),
	})
	if err == nil {
		return nil
	}
	zerolog.Ctx(ctx).Debug().Err(err).Msg("bucket policy rejected, using acl")

	_, err = b.client.PutBucketAcl(tctx, &s3.PutBucketAclInput{
		Bucket: aws.String(b.name),
		ACL:    types.BucketCannedACLPublicRead,
	})
	if err != nil {
		return errors.Errorf("making %s public: %w", b.name, err)
	}
	return nil
}

// 🔒 MakePrivate removes the public-read policy and resets the ACL.
func (b *Bucket) MakePrivate(ctx context.Context) error {
	tctx, cancel := b.withTimeout(ctx)
	defer cancel()

	_, err := b.client.DeleteBucketPolicy(tctx, &s3.DeleteBucketPolicyInput{Bucket: aws.String(b.name)})
	if err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("deleting bucket policy")
	}

	_, err = b.client.PutBucketAcl(tctx, &s3.PutBucketAclInput{
		Bucket: aws.String(b.name),
		ACL:    types.BucketCannedACLPrivate,
	})
	if err != nil {
		return errors.Errorf("making %s private: %w", b.name, err)
	}
	return nil
}

func (b *Bucket) Get(ctx context.Context, name string) ([]byte, error) {
	tctx, cancel := b.withTimeout(ctx)
	defer cancel()

	out, err := b.client.GetObject(tctx, &s3.GetObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(name),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.Errorf("%w: %s", provider.ErrNotFound, name)
		}
		return nil, errors.Errorf("getting %s: %w", name, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Errorf("reading %s: %w", name, err)
	}
	return provider.Decode(data)
}

func (b *Bucket) List(ctx context.Context, prefix string) ([]provider.Object, error) {
	tctx, cancel := b.withTimeout(ctx)
	defer cancel()

	input := &s3.ListObjectsV2Input{Bucket: aws.String(b.name)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var out []provider.Object
	paginator := s3.NewListObjectsV2Paginator(b.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(tctx)
		if err != nil {
			return nil, errors.Errorf("listing %s/%s: %w", b.name, prefix, err)
		}
		for _, o := range page.Contents {
			out = append(out, fromListed(o))
		}
	}
	return out, nil
}

func (b *Bucket) Delete(ctx context.Context, name string) (bool, error) {
	tctx, cancel := b.withTimeout(ctx)
	defer cancel()

	_, err := b.client.DeleteObject(tctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(name),
	})
	if err != nil {
		return false, errors.Errorf("deleting %s: %w", name, err)
	}
	return true, nil
}

func (b *Bucket) Upload(ctx context.Context, buf []byte, name string, headers provider.Headers) (*provider.Object, error) {
	tctx, cancel := b.withTimeout(ctx)
	defer cancel()

	input := &s3.PutObjectInput{
		Bucket:        aws.String(b.name),
		Key:           aws.String(name),
		Body:          bytes.NewReader(buf),
		ContentLength: aws.Int64(int64(len(buf))),
		Metadata: map[string]string{
			ContentSizeMetadata: strconv.Itoa(headers.ContentSize),
		},
	}
	if headers.ContentType != "" {
		input.ContentType = aws.String(headers.ContentType)
	}
	if headers.ContentEncoding != "" {
		input.ContentEncoding = aws.String(headers.ContentEncoding)
	}
	if headers.CacheControl != "" {
		input.CacheControl = aws.String(headers.CacheControl)
	}

	out, err := b.client.PutObject(tctx, input)
	if err != nil {
		return nil, errors.Errorf("uploading %s: %w", name, err)
	}

	now := time.Now()
	obj := &provider.Object{
		Name:            name,
		ContentType:     headers.ContentType,
		ContentEncoding: headers.ContentEncoding,
		CacheControl:    headers.CacheControl,
		ContentSize:     int64(len(buf)),
		OriginalSize:    int64(headers.ContentSize),
		CreatedAt:       now,
		UpdatedAt:       now,
		ETag:            aws.ToString(out.ETag),
	}
	obj.ContentHash = etagHash(obj.ETag)
	return obj, nil
}

func (b *Bucket) URL() string {
	return "https://" + b.name
}

func fromListed(o types.Object) provider.Object {
	modified := aws.ToTime(o.LastModified)
	etag := aws.ToString(o.ETag)
	return provider.Object{
		Name:        aws.ToString(o.Key),
		ContentSize: aws.ToInt64(o.Size),
		CreatedAt:   modified,
		UpdatedAt:   modified,
		ETag:        etag,
		ContentHash: etagHash(etag),
	}
}

// etagHash converts a single-part ETag into a content fingerprint. Multipart
// ETags are not an md5 of the body and yield "".
func etagHash(etag string) string {
	if etag == "" || strings.Contains(etag, "-") {
		return ""
	}
	h, err := hash.FromMD5Hex(etag)
	if err != nil {
		return ""
	}
	return h
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return true
		}
	}
	return false
}
