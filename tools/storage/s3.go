package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store implements Store backed by S3. Paths map to object keys; a leading slash is ignored
// and "directories" are key prefixes.
type S3Store struct {
	bucket string
	s3     s3API
}

func NewS3Store(s3Client s3API, bucket string) *S3Store {
	return &S3Store{
		bucket: bucket,
		s3:     s3Client,
	}
}

func (s *S3Store) List(ctx context.Context, dir string) ([]string, error) {
	prefix := toKey(dir)
	if prefix != "" {
		prefix += "/"
	}

	seen := map[string]bool{}
	p := s3.NewListObjectsV2Paginator(s.s3, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list recipe objects in S3: %w", err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if name != "" {
				seen[name] = true
			}
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name != "" {
				seen[name] = true
			}
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("list s3://%s/%s: %w", s.bucket, prefix, ErrNotFound)
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *S3Store) Read(ctx context.Context, p string) ([]byte, error) {
	key := toKey(p)
	resp, err := s.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("read s3://%s/%s: %w", s.bucket, key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get recipe object from S3: %w", err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// toKey maps a store path to an object key: "./recipes/" and "/recipes" both become "recipes".
func toKey(p string) string {
	k := strings.TrimLeft(path.Clean(strings.ReplaceAll(p, "\\", "/")), "/")
	if k == "." {
		return ""
	}
	return k
}
