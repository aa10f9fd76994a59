// Package cloud archives snapshots in S3 and forwards alarms to SNS.
package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ohowland/powersim/internal/pkg/snapshot"
)

const snapshotPrefix = "snapshots/"

// objectAPI is the subset of *s3.Client used by S3Store.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// S3Store is a snapshot.Store backed by an S3 bucket.
type S3Store struct {
	svc    objectAPI
	bucket string
}

func NewS3Store(ctx context.Context, region, bucket string) (*S3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &S3Store{svc: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

func objectKey(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid snapshot name %q", name)
	}
	return snapshotPrefix + name + ".json", nil
}

func (s *S3Store) Save(ctx context.Context, name string, d snapshot.Document) error {
	key, err := objectKey(name)
	if err != nil {
		return err
	}
	data, err := snapshot.Encode(d)
	if err != nil {
		return err
	}
	_, err = s.svc.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"tick": fmt.Sprint(d.Tick),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot: %w", err)
	}
	return nil
}

func (s *S3Store) Load(ctx context.Context, name string) (snapshot.Document, error) {
	key, err := objectKey(name)
	if err != nil {
		return snapshot.Document{}, err
	}
	out, err := s.svc.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	var missing *types.NoSuchKey
	if errors.As(err, &missing) {
		return snapshot.Document{}, fmt.Errorf("%w: %s", snapshot.ErrNotFound, name)
	}
	if err != nil {
		return snapshot.Document{}, fmt.Errorf("failed to download snapshot: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return snapshot.Document{}, fmt.Errorf("failed to read snapshot body: %w", err)
	}
	return snapshot.Decode(data)
}

// List returns the names of all archived snapshots.
func (s *S3Store) List(ctx context.Context) ([]string, error) {
	p := s3.NewListObjectsV2Paginator(s.svc, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(snapshotPrefix),
	})
	var names []string
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list snapshots: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			names = append(names, strings.TrimSuffix(path.Base(key), ".json"))
		}
	}
	return names, nil
}
