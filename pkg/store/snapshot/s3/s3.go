// Package s3 stores encoded full-image updates in S3-compatible object
// storage.
//
// A consumer whose sequence gap reaches past the changelog's retention
// horizon, or one bootstrapping from nothing, fetches the newest snapshot
// here instead of asking the authority to rebuild one on demand.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/karstio/pathsync/internal/logger"
	"github.com/karstio/pathsync/pkg/update"
)

// Store persists full-image updates as objects named by sequence number.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// Config configures a snapshot store over an existing S3 client.
type Config struct {
	// Client is the S3 client to use (required)
	Client *s3.Client

	// Bucket is the bucket holding snapshots (required)
	Bucket string

	// KeyPrefix namespaces snapshot objects within the bucket (optional)
	KeyPrefix string
}

// New creates a snapshot store. The bucket must already exist.
func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("snapshot store: S3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("snapshot store: bucket is required")
	}

	prefix := cfg.KeyPrefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &Store{
		client: cfg.Client,
		bucket: cfg.Bucket,
		prefix: prefix,
	}, nil
}

// key names the snapshot object for one sequence number. Zero-padding keeps
// lexicographic object order equal to numeric sequence order, so the newest
// snapshot is the last key in a listing.
func (s *Store) key(seq uint64) string {
	return fmt.Sprintf("%ssnapshot-%020d", s.prefix, seq)
}

// Put uploads a full-image update. Fails if the update is not a full image:
// deltas are useless for bootstrap and must never shadow a snapshot.
func (s *Store) Put(ctx context.Context, u *update.PathsUpdate) error {
	if !u.HasFullImage() {
		return fmt.Errorf("snapshot store: refusing to store delta seq=%d as snapshot", u.SeqNum())
	}

	data, err := u.Encode()
	if err != nil {
		return err
	}

	key := s.key(u.SeqNum())
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("put snapshot %s: %w", key, err)
	}

	logger.Info("Stored snapshot seq=%d (%d bytes) at s3://%s/%s", u.SeqNum(), len(data), s.bucket, key)
	return nil
}

// Latest downloads and decodes the newest snapshot. Returns nil, nil when
// the bucket holds no snapshots under this store's prefix.
func (s *Store) Latest(ctx context.Context) (*update.PathsUpdate, error) {
	var newest string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix + "snapshot-"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		for _, object := range page.Contents {
			if object.Key != nil && *object.Key > newest {
				newest = *object.Key
			}
		}
	}
	if newest == "" {
		return nil, nil
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(newest),
	})
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", newest, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", newest, err)
	}
	return update.Decode(data)
}

// Prune removes all but the newest keep snapshots. Returns the keys that
// were deleted.
func (s *Store) Prune(ctx context.Context, keep int) ([]string, error) {
	if keep < 1 {
		keep = 1
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix + "snapshot-"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		for _, object := range page.Contents {
			if object.Key != nil {
				keys = append(keys, *object.Key)
			}
		}
	}
	if len(keys) <= keep {
		return nil, nil
	}

	sort.Strings(keys)
	doomed := keys[:len(keys)-keep]
	for _, key := range doomed {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, fmt.Errorf("delete snapshot %s: %w", key, err)
		}
	}
	return doomed, nil
}
