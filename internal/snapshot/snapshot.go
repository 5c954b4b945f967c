// Package snapshot exports a board with its lists and cards as one JSON
// document to S3 or any S3-compatible store such as MinIO.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/chepyr/go-kanban/internal/config"
	"github.com/chepyr/go-kanban/internal/position"
	"github.com/chepyr/go-kanban/internal/store"
	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("snapshot not found")
	ErrBucketNotFound = errors.New("bucket does not exist")
)

type Snapshot struct {
	Board   models.Board  `json:"board"`
	Lists   []models.List `json:"lists"`
	Cards   []models.Card `json:"cards"`
	TakenAt time.Time     `json:"taken_at"`
}

// Take reads a board and everything on it from st. Lists come ordered by
// position, cards by list then position.
func Take(ctx context.Context, st store.Store, board uuid.UUID) (Snapshot, error) {
	boards, err := st.SelectBoards(ctx, store.ID(board))
	if err != nil {
		return Snapshot{}, err
	}
	if len(boards) == 0 {
		return Snapshot{}, store.Wrap(store.Boards, store.OpSelect, store.ID(board), store.ErrNotFound)
	}
	lists, err := st.SelectLists(ctx, store.Board(board))
	if err != nil {
		return Snapshot{}, err
	}
	cards, err := st.SelectCards(ctx, store.Board(board))
	if err != nil {
		return Snapshot{}, err
	}
	lists = position.Sorted(lists)
	ordered := make([]models.Card, 0, len(cards))
	for _, l := range lists {
		ordered = append(ordered, position.Siblings(cards, l.ID)...)
	}
	return Snapshot{Board: boards[0], Lists: lists, Cards: ordered, TakenAt: time.Now().UTC()}, nil
}

// Key is the object key of a board's snapshot.
func Key(board uuid.UUID) string {
	return "boards/" + board.String() + "/snapshot.json"
}

// ObjectAPI is the part of *s3.Client the store uses.
type ObjectAPI interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type S3Store struct {
	api    ObjectAPI
	bucket string
}

func NewS3Store(api ObjectAPI, bucket string) *S3Store {
	return &S3Store{api: api, bucket: bucket}
}

// NewS3Client builds a client from cfg. An empty endpoint means AWS itself;
// otherwise requests go to the endpoint, path-style when configured.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	if cfg.Endpoint != "" {
		if u, err := url.Parse(cfg.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid S3 endpoint %q", cfg.Endpoint)
		}
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

func (s *S3Store) EnsureBucket(ctx context.Context) error {
	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		if isCode(err, "NotFound", "NoSuchBucket") {
			return fmt.Errorf("%w: %s", ErrBucketNotFound, s.bucket)
		}
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Save writes snap under Key(snap.Board.ID) and returns the key.
func (s *S3Store) Save(ctx context.Context, snap Snapshot) (string, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	key := Key(snap.Board.ID)
	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}

func (s *S3Store) Load(ctx context.Context, board uuid.UUID) (Snapshot, error) {
	key := Key(board)
	resp, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isCode(err, "NoSuchKey", "NotFound") {
			return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return Snapshot{}, fmt.Errorf("get %s: %w", key, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read %s: %w", key, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode %s: %w", key, err)
	}
	return snap, nil
}

func isCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, c := range codes {
		if apiErr.ErrorCode() == c {
			return true
		}
	}
	return false
}
