package snapshot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/chepyr/go-kanban/internal/config"
	"github.com/chepyr/go-kanban/internal/store"
	"github.com/chepyr/go-kanban/internal/store/storetest"
	"github.com/chepyr/go-kanban/shared/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps objects of one bucket in memory.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
	types   map[string]string
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{bucket: bucket, objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if aws.ToString(in.Bucket) != f.bucket {
		return nil, &smithy.GenericAPIError{Code: "NotFound", Message: "bucket not found"}
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	f.types[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "no such key"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func seededStore(t *testing.T) (*storetest.Memory, models.Board) {
	t.Helper()
	ctx := context.Background()
	mem := storetest.NewMemory()
	b, err := mem.InsertBoard(ctx, models.Board{Title: "Release"})
	require.NoError(t, err)
	todo, err := mem.InsertList(ctx, models.List{BoardID: b.ID, Title: "Todo"})
	require.NoError(t, err)
	done, err := mem.InsertList(ctx, models.List{BoardID: b.ID, Title: "Done"})
	require.NoError(t, err)
	for _, c := range []models.Card{
		{ListID: done.ID, Title: "Tag"},
		{ListID: todo.ID, Title: "Changelog"},
		{ListID: todo.ID, Title: "Announce"},
	} {
		_, err := mem.InsertCard(ctx, c)
		require.NoError(t, err)
	}
	return mem, b
}

func TestTake_OrdersListsAndCards(t *testing.T) {
	mem, b := seededStore(t)
	snap, err := Take(context.Background(), mem, b.ID)
	require.NoError(t, err)

	assert.Equal(t, b.ID, snap.Board.ID)
	require.Len(t, snap.Lists, 2)
	assert.Equal(t, "Todo", snap.Lists[0].Title)
	var titles []string
	for _, c := range snap.Cards {
		titles = append(titles, c.Title)
	}
	assert.Equal(t, []string{"Changelog", "Announce", "Tag"}, titles)
	assert.False(t, snap.TakenAt.IsZero())
}

func TestTake_UnknownBoard(t *testing.T) {
	mem, _ := seededStore(t)
	_, err := Take(context.Background(), mem, uuid.New())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestS3Store_SaveLoad(t *testing.T) {
	ctx := context.Background()
	mem, b := seededStore(t)
	snap, err := Take(ctx, mem, b.ID)
	require.NoError(t, err)

	api := newFakeS3("kanban")
	st := NewS3Store(api, "kanban")
	require.NoError(t, st.EnsureBucket(ctx))

	key, err := st.Save(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, "boards/"+b.ID.String()+"/snapshot.json", key)
	assert.Equal(t, "application/json", api.types[key])

	got, err := st.Load(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.Board.ID, got.Board.ID)
	assert.Len(t, got.Lists, 2)
	assert.Len(t, got.Cards, 3)
	assert.True(t, snap.TakenAt.Equal(got.TakenAt))
}

func TestS3Store_Errors(t *testing.T) {
	ctx := context.Background()

	missing := NewS3Store(newFakeS3("kanban"), "other")
	require.ErrorIs(t, missing.EnsureBucket(ctx), ErrBucketNotFound)

	st := NewS3Store(newFakeS3("kanban"), "kanban")
	_, err := st.Load(ctx, uuid.New())
	require.ErrorIs(t, err, ErrNotFound)

	api := newFakeS3("kanban")
	api.objects[Key(uuid.Nil)] = []byte("{not json")
	_, err = NewS3Store(api, "kanban").Load(ctx, uuid.Nil)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestNewS3Client(t *testing.T) {
	ctx := context.Background()
	c, err := NewS3Client(ctx, config.S3Config{
		Endpoint: "http://localhost:9000", Region: "us-east-1",
		AccessKey: "minio", SecretKey: "minio123", UsePathStyle: true,
	})
	require.NoError(t, err)
	assert.True(t, c.Options().UsePathStyle)
	assert.Equal(t, "http://localhost:9000", aws.ToString(c.Options().BaseEndpoint))

	_, err = NewS3Client(ctx, config.S3Config{Endpoint: "not a url", Region: "us-east-1"})
	require.Error(t, err)
}
