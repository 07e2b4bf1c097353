package objectstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3StorePut(t *testing.T) {
	fake := &fakeS3{}
	store := NewS3Store(fake, "factory-bucket")

	require.NoError(t, store.Put(context.Background(), "iot-data/batch_x.csv", []byte("a,b\n"), "text/csv"))
	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, "factory-bucket", aws.ToString(in.Bucket))
	assert.Equal(t, "iot-data/batch_x.csv", aws.ToString(in.Key))
	assert.Equal(t, "text/csv", aws.ToString(in.ContentType))
	assert.Equal(t, int64(4), aws.ToInt64(in.ContentLength))
	assert.Equal(t, []byte("a,b\n"), fake.bodies[0])
	assert.Equal(t, "s3://factory-bucket", store.Name())
}

func TestS3StorePropagatesErrors(t *testing.T) {
	down := errors.New("service unavailable")
	store := NewS3Store(&fakeS3{err: down}, "b")

	assert.ErrorIs(t, store.Put(context.Background(), "k", nil, "text/csv"), down)
	assert.ErrorIs(t, store.Put(context.Background(), "", nil, "text/csv"), ErrEmptyKey)
}

func TestLocalStorePutOverwrites(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "iot-data/batch_2024-01-01T10-00-00.csv", []byte("first"), "text/csv"))
	require.NoError(t, store.Put(ctx, "iot-data/batch_2024-01-01T10-00-00.csv", []byte("second"), "text/csv"))

	got, err := os.ReadFile(filepath.Join(root, "iot-data", "batch_2024-01-01T10-00-00.csv"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(filepath.Join(root, "iot-data"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestLocalStoreKeepsKeysInsideRoot(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), "../../escape.csv", []byte("x"), "text/csv"))
	_, err = os.Stat(filepath.Join(root, "escape.csv"))
	assert.NoError(t, err)

	assert.Error(t, store.Put(context.Background(), "dir/", []byte("x"), "text/csv"))
	assert.ErrorIs(t, store.Put(context.Background(), "", []byte("x"), "text/csv"), ErrEmptyKey)
}
