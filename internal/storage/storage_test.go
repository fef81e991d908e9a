package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/coffersTech/dynamobackup/internal/config"
)

const minPartSize = 5 << 20

type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string][]byte
	parts     map[int32][]byte
	tagging   map[string][]types.Tag
	created   int
	aborted   int
	completed int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects: map[string][]byte{},
		parts:   map[int32][]byte{},
		tagging: map[string][]types.Tag{},
	}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String("upload-1")}, nil
}

func (f *fakeS3) UploadPart(_ context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.parts[aws.ToInt32(in.PartNumber)] = data
	return &s3.UploadPartOutput{ETag: aws.String("etag")}, nil
}

func (f *fakeS3) CompleteMultipartUpload(_ context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	numbers := make([]int, 0, len(f.parts))
	for n := range f.parts {
		numbers = append(numbers, int(n))
	}
	sort.Ints(numbers)
	var body []byte
	for _, n := range numbers {
		body = append(body, f.parts[int32(n)]...)
	}
	f.objects[aws.ToString(in.Key)] = body
	f.completed++
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted++
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) PutObjectTagging(_ context.Context, in *s3.PutObjectTaggingInput, _ ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tagging[aws.ToString(in.Key)] = in.Tagging.TagSet
	return &s3.PutObjectTaggingOutput{}, nil
}

func readLines(t *testing.T, r io.Reader, compression string) []string {
	t.Helper()
	lr, err := NewLineReader(r, compression)
	require.NoError(t, err)
	defer lr.Close()

	var lines []string
	for lr.Next() {
		lines = append(lines, string(lr.Line()))
	}
	require.NoError(t, lr.Err())
	return lines
}

func TestS3StoreSmallObject(t *testing.T) {
	for _, compression := range []string{config.CompressionNone, config.CompressionZstd, config.CompressionGzip} {
		t.Run(compression, func(t *testing.T) {
			client := newFakeS3()
			store, err := NewS3Store(client, "backups", compression, minPartSize, zaptest.NewLogger(t))
			require.NoError(t, err)

			w, err := store.Create(context.Background(), "2024/03/05/orders.json")
			require.NoError(t, err)
			require.NoError(t, w.WriteLine([]byte(`{"Id":{"S":"1"}}`)))
			require.NoError(t, w.WriteLine([]byte(`{"Id":{"S":"2"}}`)))
			require.NoError(t, w.Close())

			ext, _ := Extension(compression)
			key := "2024/03/05/orders.json" + ext
			assert.Equal(t, key, w.Key())
			require.Contains(t, client.objects, key)
			assert.Equal(t, []string{`{"Id":{"S":"1"}}`, `{"Id":{"S":"2"}}`},
				readLines(t, bytes.NewReader(client.objects[key]), compression))
		})
	}
}

func bigLine() []byte {
	return bytes.Repeat([]byte("x"), 1<<20)
}

func TestS3StoreMultipart(t *testing.T) {
	client := newFakeS3()
	store, err := NewS3Store(client, "backups", config.CompressionNone, minPartSize, zaptest.NewLogger(t))
	require.NoError(t, err)

	w, err := store.Create(context.Background(), "big.json")
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		require.NoError(t, w.WriteLine(bigLine()))
	}
	require.NoError(t, w.Close())

	assert.Equal(t, 1, client.created)
	assert.Equal(t, 1, client.completed)
	assert.Len(t, client.parts, 2)
	assert.Len(t, client.objects["big.json"], 7*(1<<20+1))
}

func TestS3StoreAbort(t *testing.T) {
	t.Run("before the first part", func(t *testing.T) {
		client := newFakeS3()
		store, err := NewS3Store(client, "backups", config.CompressionZstd, minPartSize, zaptest.NewLogger(t))
		require.NoError(t, err)

		w, err := store.Create(context.Background(), "orders.json")
		require.NoError(t, err)
		require.NoError(t, w.WriteLine([]byte(`{"Id":{"S":"1"}}`)))
		w.Abort(errors.New("unknown attribute type"))

		assert.Empty(t, client.objects)
		assert.Equal(t, 0, client.created)
	})

	t.Run("during a multipart upload", func(t *testing.T) {
		client := newFakeS3()
		store, err := NewS3Store(client, "backups", config.CompressionNone, minPartSize, zaptest.NewLogger(t))
		require.NoError(t, err)

		w, err := store.Create(context.Background(), "orders.json")
		require.NoError(t, err)
		for i := 0; i < 6; i++ {
			require.NoError(t, w.WriteLine(bigLine()))
		}
		w.Abort(errors.New("scan failed"))

		assert.Empty(t, client.objects)
		assert.Equal(t, 1, client.created)
		assert.Equal(t, 1, client.aborted)
		assert.Equal(t, 0, client.completed)
	})
}

func TestS3StoreSetTags(t *testing.T) {
	client := newFakeS3()
	store, err := NewS3Store(client, "backups", config.CompressionNone, minPartSize, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, store.SetTags(context.Background(), "orders.json", map[string]string{
		"TableName": "orders",
		"Frequency": "daily",
	}))
	assert.Equal(t, []types.Tag{
		{Key: aws.String("Frequency"), Value: aws.String("daily")},
		{Key: aws.String("TableName"), Value: aws.String("orders")},
	}, client.tagging["orders.json"])
}

func TestNewStoreUnknownCompression(t *testing.T) {
	_, err := NewS3Store(newFakeS3(), "backups", "lz4", minPartSize, zaptest.NewLogger(t))
	assert.ErrorContains(t, err, `unknown compression "lz4"`)
	_, err = NewFileStore(t.TempDir(), "lz4", zaptest.NewLogger(t))
	assert.ErrorContains(t, err, `unknown compression "lz4"`)
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, config.CompressionGzip, zaptest.NewLogger(t))
	require.NoError(t, err)
	ctx := context.Background()

	w, err := store.Create(ctx, "2024/03/05/orders-daily.json")
	require.NoError(t, err)
	require.NoError(t, w.WriteLine([]byte(`{"a":1}`)))

	path := filepath.Join(dir, "2024", "03", "05", "orders-daily.json.gz")
	assert.NoFileExists(t, path)
	require.NoError(t, w.Close())
	assert.Equal(t, "2024/03/05/orders-daily.json.gz", w.Key())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{`{"a":1}`}, readLines(t, f, CompressionOf(path)))

	tags, err := store.Tags(w.Key())
	require.NoError(t, err)
	assert.Empty(t, tags)

	require.NoError(t, store.SetTags(ctx, w.Key(), map[string]string{"TableName": "orders"}))
	tags, err = store.Tags(w.Key())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"TableName": "orders"}, tags)

	assert.Error(t, store.SetTags(ctx, "missing.json", map[string]string{"TableName": "x"}))
}

func TestFileStoreAbort(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, config.CompressionZstd, zaptest.NewLogger(t))
	require.NoError(t, err)

	w, err := store.Create(context.Background(), "orders.json")
	require.NoError(t, err)
	require.NoError(t, w.WriteLine([]byte(`{"a":1}`)))
	w.Abort(errors.New("boom"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), config.CompressionNone, zaptest.NewLogger(t))
	require.NoError(t, err)
	_, err = store.Create(context.Background(), "../outside.json")
	assert.ErrorContains(t, err, "invalid key")
}

func TestLineReader(t *testing.T) {
	input := "{\"a\":1}\n\n  \n{\"b\":2}\r\n{\"c\":3}"
	lr, err := NewLineReader(strings.NewReader(input), config.CompressionNone)
	require.NoError(t, err)

	var lines []string
	var numbers []int
	for lr.Next() {
		lines = append(lines, string(lr.Line()))
		numbers = append(numbers, lr.LineNo())
	}
	require.NoError(t, lr.Err())
	assert.Equal(t, []string{`{"a":1}`, `{"b":2}`, `{"c":3}`}, lines)
	assert.Equal(t, []int{1, 4, 5}, numbers)

	_, err = NewLineReader(strings.NewReader(""), "brotli")
	assert.Error(t, err)
}

func TestCompressionOf(t *testing.T) {
	assert.Equal(t, config.CompressionZstd, CompressionOf("a/b.json.zst"))
	assert.Equal(t, config.CompressionGzip, CompressionOf("b.json.gz"))
	assert.Equal(t, config.CompressionNone, CompressionOf("b.json"))
}
