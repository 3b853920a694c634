package payloads

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/drivekeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	s3API

	objects   map[string][]byte
	putErr    error
	getErr    error
	lastRange string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Key] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	out := &s3.GetObjectOutput{}
	if in.Range != nil {
		f.lastRange = *in.Range
		// the fake only understands "bytes=2-4"
		out.ContentRange = aws.String("bytes 2-4/" + strconv.Itoa(len(b)))
		b = b[2:5]
	}
	out.Body = io.NopCloser(bytes.NewReader(b))
	return out, nil
}

func TestNewS3Store_AppliesConfig(t *testing.T) {
	origLoad, origNew := loadDefaultAWSConfig, newS3ClientFromConfig
	t.Cleanup(func() { loadDefaultAWSConfig, newS3ClientFromConfig = origLoad, origNew })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		return aws.Config{}, nil
	}

	var opts s3.Options
	fake := &fakeS3{objects: map[string][]byte{}}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		for _, fn := range optFns {
			fn(&opts)
		}
		return fake
	}

	s, err := NewS3Store(context.Background(), S3Config{Region: "us-east-1", Bucket: "drive", BaseEndpoint: "http://minio:9000/"})
	require.NoError(t, err)
	assert.Equal(t, "drive", s.bucket)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://minio:9000/", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Store_ConfigError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}

	_, err := NewS3Store(context.Background(), S3Config{})
	require.ErrorContains(t, err, "no config")
}

func TestS3Store_PutGet(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	s := &S3Store{client: fake, bucket: "drive"}

	require.NoError(t, s.Put(ctx, "k", []byte("0123456789")))

	whole, err := s.Get(ctx, "k", nil)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(whole.Body))
	assert.False(t, whole.Partial)

	part, err := s.Get(ctx, "k", &Range{Start: 2, End: 4})
	require.NoError(t, err)
	assert.Equal(t, "bytes=2-4", fake.lastRange)
	assert.Equal(t, "234", string(part.Body))
	assert.True(t, part.Partial)
	assert.Equal(t, int64(2), part.Start)
	assert.Equal(t, int64(4), part.End)
	assert.Equal(t, int64(10), part.Size)
}

func TestS3Store_Errors(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	s := &S3Store{client: fake, bucket: "drive"}

	_, err := s.Get(ctx, "missing", nil)
	require.ErrorIs(t, err, common.ErrNotFound)

	fake.putErr = errors.New("denied")
	require.ErrorContains(t, s.Put(ctx, "k", nil), "denied")

	fake.getErr = errors.New("network")
	_, err = s.Get(ctx, "k", nil)
	require.ErrorContains(t, err, "network")
}

func TestRangeHeaderAndParse(t *testing.T) {
	assert.Equal(t, "bytes=5-", rangeHeader(Range{Start: 5, End: -1}))
	assert.Equal(t, "bytes=0-15", rangeHeader(Range{Start: 0, End: 15}))

	s, e, n, ok := parseContentRange("bytes 16-31/1008")
	require.True(t, ok)
	assert.Equal(t, []int64{16, 31, 1008}, []int64{s, e, n})

	_, _, _, ok = parseContentRange("bytes */1008")
	assert.False(t, ok)
}
