package archive

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	f.body, _ = io.ReadAll(params.Body)
	return &s3.PutObjectOutput{}, f.err
}

func TestS3Put(t *testing.T) {
	t.Parallel()

	fake := &fakeS3{}
	a := &S3{client: fake, bucket: "cvs", prefix: "uploads"}

	uri, err := a.Put(context.Background(), "run-1/cv.pdf", []byte("%PDF"), "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, "s3://cvs/uploads/run-1/cv.pdf", uri)
	assert.Equal(t, "cvs", aws.ToString(fake.input.Bucket))
	assert.Equal(t, "uploads/run-1/cv.pdf", aws.ToString(fake.input.Key))
	assert.Equal(t, "application/pdf", aws.ToString(fake.input.ContentType))
	assert.Equal(t, []byte("%PDF"), fake.body)
}

func TestS3PutError(t *testing.T) {
	t.Parallel()

	a := &S3{client: &fakeS3{err: errors.New("denied")}, bucket: "cvs"}
	_, err := a.Put(context.Background(), "cv.pdf", nil, "application/pdf")
	require.Error(t, err)
}

func TestNewS3RequiresBucket(t *testing.T) {
	t.Parallel()

	_, err := NewS3(context.Background(), S3Config{})
	require.Error(t, err)
}

func TestNop(t *testing.T) {
	t.Parallel()

	uri, err := Nop{}.Put(context.Background(), "k", []byte("x"), "text/plain")
	require.NoError(t, err)
	assert.Empty(t, uri)
}
