package s3infra

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockS3 struct{ mock.Mock }

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func TestUpload(t *testing.T) {
	api := &mockS3{}
	api.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		body, _ := io.ReadAll(in.Body)
		return *in.Bucket == "reports" &&
			*in.Key == "dispatch-reports/r1/run.json" &&
			*in.ContentType == "application/json" &&
			string(body) == `{"ok":true}`
	})).Return(&s3.PutObjectOutput{}, nil)

	store := NewReportStore(api, "reports")
	loc, err := store.Upload(context.Background(), "dispatch-reports/r1/run.json", strings.NewReader(`{"ok":true}`), "application/json")

	require.NoError(t, err)
	assert.Equal(t, "s3://reports/dispatch-reports/r1/run.json", loc)
	api.AssertExpectations(t)
}

func TestUpload_Error(t *testing.T) {
	api := &mockS3{}
	api.On("PutObject", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

	_, err := NewReportStore(api, "reports").Upload(context.Background(), "k", strings.NewReader("x"), "text/plain")
	assert.ErrorContains(t, err, "s3 put object")
}
