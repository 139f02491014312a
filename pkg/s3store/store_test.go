package s3store

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	method      string
	path        string
	contentType string
	body        []byte
}

func (r *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r.method = req.Method
	r.path = req.URL.Path
	r.contentType = req.Header.Get("Content-Type")
	if req.Body != nil {
		r.body, _ = io.ReadAll(req.Body)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(nil)),
		Header:     http.Header{"Etag": {"\"etag\""}},
		Request:    req,
	}, nil
}

func TestStoreUpload(t *testing.T) {
	transport := &recordingTransport{}
	store, err := New(context.Background(), Config{
		Bucket:          "archives",
		Endpoint:        "https://mock.s3.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		PathStyle:       true,
		Prefix:          "/exports/",
		HTTPClient:      &http.Client{Transport: transport},
	}, zerolog.Nop())
	require.NoError(t, err)

	payload := []byte("PK\x03\x04 zipped survey")
	url, err := store.Upload(context.Background(), "survey-1/survey.zip", bytes.NewReader(payload))
	require.NoError(t, err)

	require.Equal(t, http.MethodPut, transport.method)
	require.Equal(t, "/archives/exports/survey-1/survey.zip", transport.path)
	require.Equal(t, "application/zip", transport.contentType)
	require.Equal(t, payload, transport.body)
	require.True(t, strings.HasPrefix(url, "https://mock.s3.local/archives/exports/survey-1/survey.zip?"))
	require.Contains(t, url, "X-Amz-Signature=")
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{}, zerolog.Nop())
	require.Error(t, err)
}
