package storage

import (
	"context"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves one bucket with the given objects over path-style requests.
func fakeS3(t *testing.T, bucket string, objects map[string]string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		name, key, _ := strings.Cut(path, "/")
		if name != bucket {
			writeS3Error(w, http.StatusNotFound, "NoSuchBucket")
			return
		}
		if key == "" {
			if r.URL.Query().Has("location") {
				w.Header().Set("Content-Type", "application/xml")
				_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><LocationConstraint xmlns="http://s3.amazonaws.com/doc/2006-03-01/">us-east-1</LocationConstraint>`))
				return
			}
			w.WriteHeader(http.StatusOK)
			return
		}
		body, ok := objects[key]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("Last-Modified", "Mon, 19 Oct 2026 10:00:00 GMT")
		w.Header().Set("ETag", `"abc"`)
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>` + code + `</Code><Message>` + code + `</Message></Error>`))
}

func TestStoreLoad(t *testing.T) {
	endpoint := fakeS3(t, "code", map[string]string{"samples/app.py": "import json\n"})

	s, err := New(context.Background(), endpoint, "us-east-1", "code", "minio", "minio123", false)
	require.NoError(t, err)

	got, err := s.Load(context.Background(), "samples/app.py")
	require.NoError(t, err)
	assert.Equal(t, "import json\n", got)
}

func TestStoreLoadMissingObject(t *testing.T) {
	endpoint := fakeS3(t, "code", nil)

	s, err := New(context.Background(), endpoint, "us-east-1", "code", "minio", "minio123", false)
	require.NoError(t, err)

	_, err = s.Load(context.Background(), "nope.py")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestNewMissingBucket(t *testing.T) {
	endpoint := fakeS3(t, "code", nil)

	_, err := New(context.Background(), endpoint, "us-east-1", "other", "minio", "minio123", false)
	assert.Error(t, err)
}

func TestStoreCheck(t *testing.T) {
	endpoint := fakeS3(t, "code", nil)

	s, err := New(context.Background(), endpoint, "us-east-1", "code", "minio", "minio123", false)
	require.NoError(t, err)
	assert.NoError(t, s.Check(context.Background()))
}
