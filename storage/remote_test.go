package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ruteri/private-chef-provisioner/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// kvServer is an in-memory stand-in for a Vault KV v2 mount.
type kvServer struct {
	mu      sync.Mutex
	token   string
	secrets map[string]map[string]any
}

func (s *kvServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/v1/sys/health" {
		json.NewEncoder(w).Encode(map[string]any{"initialized": true, "sealed": false, "standby": false})
		return
	}
	if r.Header.Get("X-Vault-Token") != s.token {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"errors":["permission denied"]}`)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/v1/")
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Method {
	case http.MethodPut, http.MethodPost:
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := body["data"].(map[string]any)
		s.secrets[path] = data
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"version": 1}})
	case http.MethodGet:
		data, ok := s.secrets[path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"errors":[]}`)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"data":     data,
				"metadata": map[string]any{"version": 1},
			},
		})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func TestVaultBackend_RoundTrip(t *testing.T) {
	kv := &kvServer{token: "s.escrow", secrets: map[string]map[string]any{}}
	srv := httptest.NewServer(kv)
	defer srv.Close()

	backend, err := NewVaultBackend(srv.URL, "secret", "private-chef/chef01", "s.escrow", testLogger)
	require.NoError(t, err)
	require.True(t, backend.Available(context.Background()))

	id, err := backend.Store(context.Background(), webuiKeyPEM, interfaces.SecretType)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeID(webuiKeyPEM), id)

	stored, ok := kv.secrets["secret/data/private-chef/chef01/secret/"+id.String()]
	require.True(t, ok, "stored under the KV v2 data path")
	assert.Equal(t, string(webuiKeyPEM), stored["content"])

	data, err := backend.Fetch(context.Background(), id, interfaces.SecretType)
	require.NoError(t, err)
	assert.Equal(t, webuiKeyPEM, data)

	_, err = backend.Fetch(context.Background(), id, interfaces.ConfigType)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}

func TestVaultBackend_MalformedSecret(t *testing.T) {
	kv := &kvServer{token: "s.escrow", secrets: map[string]map[string]any{}}
	srv := httptest.NewServer(kv)
	defer srv.Close()

	backend, err := NewVaultBackend(srv.URL, "secret", "", "s.escrow", testLogger)
	require.NoError(t, err)

	id := interfaces.ComputeID(snapshotDoc)
	kv.secrets["secret/data/config/"+id.String()] = map[string]any{"value": "no content key"}

	_, err = backend.Fetch(context.Background(), id, interfaces.ConfigType)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content key not found")
}

func TestVaultBackend_PermissionDenied(t *testing.T) {
	kv := &kvServer{token: "s.escrow", secrets: map[string]map[string]any{}}
	srv := httptest.NewServer(kv)
	defer srv.Close()

	backend, err := NewVaultBackend(srv.URL, "secret", "private-chef", "s.wrong", testLogger)
	require.NoError(t, err)

	_, err = backend.Store(context.Background(), webuiKeyPEM, interfaces.SecretType)
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
}

// s3Server is an in-memory stand-in for one path-style S3 bucket.
type s3Server struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
	headers map[string]http.Header
}

func (s *s3Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	prefix := "/" + s.bucket
	if !strings.HasPrefix(r.URL.Path, prefix) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `<Error><Code>NoSuchBucket</Code><Message>no such bucket</Message></Error>`)
		return
	}
	key := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, prefix), "/")

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case r.Method == http.MethodHead && key == "":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.objects[key] = body
		s.headers[key] = r.Header.Clone()
		w.Header().Set("ETag", `"stored"`)
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		body, ok := s.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Write(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newS3Fake(t *testing.T) (*s3Server, *S3Backend) {
	t.Helper()
	fake := &s3Server{bucket: "escrow", objects: map[string][]byte{}, headers: map[string]http.Header{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	backend, err := NewS3Backend(S3Options{
		Bucket:    "escrow",
		Prefix:    "chef01",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "AKIDESCROW",
		SecretKey: "escrow-secret",
		PathStyle: true,
	}, testLogger)
	require.NoError(t, err)
	return fake, backend
}

func TestS3Backend_RoundTrip(t *testing.T) {
	fake, backend := newS3Fake(t)
	require.True(t, backend.Available(context.Background()))

	id, err := backend.Store(context.Background(), webuiKeyPEM, interfaces.SecretType)
	require.NoError(t, err)
	assert.Equal(t, interfaces.ComputeID(webuiKeyPEM), id)

	key := "chef01/secrets/" + id.String()
	require.Contains(t, fake.objects, key)
	assert.Equal(t, webuiKeyPEM, fake.objects[key])
	assert.Equal(t, "private", fake.headers[key].Get("X-Amz-Acl"))
	assert.Equal(t, "AES256", fake.headers[key].Get("X-Amz-Server-Side-Encryption"))

	data, err := backend.Fetch(context.Background(), id, interfaces.SecretType)
	require.NoError(t, err)
	assert.Equal(t, webuiKeyPEM, data)
}

func TestS3Backend_MissingObject(t *testing.T) {
	_, backend := newS3Fake(t)

	_, err := backend.Fetch(context.Background(), interfaces.ComputeID(snapshotDoc), interfaces.ConfigType)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)
}
