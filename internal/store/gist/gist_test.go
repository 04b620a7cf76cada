package gist

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/trendsync/internal/infra/httpx"
	"github.com/John-Robertt/trendsync/internal/store"
)

// fakeGist 是一个内存版 gist API：GET 返回文件，PATCH 合并文件。
type fakeGist struct {
	mu         sync.Mutex
	files      map[string]gistFile
	patchFails int
	patches    int
	lastDesc   string
}

func (f *fakeGist) router(t *testing.T) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/gists/{id}", func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "token tok", req.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github.v3+json", req.Header.Get("Accept"))
		if mux.Vars(req)["id"] != "g1" {
			http.NotFound(w, req)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(gistDoc{Files: f.files})
	}).Methods(http.MethodGet)
	r.HandleFunc("/gists/{id}", func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.patches++
		if f.patchFails > 0 {
			f.patchFails--
			http.Error(w, "unavailable", http.StatusBadGateway)
			return
		}
		b, _ := io.ReadAll(req.Body)
		var doc gistDoc
		if err := json.Unmarshal(b, &doc); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.lastDesc = doc.Description
		for k, v := range doc.Files {
			f.files[k] = v
		}
		_, _ = w.Write([]byte(`{}`))
	}).Methods(http.MethodPatch)
	r.HandleFunc("/raw/{name}", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte("full content"))
	})
	return r
}

func newStore(t *testing.T, srvURL, gistID string) *Store {
	t.Helper()
	hc, err := httpx.New(httpx.Options{Policy: httpx.Policy{MaxAttempts: 3, Backoff: httpx.NoBackoff}})
	require.NoError(t, err)
	s, err := New(Options{BaseURL: srvURL, Token: "tok", GistID: gistID, HTTP: hc})
	require.NoError(t, err)
	return s
}

func TestStore_ReadWrite(t *testing.T) {
	fg := &fakeGist{files: map[string]gistFile{"other.json": {Content: "{}"}}}
	srv := httptest.NewServer(fg.router(t))
	defer srv.Close()
	s := newStore(t, srv.URL, "g1")

	_, found, err := s.Read(context.Background(), "doc.json")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Write(context.Background(), "doc.json", []byte(`{"a":1}`), "desc"))
	b, found, err := s.Read(context.Background(), "doc.json")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"a":1}`, string(b))
	assert.Equal(t, "desc", fg.lastDesc)
	assert.Contains(t, fg.files, "other.json", "PATCH 不应影响其他文件")
	assert.Equal(t, "gist:g1/doc.json", s.Location("doc.json"))
}

func TestStore_WriteRetriesTransientFailure(t *testing.T) {
	fg := &fakeGist{files: map[string]gistFile{}, patchFails: 2}
	srv := httptest.NewServer(fg.router(t))
	defer srv.Close()

	require.NoError(t, newStore(t, srv.URL, "g1").Write(context.Background(), "doc.json", []byte("x"), ""))
	assert.Equal(t, 3, fg.patches)
	assert.Equal(t, "x", fg.files["doc.json"].Content)
}

func TestStore_ReadTruncatedUsesRawURL(t *testing.T) {
	fg := &fakeGist{files: map[string]gistFile{}}
	srv := httptest.NewServer(fg.router(t))
	defer srv.Close()
	fg.files["big.json"] = gistFile{Content: "partial", Truncated: true, RawURL: srv.URL + "/raw/big.json"}

	b, found, err := newStore(t, srv.URL, "g1").Read(context.Background(), "big.json")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "full content", string(b))
}

func TestStore_MissingGistIsError(t *testing.T) {
	fg := &fakeGist{files: map[string]gistFile{}}
	srv := httptest.NewServer(fg.router(t))
	defer srv.Close()

	_, _, err := newStore(t, srv.URL, "nope").Read(context.Background(), "doc.json")
	var se *httpx.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestNew_RequiresCredentials(t *testing.T) {
	hc, err := httpx.New(httpx.Options{})
	require.NoError(t, err)
	_, err = New(Options{BaseURL: "http://x", GistID: "g", HTTP: hc})
	assert.Error(t, err)
	_, err = New(Options{BaseURL: "http://x", Token: "t", HTTP: hc})
	assert.Error(t, err)
}

func TestStore_ReadNonJSONEnvelopeIsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	_, found, err := newStore(t, srv.URL, "g1").Read(context.Background(), "icons.json")
	require.Error(t, err)
	assert.False(t, found)
	assert.True(t, errors.Is(err, store.ErrMalformed))
}
