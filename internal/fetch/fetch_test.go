package fetch

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zippyst/internal/extract"
	"zippyst/internal/httputil"
)

func newTestFetcher() *Fetcher {
	return New(httputil.NewClient(httputil.Options{Timeout: 5 * time.Second}), nil)
}

func payload(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "extract", "testdata", "2022_07_18.html"))
	require.NoError(t, err)
	return data
}

func TestFetch(t *testing.T) {
	var agent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>ok ñ</html>"))
	}))
	defer srv.Close()

	got, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/v/abc/file.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>ok ñ</html>", got)
	assert.Equal(t, httputil.DefaultUserAgent, agent)
}

func TestFetchDecodesCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write([]byte("<html>\xf1</html>"))
	}))
	defer srv.Close()

	got, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>ñ</html>", got)
}

func TestFetchDecodesMetaCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.Write([]byte("<html><head><meta charset=\"iso-8859-1\"></head>\xf1</html>"))
	}))
	defer srv.Close()

	got, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, `<html><head><meta charset="iso-8859-1"></head>ñ</html>`, got)
}

func TestFetchAcceptsPageAtSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(bytes.Repeat([]byte("a"), maxPageSize))
	}))
	defer srv.Close()

	got, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, got, maxPageSize)
}

func TestFetchFollowsOneRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v/abc/file.html", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/v/abc/moved.html", http.StatusFound)
	})
	mux.HandleFunc("/v/abc/moved.html", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("moved"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	got, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/v/abc/file.html")
	require.NoError(t, err)
	assert.Equal(t, "moved", got)
}

func TestFetchErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/no-location", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("/bad-location", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "javascript:alert(1)")
		w.WriteHeader(http.StatusMovedPermanently)
	})
	mux.HandleFunc("/twice", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/twice-again", http.StatusFound)
	})
	mux.HandleFunc("/twice-again", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/to-missing", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/missing", http.StatusFound)
	})
	mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/bad-utf8", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html>\xff\xfe bad</html>"))
	})
	mux.HandleFunc("/bad-utf8-untyped", func(w http.ResponseWriter, r *http.Request) {
		w.Header()["Content-Type"] = nil
		w.Write([]byte("<html>\xff\xfe bad</html>"))
	})
	mux.HandleFunc("/too-large", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(bytes.Repeat([]byte("a"), maxPageSize+1))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	tests := []struct {
		name string
		url  string
		want error
	}{
		{"not found", srv.URL + "/missing", ErrInvalidStatusCode},
		{"server error", srv.URL + "/error", ErrInvalidStatusCode},
		{"redirect without location", srv.URL + "/no-location", ErrRedirection},
		{"redirect to bad scheme", srv.URL + "/bad-location", ErrRedirection},
		{"second redirect", srv.URL + "/twice", ErrInvalidStatusCode},
		{"redirect to missing", srv.URL + "/to-missing", ErrInvalidStatusCode},
		{"invalid utf-8", srv.URL + "/bad-utf8", ErrInvalidUTF8PageContent},
		{"invalid utf-8 without content type", srv.URL + "/bad-utf8-untyped", ErrInvalidUTF8PageContent},
		{"page too large", srv.URL + "/too-large", ErrContentStreamingFailure},
		{"invalid url", "ftp://example.com/file", ErrInvalidURL},
		{"unreachable", "http://127.0.0.1:1/", ErrContentFetching},
	}

	f := newTestFetcher()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), tt.url)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFetchCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("late"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher().Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, ErrContentFetching)
}

func TestFetchAndResolve(t *testing.T) {
	body := payload(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write(body)
	}))
	defer srv.Close()

	file, err := newTestFetcher().FetchAndResolve(context.Background(), srv.URL+"/v/CDCi2wVT/file.html")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", file.Domain)
	assert.Equal(t, "https://127.0.0.1/d/CDCi2wVT/196/Gillette%20Commercial.mp4", file.FullLink())
}

func TestFetchAndResolveScriptMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>gone</body></html>"))
	}))
	defer srv.Close()

	_, err := newTestFetcher().FetchAndResolve(context.Background(), srv.URL+"/v/x/file.html")
	assert.ErrorIs(t, err, extract.ErrScriptNotFound)
}
