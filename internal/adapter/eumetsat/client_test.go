package eumetsat

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fbattini/meteosat-europe-bot/internal/domain"
)

const (
	testCollection = "EO:EUM:DAT:MSG:HRSEVIRI"
	testToken      = "test-access-token"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient points all three endpoints at the given test server.
func newTestClient(srvURL string) *Client {
	c := NewClient("key", "secret", testCollection, 5*time.Second, discardLogger())
	c.tokenURL = srvURL + "/token"
	c.searchURL = srvURL + "/search"
	c.dataURL = srvURL + "/data"
	return c
}

func tokenHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok, "token request must use basic auth")
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: testToken,
			ExpiresIn:   3600,
		}))
	}
}

func TestClient_Search_Success(t *testing.T) {
	window := domain.SearchWindow{
		Start: time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC),
		BBox:  domain.EuropeBBox,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler(t))
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, testCollection, q.Get("pi"))
		assert.Equal(t, "2026-03-14T00:00:00Z", q.Get("dtstart"))
		assert.Equal(t, "2026-03-15T00:00:00Z", q.Get("dtend"))
		assert.Equal(t, "-25.0,33.0,45.0,72.0", q.Get("bbox"))
		assert.Equal(t, "start,time,1", q.Get("sort"))

		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{
			"properties": {"totalResults": 2},
			"features": [
				{"properties": {
					"identifier": "MSG4-SEVI-MSG15-0100-NA-20260314001242",
					"date": "2026-03-14T00:00:00Z/2026-03-14T00:12:42Z",
					"productInformation": {"size": 270000000, "quality": "NOMINAL"}
				}},
				{"properties": {
					"identifier": "MSG4-SEVI-MSG15-0100-NA-20260314002742",
					"date": "2026-03-14T00:15:00Z/2026-03-14T00:27:42Z",
					"productInformation": {"size": 270000000, "quality": "DEGRADED"}
				}}
			]
		}`))
		require.NoError(t, err)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(srv.URL)
	products, err := c.Search(context.Background(), window)
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, "MSG4-SEVI-MSG15-0100-NA-20260314001242", products[0].ID)
	assert.Equal(t, testCollection, products[0].Collection)
	assert.Equal(t, time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC), products[0].SensedAt)
	assert.False(t, products[0].QualityDegraded())
	assert.True(t, products[1].QualityDegraded())
}

func TestClient_Search_Empty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler(t))
	mux.HandleFunc("/search", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"properties": {"totalResults": 0}, "features": []}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(srv.URL)
	products, err := c.Search(context.Background(), domain.SearchWindow{BBox: domain.EuropeBBox})
	require.NoError(t, err, "an empty result set is not an error")
	assert.Empty(t, products)
}

func TestClient_Search_AuthFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Search(context.Background(), domain.SearchWindow{BBox: domain.EuropeBBox})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestClient_TokenReuse(t *testing.T) {
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		tokenHandler(t)(w, r)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"properties": {"totalResults": 0}, "features": []}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(srv.URL)
	for i := 0; i < 3; i++ {
		_, err := c.Search(context.Background(), domain.SearchWindow{BBox: domain.EuropeBBox})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, tokenCalls, "token must be cached until expiry")
}

func TestClient_Download(t *testing.T) {
	archive := []byte("fake-zip-bytes")
	product := domain.ProductRef{ID: "MSG4-SEVI-MSG15-0100-NA-20260314001242", Collection: testCollection}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler(t))
	mux.HandleFunc("/data/collections/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.EscapedPath(), "products/"+product.ID)
		_, _ = w.Write(archive)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(srv.URL)
	dest := filepath.Join(t.TempDir(), "product.zip")
	require.NoError(t, c.Download(context.Background(), product, dest))

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, archive, got)
}

func TestClient_Download_ServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler(t))
	mux.HandleFunc("/data/", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newTestClient(srv.URL)
	dest := filepath.Join(t.TempDir(), "product.zip")
	err := c.Download(context.Background(), domain.ProductRef{ID: "p1", Collection: testCollection}, dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
