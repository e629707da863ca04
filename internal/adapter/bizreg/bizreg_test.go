package bizreg_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/osint-ingest/internal/adapter/bizreg"
	"github.com/couchcryptid/osint-ingest/internal/domain"
)

type nilWriter struct{}

func (nilWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nilWriter{}, nil))
}

func TestAdapter_Fetch_MapsCompanyFields(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"vat":          "12345678",
			"name":         "Acme A/S",
			"industrydesc": "Manufacturing",
			"startdate":    "01/06 - 2010",
			"owners": []map[string]any{
				{"name": "Jane Doe"},
				{"name": "John Smith"},
			},
			"address": "Main Street 1",
			"zipcode": "1000",
			"city":    "Copenhagen",
		})
	}))
	defer srv.Close()

	a := bizreg.New(srv.URL, "secret-token", []string{"acme"}, discardLogger())
	items, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, bizreg.Name, item.SourceAdapter)
	assert.Equal(t, domain.NewExternalID("cvr", "12345678"), item.ExternalID)
	assert.Equal(t, "Acme A/S (CVR: 12345678)", item.Title)
	assert.Equal(t, []string{"Jane Doe", "John Smith"}, item.Authors)
	assert.Equal(t, "https://datacvr.virk.dk/enhed/virksomhed/12345678", item.SourceURL)
	require.NotNil(t, item.PublishedAt)
	assert.Equal(t, 2010, item.PublishedAt.Year())
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "Main Street 1, 1000, Copenhagen", item.Metadata["address"])
}

func TestAdapter_Fetch_NoAPIKeyOmitsAuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	a := bizreg.New(srv.URL, "", []string{"acme"}, discardLogger())
	_, err := a.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestAdapter_Fetch_UnparseableDateYieldsNilPublishedAt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"vat": "1", "name": "X", "startdate": "not-a-date",
		})
	}))
	defer srv.Close()

	a := bizreg.New(srv.URL, "", []string{"x"}, discardLogger())
	items, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].PublishedAt)
}

func TestAdapter_Fetch_EmptyResponseYieldsNoItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{})
	}))
	defer srv.Close()

	a := bizreg.New(srv.URL, "", []string{"nonexistent co"}, discardLogger())
	items, err := a.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAdapter_Fetch_HTTPErrorIsSkippedNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := bizreg.New(srv.URL, "", []string{"x"}, discardLogger())
	items, err := a.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}
