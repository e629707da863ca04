package events_test

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/osint-ingest/internal/adapter/events"
	"github.com/couchcryptid/osint-ingest/internal/domain"
)

type nilWriter struct{}

func (nilWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nilWriter{}, nil))
}

func buildRow(eventID, date, actor1, country1, actor2, country2, rootCode, eventCode string) []string {
	row := make([]string, 58)
	row[0] = eventID
	row[1] = date
	row[6] = actor1
	row[7] = country1
	row[16] = actor2
	row[17] = country2
	row[26] = rootCode
	row[27] = eventCode
	row[49] = "Berlin, Germany"
	row[53] = "52.52"
	row[54] = "13.405"
	row[57] = "https://news.example.com/story"
	return row
}

func writeCSVZip(t *testing.T, rows [][]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("20060102.export.CSV")
	require.NoError(t, err)
	for _, row := range rows {
		_, err := fmt.Fprintln(f, strings.Join(row, "\t"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newTestServer(t *testing.T, rows [][]string) *httptest.Server {
	t.Helper()
	zipBytes := writeCSVZip(t, rows)

	mux := http.NewServeMux()
	mux.HandleFunc("/lastupdate.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "123 abcd http://"+r.Host+"/export/20060102.export.CSV.zip")
	})
	mux.HandleFunc("/export/20060102.export.CSV.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write(zipBytes)
	})
	return httptest.NewServer(mux)
}

func TestAdapter_Fetch_ParsesRows(t *testing.T) {
	rows := [][]string{
		buildRow("1001", "20260101", "GERMANY", "GM", "FRANCE", "FR", "04", "042"),
	}
	srv := newTestServer(t, rows)
	defer srv.Close()

	a := events.New(srv.URL, nil, discardLogger())
	items, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, events.Name, item.SourceAdapter)
	assert.Equal(t, domain.NewExternalID("gdelt", "1001"), item.ExternalID)
	assert.Contains(t, item.Title, "GERMANY")
	assert.Contains(t, item.Title, "consultation")
	assert.Equal(t, "https://news.example.com/story", item.SourceURL)
	require.NotNil(t, item.PublishedAt)
	assert.Equal(t, 2026, item.PublishedAt.Year())
	assert.Equal(t, "consultation", item.Metadata["category"])
}

func TestAdapter_Fetch_FiltersByFocusCountry(t *testing.T) {
	rows := [][]string{
		buildRow("1001", "20260101", "GERMANY", "GM", "FRANCE", "FR", "04", "042"),
		buildRow("1002", "20260101", "JAPAN", "JA", "KOREA", "KS", "04", "042"),
	}
	srv := newTestServer(t, rows)
	defer srv.Close()

	a := events.New(srv.URL, []string{"gm"}, discardLogger())
	items, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.NewExternalID("gdelt", "1001"), items[0].ExternalID)
}

func TestAdapter_Fetch_UnknownRootCodeMapsToUnknown(t *testing.T) {
	rows := [][]string{
		buildRow("2001", "20260101", "GERMANY", "GM", "FRANCE", "FR", "99", "990"),
	}
	srv := newTestServer(t, rows)
	defer srv.Close()

	a := events.New(srv.URL, nil, discardLogger())
	items, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "unknown", items[0].Metadata["category"])
}

func TestAdapter_Fetch_NoManifestEntryYieldsNoItems(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/lastupdate.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "not a valid manifest line")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	a := events.New(srv.URL, nil, discardLogger())
	items, err := a.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}
