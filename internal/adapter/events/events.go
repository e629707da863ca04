// Package events implements the global events-export source adapter:
// fetches the upstream "last update" manifest, downloads the latest
// zipped tab-separated export, and maps each row to a RawItem.
package events

import (
	"archive/zip"
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/osint-ingest/internal/domain"
)

// Name is the adapter's registry key.
const Name = "events"

const (
	colGlobalEventID  = 0
	colDate           = 1
	colActor1Name     = 6
	colActor1Country  = 7
	colActor2Name     = 16
	colActor2Country  = 17
	colEventRootCode  = 26
	colEventCode      = 27
	colActionGeoFull  = 49
	colActionGeoLat   = 53
	colActionGeoLong  = 54
	colSourceURL      = 57
	minColumns        = 58
)

// categoryByRootCode maps the fixed 20 CAMEO root event codes to a
// category label; unknown codes fall back to "unknown".
var categoryByRootCode = map[string]string{
	"01": "public_statement",
	"02": "appeal",
	"03": "cooperation",
	"04": "consultation",
	"05": "diplomacy",
	"06": "material_cooperation",
	"07": "aid",
	"08": "concession",
	"09": "investigation",
	"10": "demand",
	"11": "disapproval",
	"12": "rejection",
	"13": "threat",
	"14": "protest",
	"15": "force_posture",
	"16": "reduce_relations",
	"17": "coercion",
	"18": "assault",
	"19": "fight",
	"20": "mass_violence",
}

// Adapter fetches and parses events-export rows.
type Adapter struct {
	baseURL        string
	focusCountries map[string]struct{}
	httpClient     *http.Client
	logger         *slog.Logger
}

// New creates an events-export adapter. focusCountries may be empty, which
// means no country filter is applied.
func New(baseURL string, focusCountries []string, logger *slog.Logger) *Adapter {
	set := make(map[string]struct{}, len(focusCountries))
	for _, c := range focusCountries {
		set[strings.ToUpper(strings.TrimSpace(c))] = struct{}{}
	}
	return &Adapter{
		baseURL:        baseURL,
		focusCountries: set,
		httpClient:     &http.Client{},
		logger:         logger,
	}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Fetch(ctx context.Context) ([]domain.RawItem, error) {
	exportURL, err := a.latestExportURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("events adapter: manifest fetch: %w", err)
	}
	if exportURL == "" {
		a.logger.Warn("events adapter: no export URL found in manifest")
		return nil, nil
	}

	rows, err := a.downloadRows(ctx, exportURL)
	if err != nil {
		return nil, fmt.Errorf("events adapter: download: %w", err)
	}

	items := make([]domain.RawItem, 0, len(rows))
	for _, row := range rows {
		item, ok := a.rowToRawItem(row)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	a.logger.Info("events adapter: fetched items", "raw_rows", len(rows), "kept", len(items))
	return items, nil
}

// latestExportURL fetches the 3-line, space-delimited manifest and returns
// the URL of the line whose filename ends with ".export.CSV.zip".
func (a *Adapter) latestExportURL(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	manifestURL := a.baseURL + "/lastupdate.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("manifest status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 3 && strings.HasSuffix(fields[2], ".export.CSV.zip") {
			return fields[2], nil
		}
	}
	return "", scanner.Err()
}

func (a *Adapter) downloadRows(ctx context.Context, exportURL string) ([][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("export status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("unzip export: %w", err)
	}
	var csvFile *zip.File
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, ".CSV") {
			csvFile = f
			break
		}
	}
	if csvFile == nil {
		return nil, fmt.Errorf("no .CSV entry in export zip")
	}

	rc, err := csvFile.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	reader.Comma = '\t'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader.ReadAll()
}

func (a *Adapter) rowToRawItem(row []string) (domain.RawItem, bool) {
	if len(row) < minColumns {
		return domain.RawItem{}, false
	}

	eventID := col(row, colGlobalEventID)
	if eventID == "" {
		return domain.RawItem{}, false
	}

	actor1 := col(row, colActor1Name)
	actor2 := col(row, colActor2Name)
	country1 := strings.ToUpper(col(row, colActor1Country))
	country2 := strings.ToUpper(col(row, colActor2Country))

	if len(a.focusCountries) > 0 {
		_, ok1 := a.focusCountries[country1]
		_, ok2 := a.focusCountries[country2]
		if !ok1 && !ok2 {
			return domain.RawItem{}, false
		}
	}

	rootCode := col(row, colEventRootCode)
	category, ok := categoryByRootCode[rootCode]
	if !ok {
		category = "unknown"
	}

	title := buildTitle(actor1, category, actor2, eventID)
	publishedAt := parseGDELTDate(col(row, colDate))
	sourceURL := col(row, colSourceURL)

	var authors []string
	if actor1 != "" {
		authors = append(authors, actor1)
	}
	if actor2 != "" {
		authors = append(authors, actor2)
	}

	return domain.RawItem{
		SourceAdapter: Name,
		ExternalID:    domain.NewExternalID("gdelt", eventID),
		Title:         title,
		Authors:       authors,
		PublishedAt:   publishedAt,
		SourceURL:     sourceURL,
		Metadata: map[string]any{
			"event_code":      col(row, colEventCode),
			"event_root_code": rootCode,
			"category":        category,
			"actor1":          actor1,
			"actor1_country":  country1,
			"actor2":          actor2,
			"actor2_country":  country2,
			"location":        col(row, colActionGeoFull),
			"latitude":        parseFloatOrNil(col(row, colActionGeoLat)),
			"longitude":       parseFloatOrNil(col(row, colActionGeoLong)),
		},
	}, true
}

func buildTitle(actor1, category, actor2, eventID string) string {
	parts := make([]string, 0, 3)
	if actor1 != "" {
		parts = append(parts, actor1)
	}
	parts = append(parts, strings.ReplaceAll(category, "_", " "))
	if actor2 != "" {
		parts = append(parts, actor2)
	}
	if len(parts) == 0 {
		return "event " + eventID
	}
	return strings.Join(parts, " · ")
}

func col(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseFloatOrNil(s string) any {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return v
}

func parseGDELTDate(s string) *time.Time {
	if len(s) < 8 {
		return nil
	}
	t, err := time.Parse("20060102", s[:8])
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
