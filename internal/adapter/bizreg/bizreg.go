// Package bizreg implements the business-registry source adapter: given a
// list of search terms, it queries a company registry HTTP API and maps
// each result to a RawItem. Mirrors the public CVR API's shape (one JSON
// object per search term, not a results array).
package bizreg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/osint-ingest/internal/domain"
)

// Name is the adapter's registry key.
const Name = "bizreg"

// dateLayouts are tried in order against the registry's free-form
// "startdate" field; the upstream API is inconsistent about format.
var dateLayouts = []string{
	"02/01 - 2006",
	"2006-01-02",
	"02-01-2006",
}

// company is the registry API's single-object response shape for a search
// term.
type company struct {
	VAT             string   `json:"vat"`
	Name            string   `json:"name"`
	Owners          []person `json:"owners"`
	Address         string   `json:"address"`
	Zipcode         string   `json:"zipcode"`
	City            string   `json:"city"`
	IndustryDesc    string   `json:"industrydesc"`
	IndustryCode    any      `json:"industrycode"`
	CompanyDesc     string   `json:"companydesc"`
	Email           string   `json:"email"`
	Phone           string   `json:"phone"`
	Country         string   `json:"country"`
	Status          string   `json:"status"`
	StartDate       string   `json:"startdate"`
}

type person struct {
	Name string `json:"name"`
}

// Adapter queries a business-registry HTTP API for a configured list of
// search terms, one GET per term.
type Adapter struct {
	apiURL     string
	apiKey     string
	terms      []string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a business-registry adapter. apiKey may be empty, in which
// case requests are sent without an Authorization header.
func New(apiURL, apiKey string, terms []string, logger *slog.Logger) *Adapter {
	return &Adapter{
		apiURL:     apiURL,
		apiKey:     apiKey,
		terms:      terms,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		logger:     logger,
	}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Fetch(ctx context.Context) ([]domain.RawItem, error) {
	var items []domain.RawItem
	for _, term := range a.terms {
		c, err := a.search(ctx, term)
		if err != nil {
			var netErr *url.Error
			if errors.As(err, &netErr) {
				return nil, fmt.Errorf("bizreg adapter: %q: %w", term, err)
			}
			a.logger.Warn("bizreg adapter: search failed", "term", term, "error", err)
			continue
		}
		item, ok := companyToRawItem(c)
		if !ok {
			continue
		}
		items = append(items, item)
	}
	a.logger.Info("bizreg adapter: fetched companies", "terms", len(a.terms), "count", len(items))
	return items, nil
}

func (a *Adapter) search(ctx context.Context, term string) (company, error) {
	params := url.Values{
		"search":  {term},
		"country": {"dk"},
	}
	reqURL := a.apiURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return company{}, err
	}
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return company{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return company{}, fmt.Errorf("registry status %d", resp.StatusCode)
	}

	var c company
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return company{}, fmt.Errorf("decode registry response: %w", err)
	}
	return c, nil
}

func companyToRawItem(c company) (domain.RawItem, bool) {
	vat := strings.TrimSpace(c.VAT)
	name := strings.TrimSpace(c.Name)
	if vat == "" && name == "" {
		return domain.RawItem{}, false
	}

	directors := directorNames(c.Owners)
	address := joinNonEmpty(", ", c.Address, c.Zipcode, c.City)

	title := name
	if vat != "" {
		title = fmt.Sprintf("%s (CVR: %s)", name, vat)
	}

	var sourceURL string
	if vat != "" {
		sourceURL = fmt.Sprintf("https://datacvr.virk.dk/enhed/virksomhed/%s", vat)
	}

	country := c.Country
	if country == "" {
		country = "dk"
	}

	return domain.RawItem{
		SourceAdapter: Name,
		ExternalID:    domain.NewExternalID("cvr", vat),
		Title:         title,
		Summary:       fmt.Sprintf("Danish company: %s. Industry: %s.", name, c.IndustryDesc),
		Authors:       directors,
		PublishedAt:   parseRegistrationDate(c.StartDate),
		SourceURL:     sourceURL,
		Metadata: map[string]any{
			"cvr_number":            vat,
			"company_name":          name,
			"address":               address,
			"industry_code":         c.IndustryCode,
			"industry_description":  c.IndustryDesc,
			"company_type":          c.CompanyDesc,
			"email":                 c.Email,
			"phone":                 c.Phone,
			"country":               country,
			"status":                c.Status,
		},
	}, true
}

func directorNames(owners []person) []string {
	var directors []string
	for _, p := range owners {
		if name := strings.TrimSpace(p.Name); name != "" {
			directors = append(directors, name)
		}
	}
	return directors
}

func joinNonEmpty(sep string, parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, sep)
}

func parseRegistrationDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
