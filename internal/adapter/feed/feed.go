// Package feed implements the RSS/Atom source adapter: a list of feed URLs
// in, one RawItem per entry out.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	neturl "net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/couchcryptid/osint-ingest/internal/domain"
)

// Name is the adapter's registry key.
const Name = "rss"

// Adapter fetches and parses a configured list of RSS/Atom feed URLs.
type Adapter struct {
	urls   []string
	parser *gofeed.Parser
	scrub  *bluemonday.Policy
	logger *slog.Logger
}

// New creates a feed adapter over the given feed URLs.
func New(urls []string, logger *slog.Logger) *Adapter {
	return &Adapter{
		urls:   urls,
		parser: gofeed.NewParser(),
		scrub:  bluemonday.StrictPolicy(),
		logger: logger,
	}
}

func (a *Adapter) Name() string { return Name }

// Fetch parses every configured feed URL and returns a flat list of items.
// A malformed feed yields zero entries rather than an error; only a
// network-level failure propagates to the caller.
func (a *Adapter) Fetch(ctx context.Context) ([]domain.RawItem, error) {
	var items []domain.RawItem
	for _, url := range a.urls {
		feedItems, err := a.parseFeed(ctx, url)
		if err != nil {
			var netErr *neturl.Error
			if errors.As(err, &netErr) {
				return nil, fmt.Errorf("feed adapter: %s: %w", url, err)
			}
			a.logger.Warn("feed adapter: failed to parse feed", "url", url, "error", err)
			continue
		}
		items = append(items, feedItems...)
		a.logger.Info("feed adapter: fetched items", "url", url, "count", len(feedItems))
	}
	return items, nil
}

func (a *Adapter) parseFeed(ctx context.Context, url string) ([]domain.RawItem, error) {
	feed, err := a.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		// Fetch returns a network-level error to its caller; any other
		// failure (bad status, malformed XML with no recoverable entries)
		// is logged there and the feed contributes no items.
		return nil, err
	}

	items := make([]domain.RawItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		items = append(items, a.entryToRawItem(entry, url))
	}
	return items, nil
}

func (a *Adapter) entryToRawItem(entry *gofeed.Item, feedURL string) domain.RawItem {
	link := entry.Link
	if link == "" {
		link = feedURL
	}
	externalID := domain.NewExternalID("rss", link)

	summary := a.stripHTML(entry.Description)
	content := ""
	if entry.Content != "" {
		content = a.stripHTML(entry.Content)
	}

	var authors []string
	for _, p := range entry.Authors {
		if p != nil && strings.TrimSpace(p.Name) != "" {
			authors = append(authors, strings.TrimSpace(p.Name))
		}
	}
	if len(authors) == 0 && entry.Author != nil && entry.Author.Name != "" {
		authors = parseAuthorList(entry.Author.Name)
	}

	tags := make([]string, 0, len(entry.Categories))
	tags = append(tags, entry.Categories...)

	return domain.RawItem{
		SourceAdapter: Name,
		ExternalID:    externalID,
		Title:         entry.Title,
		Content:       content,
		Summary:       summary,
		Authors:       authors,
		PublishedAt:   resolvePublishedAt(entry),
		SourceURL:     link,
		Metadata: map[string]any{
			"feed_url": feedURL,
			"tags":     tags,
		},
	}
}

func (a *Adapter) stripHTML(html string) string {
	if html == "" {
		return ""
	}
	text := a.scrub.Sanitize(html)
	return strings.Join(strings.Fields(text), " ")
}

func parseAuthorList(raw string) []string {
	var authors []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			authors = append(authors, trimmed)
		}
	}
	return authors
}

// resolvePublishedAt tries, in order: structured published time, structured
// updated time, free-form published string (RFC 2822), free-form updated
// string. Returns nil if none resolve.
func resolvePublishedAt(entry *gofeed.Item) *time.Time {
	if entry.PublishedParsed != nil {
		t := entry.PublishedParsed.UTC()
		return &t
	}
	if entry.UpdatedParsed != nil {
		t := entry.UpdatedParsed.UTC()
		return &t
	}
	if t, ok := parseRFC2822(entry.Published); ok {
		return &t
	}
	if t, ok := parseRFC2822(entry.Updated); ok {
		return &t
	}
	return nil
}

func parseRFC2822(raw string) (time.Time, bool) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, false
	}
	t, err := mail.ParseDate(raw)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
