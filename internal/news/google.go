package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"crisiswatch/internal/model"
)

// GoogleOptions parameterise the Google News RSS source.
type GoogleOptions struct {
	BaseURL  string
	Language string
	Country  string
	Timeout  time.Duration
	MaxItems int
}

// GoogleRSS fetches headlines from the Google News search RSS feed.
type GoogleRSS struct {
	opts    GoogleOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	now     func() time.Time
}

// NewGoogleRSS constructs an RSS news source.
func NewGoogleRSS(opts GoogleOptions, logger zerolog.Logger) *GoogleRSS {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://news.google.com/rss/search"
	}

	if opts.Language == "" {
		opts.Language = "en-US"
	}
	if opts.Country == "" {
		opts.Country = "US"
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = 25
	}

	return &GoogleRSS{
		opts:    opts,
		logger:  logger.With().Str("component", "news").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		now:     time.Now,
	}
}

// SearchNews queries the feed and returns articles published within the
// trailing window. Items without a parseable publish time are dropped.
func (g *GoogleRSS) SearchNews(ctx context.Context, query string, windowMinutes int) ([]model.NewsArticle, error) {
	if query == "" {
		return nil, nil
	}
	if windowMinutes <= 0 {
		windowMinutes = 30
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL, nil)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("hl", g.opts.Language)
	q.Set("gl", g.opts.Country)
	q.Set("ceid", fmt.Sprintf("%s:%s", g.opts.Country, strings.SplitN(g.opts.Language, "-", 2)[0]))
	req.URL.RawQuery = q.Encode()

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news feed error (%d)", resp.StatusCode)
	}

	var feed rssFeed
	if err := xml.Unmarshal(payload, &feed); err != nil {
		return nil, fmt.Errorf("decode rss feed: %w", err)
	}

	cutoff := g.now().UTC().Add(-time.Duration(windowMinutes) * time.Minute)

	articles := make([]model.NewsArticle, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		if len(articles) >= g.opts.MaxItems {
			break
		}
		if item.Title == "" || item.PubDate == "" {
			continue
		}
		published, ok := parsePubDate(item.PubDate)
		if !ok {
			g.logger.Debug().Str("pub_date", item.PubDate).Msg("dropping article with unparseable timestamp")
			continue
		}
		if published.Before(cutoff) {
			continue
		}
		articles = append(articles, model.NewsArticle{
			Title:       item.Title,
			Link:        item.Link,
			PublishedAt: published,
		})
	}

	g.logger.Debug().Str("query", query).Int("found", len(articles)).Int("window_mins", windowMinutes).Msg("news search complete")
	return articles, nil
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
}

func parsePubDate(value string) (time.Time, bool) {
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

type rssFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
}

var _ Source = (*GoogleRSS)(nil)
