package news

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var feedNow = time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)

func rssBody(items ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel>`)
	for _, item := range items {
		b.WriteString(item)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func rssItemXML(title string, publishedAt time.Time) string {
	return fmt.Sprintf(
		`<item><title>%s</title><link>https://example.invalid/a</link><pubDate>%s</pubDate></item>`,
		title, publishedAt.Format(time.RFC1123Z),
	)
}

func newTestRSS(t *testing.T, handler http.HandlerFunc) (*GoogleRSS, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	source := NewGoogleRSS(GoogleOptions{BaseURL: srv.URL}, zerolog.Nop())
	source.now = func() time.Time { return feedNow }
	return source, srv.Close
}

func TestSearchNewsParsesFeed(t *testing.T) {
	source, closeSrv := newTestRSS(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "ACME fraud" {
			t.Fatalf("query = %q, want %q", got, "ACME fraud")
		}
		if got := r.URL.Query().Get("ceid"); got != "US:en" {
			t.Fatalf("ceid = %q, want US:en", got)
		}
		fmt.Fprint(w, rssBody(
			rssItemXML("ACME fraud probe", feedNow.Add(-10*time.Minute)),
			rssItemXML("ACME denies wrongdoing", feedNow.Add(-20*time.Minute)),
		))
	})
	defer closeSrv()

	articles, err := source.SearchNews(context.Background(), "ACME fraud", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("articles = %d, want 2", len(articles))
	}
	if articles[0].Title != "ACME fraud probe" {
		t.Fatalf("title = %q", articles[0].Title)
	}
	if articles[0].PublishedAt.Location() != time.UTC {
		t.Fatal("publish times should be normalised to UTC")
	}
}

func TestSearchNewsFiltersTrailingWindow(t *testing.T) {
	source, closeSrv := newTestRSS(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssBody(
			rssItemXML("fresh", feedNow.Add(-5*time.Minute)),
			rssItemXML("stale", feedNow.Add(-2*time.Hour)),
		))
	})
	defer closeSrv()

	articles, err := source.SearchNews(context.Background(), "ACME", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 1 || articles[0].Title != "fresh" {
		t.Fatalf("window filter kept %+v, want only the fresh article", articles)
	}
}

func TestSearchNewsDropsUnparseableTimestamps(t *testing.T) {
	source, closeSrv := newTestRSS(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssBody(
			`<item><title>undated</title><link>https://example.invalid/u</link><pubDate>sometime yesterday</pubDate></item>`,
			rssItemXML("dated", feedNow.Add(-3*time.Minute)),
		))
	})
	defer closeSrv()

	articles, err := source.SearchNews(context.Background(), "ACME", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 1 || articles[0].Title != "dated" {
		t.Fatalf("articles = %+v, want only the dated one", articles)
	}
}

func TestSearchNewsCapsResults(t *testing.T) {
	items := make([]string, 0, 10)
	for i := 0; i < 10; i++ {
		items = append(items, rssItemXML(fmt.Sprintf("item %d", i), feedNow.Add(-time.Minute)))
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rssBody(items...))
	}))
	defer srv.Close()

	source := NewGoogleRSS(GoogleOptions{BaseURL: srv.URL, MaxItems: 4}, zerolog.Nop())
	source.now = func() time.Time { return feedNow }

	articles, err := source.SearchNews(context.Background(), "ACME", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(articles) != 4 {
		t.Fatalf("articles = %d, want MaxItems cap of 4", len(articles))
	}
}

func TestSearchNewsEmptyQuery(t *testing.T) {
	source := NewGoogleRSS(GoogleOptions{BaseURL: "http://localhost:1"}, zerolog.Nop())
	articles, err := source.SearchNews(context.Background(), "", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if articles != nil {
		t.Fatalf("empty query should short-circuit, got %+v", articles)
	}
}

func TestSearchNewsServerError(t *testing.T) {
	source, closeSrv := newTestRSS(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer closeSrv()

	if _, err := source.SearchNews(context.Background(), "ACME", 30); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}

func TestParsePubDateLayouts(t *testing.T) {
	cases := []string{
		"Mon, 02 Mar 2026 15:00:00 +0000",
		"Mon, 02 Mar 2026 15:00:00 GMT",
		"2026-03-02T15:00:00Z",
	}
	for _, value := range cases {
		if _, ok := parsePubDate(value); !ok {
			t.Fatalf("parsePubDate(%q) should succeed", value)
		}
	}
	if _, ok := parsePubDate("not a date"); ok {
		t.Fatal("nonsense input should not parse")
	}
}
