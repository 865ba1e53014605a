package hunter

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"crisiswatch/internal/model"
)

var huntCrash = time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)

type stubSource struct {
	mu      sync.Mutex
	queries []string
	// byKeyword maps a keyword substring to its canned response.
	byKeyword map[string][]model.NewsArticle
	errFor    map[string]error
}

func (s *stubSource) SearchNews(_ context.Context, query string, _ int) ([]model.NewsArticle, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()

	for keyword, err := range s.errFor {
		if strings.Contains(query, keyword) {
			return nil, err
		}
	}
	for keyword, articles := range s.byKeyword {
		if strings.Contains(query, keyword) {
			return articles, nil
		}
	}
	return nil, nil
}

type stubScorer struct {
	assessment model.PanicAssessment
	err        error
	headlines  []string
}

func (s *stubScorer) ScorePanic(_ context.Context, headlines []string) (model.PanicAssessment, error) {
	s.headlines = headlines
	if s.err != nil {
		return model.PanicAssessment{}, s.err
	}
	return s.assessment, nil
}

func inWindow(title string, minutesBeforeCrash int) model.NewsArticle {
	return model.NewsArticle{
		Title:       title,
		Link:        "https://example.invalid/" + title,
		PublishedAt: huntCrash.Add(-time.Duration(minutesBeforeCrash) * time.Minute),
	}
}

func TestHuntValidatesRequest(t *testing.T) {
	h := New(&stubSource{}, &stubScorer{}, Options{}, zerolog.Nop())
	if _, err := h.Hunt(context.Background(), HuntRequest{Ticker: "", CrashTime: huntCrash}); err == nil {
		t.Fatal("empty ticker should be rejected")
	}
	if _, err := h.Hunt(context.Background(), HuntRequest{Ticker: "ACME"}); err == nil {
		t.Fatal("zero crash time should be rejected")
	}
}

func TestHuntQueriesEveryKeyword(t *testing.T) {
	source := &stubSource{}
	h := New(source, &stubScorer{}, Options{}, zerolog.Nop())

	_, err := h.Hunt(context.Background(), HuntRequest{Ticker: "ACME.NS", CrashTime: huntCrash})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(source.queries) != len(DefaultKeywords) {
		t.Fatalf("issued %d queries, want %d", len(source.queries), len(DefaultKeywords))
	}
	for _, query := range source.queries {
		if !strings.HasPrefix(query, "ACME ") {
			t.Fatalf("query %q should lead with the derived company name", query)
		}
	}
}

func TestHuntSmokingGunAboveThreshold(t *testing.T) {
	source := &stubSource{byKeyword: map[string][]model.NewsArticle{
		"fraud": {inWindow("ACME executives arrested for fraud", 5)},
	}}
	scorer := &stubScorer{assessment: model.PanicAssessment{
		Score:               85,
		HighestRiskHeadline: "ACME executives arrested for fraud",
		RiskReason:          "unverified criminal allegation",
	}}
	h := New(source, scorer, Options{}, zerolog.Nop())

	result, err := h.Hunt(context.Background(), HuntRequest{Ticker: "ACME", CrashTime: huntCrash})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.SmokingGunFound {
		t.Fatal("score 85 over threshold 60 should flag a smoking gun")
	}
	if result.Verdict != model.VerdictMisinformationLikely {
		t.Fatalf("verdict = %s, want MISINFORMATION_LIKELY", result.Verdict)
	}
}

func TestHuntScoreAtThresholdIsNotSmokingGun(t *testing.T) {
	source := &stubSource{byKeyword: map[string][]model.NewsArticle{
		"scandal": {inWindow("ACME scandal brews", 10)},
	}}
	scorer := &stubScorer{assessment: model.PanicAssessment{Score: 60}}
	h := New(source, scorer, Options{}, zerolog.Nop())

	result, err := h.Hunt(context.Background(), HuntRequest{Ticker: "ACME", CrashTime: huntCrash})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SmokingGunFound {
		t.Fatal("score equal to the threshold must not count as a smoking gun")
	}
	if result.Verdict != model.VerdictOrganicVolatility {
		t.Fatalf("verdict = %s, want ORGANIC_VOLATILITY", result.Verdict)
	}
}

func TestHuntPartialQueryFailureKeepsOtherResults(t *testing.T) {
	source := &stubSource{
		byKeyword: map[string][]model.NewsArticle{
			"fraud": {inWindow("ACME fraud probe", 8)},
		},
		errFor: map[string]error{
			"bankruptcy": errors.New("rss timeout"),
		},
	}
	scorer := &stubScorer{assessment: model.PanicAssessment{Score: 70}}
	h := New(source, scorer, Options{}, zerolog.Nop())

	result, err := h.Hunt(context.Background(), HuntRequest{Ticker: "ACME", CrashTime: huntCrash})
	if err != nil {
		t.Fatalf("a single failed keyword query must not fail the hunt: %v", err)
	}
	if len(result.Articles) != 1 {
		t.Fatalf("surviving articles = %d, want 1", len(result.Articles))
	}
	if !result.SmokingGunFound {
		t.Fatal("surviving article should still be scored")
	}
}

func TestHuntAllQueriesFailYieldsNoMisinformation(t *testing.T) {
	source := &stubSource{errFor: map[string]error{"ACME": errors.New("network down")}}
	h := New(source, &stubScorer{}, Options{}, zerolog.Nop())

	result, err := h.Hunt(context.Background(), HuntRequest{Ticker: "ACME", CrashTime: huntCrash})
	if err != nil {
		t.Fatalf("total query failure degrades, it does not abort: %v", err)
	}
	if len(result.Articles) != 0 {
		t.Fatalf("articles = %d, want 0", len(result.Articles))
	}
	if result.Verdict != model.VerdictNoMisinformation {
		t.Fatalf("verdict = %s, want NO_MISINFORMATION_DETECTED", result.Verdict)
	}
}

func TestHuntScorerFailureZeroesScore(t *testing.T) {
	source := &stubSource{byKeyword: map[string][]model.NewsArticle{
		"crisis": {inWindow("ACME crisis deepens", 3)},
	}}
	scorer := &stubScorer{err: errors.New("llm unavailable")}
	h := New(source, scorer, Options{}, zerolog.Nop())

	result, err := h.Hunt(context.Background(), HuntRequest{Ticker: "ACME", CrashTime: huntCrash})
	if err != nil {
		t.Fatalf("scorer failure degrades, it does not abort: %v", err)
	}
	if result.Assessment.Score != 0 {
		t.Fatalf("score = %d, want 0 after scorer failure", result.Assessment.Score)
	}
	if result.ScoringError == "" {
		t.Fatal("scoring error should be recorded for diagnostics")
	}
	if result.SmokingGunFound {
		t.Fatal("a zeroed score cannot flag a smoking gun")
	}
}

func TestHuntDedupesByExactTitle(t *testing.T) {
	duplicate := inWindow("ACME fraud probe widens", 7)
	source := &stubSource{byKeyword: map[string][]model.NewsArticle{
		"fraud":  {duplicate},
		"arrest": {duplicate, inWindow("ACME CFO arrested", 9)},
	}}
	scorer := &stubScorer{assessment: model.PanicAssessment{Score: 50}}
	h := New(source, scorer, Options{}, zerolog.Nop())

	result, err := h.Hunt(context.Background(), HuntRequest{Ticker: "ACME", CrashTime: huntCrash})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Articles) != 2 {
		t.Fatalf("articles = %d, want 2 after dedupe", len(result.Articles))
	}
	if len(scorer.headlines) != 2 {
		t.Fatalf("scored headlines = %d, want 2", len(scorer.headlines))
	}
}

func TestHuntFiltersToCausalWindow(t *testing.T) {
	source := &stubSource{byKeyword: map[string][]model.NewsArticle{
		"fraud": {
			inWindow("in window", 15),
			inWindow("too old", 45),
			inWindow("after crash", -5),
		},
	}}
	scorer := &stubScorer{assessment: model.PanicAssessment{Score: 10}}
	h := New(source, scorer, Options{}, zerolog.Nop())

	result, err := h.Hunt(context.Background(), HuntRequest{Ticker: "ACME", CrashTime: huntCrash})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Articles) != 1 || result.Articles[0].Title != "in window" {
		t.Fatalf("window filter kept %+v, want only the in-window article", result.Articles)
	}
}

func TestCompanyName(t *testing.T) {
	cases := map[string]string{
		"RELIANCE.NS": "RELIANCE",
		"ACME":        "ACME",
		"BIG_BANK.BO": "BIG BANK",
		"north-mines": "north mines",
		" SPACED.NY ": "SPACED",
	}
	for in, want := range cases {
		if got := CompanyName(in); got != want {
			t.Fatalf("CompanyName(%q) = %q, want %q", in, got, want)
		}
	}
}
