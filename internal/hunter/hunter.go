package hunter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"crisiswatch/internal/intel"
	"crisiswatch/internal/model"
	"crisiswatch/internal/news"
)

// DefaultKeywords is the fixed panic vocabulary combined with the
// company name during a hunt.
var DefaultKeywords = []string{"fraud", "arrest", "raid", "bankruptcy", "scandal", "crisis"}

// Options tune hunt behaviour.
type Options struct {
	WindowMinutes       int
	Keywords            []string
	SmokingGunThreshold int
}

// HuntRequest identifies the anomaly a hunt should explain.
type HuntRequest struct {
	Ticker        string
	CrashTime     time.Time
	WindowMinutes int
}

// Validate rejects structurally unusable requests.
func (r HuntRequest) Validate() error {
	if r.Ticker == "" {
		return errors.New("hunt request: ticker required")
	}
	if r.CrashTime.IsZero() {
		return errors.New("hunt request: crash time required")
	}
	return nil
}

// Hunter runs the reactive dragnet: given a crash, it searches backward
// in time for the article that plausibly triggered it.
type Hunter struct {
	source news.Source
	scorer intel.PanicScorer
	opts   Options
	logger zerolog.Logger
}

// New constructs a Hunter with injected collaborators.
func New(source news.Source, scorer intel.PanicScorer, opts Options, logger zerolog.Logger) *Hunter {
	if opts.WindowMinutes <= 0 {
		opts.WindowMinutes = 30
	}
	if len(opts.Keywords) == 0 {
		opts.Keywords = DefaultKeywords
	}
	if opts.SmokingGunThreshold <= 0 {
		opts.SmokingGunThreshold = 60
	}
	return &Hunter{
		source: source,
		scorer: scorer,
		opts:   opts,
		logger: logger.With().Str("component", "hunter").Logger(),
	}
}

// Hunt fans out one news query per panic keyword, merges and filters the
// results to the causal window, and scores the surviving headlines in a
// single batch. It always returns a structurally valid HuntResult: a
// failed query loses only its own results, and a scorer failure zeroes
// the panic score instead of aborting.
func (h *Hunter) Hunt(ctx context.Context, req HuntRequest) (model.HuntResult, error) {
	if err := req.Validate(); err != nil {
		return model.HuntResult{}, err
	}

	window := req.WindowMinutes
	if window <= 0 {
		window = h.opts.WindowMinutes
	}

	company := CompanyName(req.Ticker)
	h.logger.Info().Str("ticker", req.Ticker).Str("company", company).Int("window_mins", window).Msg("hunt started")

	articles := h.dragnet(ctx, company, window)
	articles = dedupeByTitle(articles)
	articles = filterToWindow(articles, req.CrashTime, window)

	result := model.HuntResult{
		Ticker:    req.Ticker,
		CrashTime: req.CrashTime,
		Articles:  articles,
	}

	if len(articles) == 0 {
		h.logger.Info().Str("ticker", req.Ticker).Msg("no articles in causal window")
		result.Verdict = model.VerdictNoMisinformation
		return result, nil
	}

	headlines := make([]string, len(articles))
	for i, a := range articles {
		headlines[i] = a.Title
	}

	assessment, err := h.scorer.ScorePanic(ctx, headlines)
	if err != nil {
		h.logger.Error().Err(err).Str("ticker", req.Ticker).Msg("panic scoring failed; defaulting score to zero")
		result.ScoringError = err.Error()
		result.Verdict = model.VerdictOrganicVolatility
		return result, nil
	}

	result.Assessment = assessment
	result.SmokingGunFound = assessment.Score > h.opts.SmokingGunThreshold
	if result.SmokingGunFound {
		result.Verdict = model.VerdictMisinformationLikely
		h.logger.Warn().Int("panic_score", assessment.Score).Str("headline", assessment.HighestRiskHeadline).Msg("smoking gun found")
	} else {
		result.Verdict = model.VerdictOrganicVolatility
	}

	return result, nil
}

type queryResult struct {
	keyword  string
	articles []model.NewsArticle
	err      error
}

// dragnet issues the per-keyword queries concurrently and joins them.
// Query failures are logged and dropped; partial results still count.
func (h *Hunter) dragnet(ctx context.Context, company string, window int) []model.NewsArticle {
	ch := make(chan queryResult, len(h.opts.Keywords))
	var wg sync.WaitGroup

	for _, keyword := range h.opts.Keywords {
		wg.Add(1)
		go func(keyword string) {
			defer wg.Done()
			query := fmt.Sprintf("%s %s", company, keyword)
			articles, err := h.source.SearchNews(ctx, query, window)
			ch <- queryResult{keyword: keyword, articles: articles, err: err}
		}(keyword)
	}

	go func() { wg.Wait(); close(ch) }()

	var merged []model.NewsArticle
	for res := range ch {
		if res.err != nil {
			h.logger.Warn().Err(res.err).Str("keyword", res.keyword).Msg("news query failed")
			continue
		}
		merged = append(merged, res.articles...)
	}
	return merged
}

// CompanyName derives a searchable company name from a ticker symbol by
// stripping the exchange suffix and separator characters.
func CompanyName(ticker string) string {
	name := ticker
	if idx := strings.Index(name, "."); idx > 0 {
		name = name[:idx]
	}
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return strings.TrimSpace(name)
}

func dedupeByTitle(articles []model.NewsArticle) []model.NewsArticle {
	seen := make(map[string]struct{}, len(articles))
	unique := make([]model.NewsArticle, 0, len(articles))
	for _, a := range articles {
		if _, ok := seen[a.Title]; ok {
			continue
		}
		seen[a.Title] = struct{}{}
		unique = append(unique, a)
	}
	return unique
}

// filterToWindow keeps articles published in (crash-window, crash].
// Articles published after the crash are never causal candidates.
func filterToWindow(articles []model.NewsArticle, crashTime time.Time, windowMinutes int) []model.NewsArticle {
	start := crashTime.Add(-time.Duration(windowMinutes) * time.Minute)
	kept := make([]model.NewsArticle, 0, len(articles))
	for _, a := range articles {
		if a.PublishedAt.After(start) && !a.PublishedAt.After(crashTime) {
			kept = append(kept, a)
		}
	}
	return kept
}
