package news

import (
	"context"

	"crisiswatch/internal/model"
)

// Source returns candidate articles for a query published within the
// trailing recency window. Partial results on partial failure are
// acceptable; callers treat each query independently.
type Source interface {
	SearchNews(ctx context.Context, query string, windowMinutes int) ([]model.NewsArticle, error)
}
