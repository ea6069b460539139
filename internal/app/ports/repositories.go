package ports

import (
	"context"

	"trackhistory/internal/domain/history"
)

// HistorySource fetches the columnar history payload of a query window.
type HistorySource interface {
	FetchHistory(ctx context.Context, q history.Query) (history.Payload, error)
}

// DatasetSizer counts the history rows a query would fetch.
type DatasetSizer interface {
	CountHistory(ctx context.Context, q history.Query) (int64, error)
}

// HistoryRecorder stores decoded events, used by seeding and imports.
type HistoryRecorder interface {
	Append(ctx context.Context, events []history.Event) error
}
