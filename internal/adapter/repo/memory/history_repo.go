package memory

import (
	"context"

	"trackhistory/internal/domain/history"
)

type HistoryRepo struct {
	store *Store
}

func NewHistoryRepo(store *Store) HistoryRepo {
	return HistoryRepo{store: store}
}

func (r HistoryRepo) FetchHistory(ctx context.Context, q history.Query) (history.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return history.EncodeRows(r.store.window(q)), nil
}

func (r HistoryRepo) CountHistory(ctx context.Context, q history.Query) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int64(len(r.store.window(q))), nil
}

func (r HistoryRepo) Append(_ context.Context, events []history.Event) error {
	r.store.Seed(events...)
	return nil
}
