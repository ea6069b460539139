package ports

import "context"

// TxManager runs fn inside one read-consistent unit of work. Implementations
// without transactions call fn directly.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
