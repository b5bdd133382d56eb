package opsflag

import "context"

// Repository is the persistence contract for operation flags.
// GetFlag returns a not-found error (shared/errors) when the flag is absent.
type Repository interface {
	GetFlag(ctx context.Context, name string) (*OperationFlag, error)
	SetFlag(ctx context.Context, flag *OperationFlag) error
}
