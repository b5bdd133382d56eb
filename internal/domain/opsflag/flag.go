// Package opsflag models persisted idempotency flags for one-time bulk
// operations. A named flag moves absent → in_progress → completed; once
// completed, the named operation must never execute again.
package opsflag

import (
	"fmt"
	"time"
)

// FlagState is the persisted state of a named operation flag.
// Absence of a row is the implicit "absent" state.
type FlagState string

const (
	StateInProgress FlagState = "in_progress"
	StateCompleted  FlagState = "completed"
)

func (s FlagState) IsValid() bool {
	return s == StateInProgress || s == StateCompleted
}

// OperationFlag is the aggregate for one named one-time operation.
type OperationFlag struct {
	name          string
	state         FlagState
	completedAt   *time.Time
	affectedCount int
	createdAt     time.Time
	updatedAt     time.Time
}

// NewOperationFlag marks a named operation as started.
func NewOperationFlag(name string) (*OperationFlag, error) {
	if name == "" {
		return nil, fmt.Errorf("operation name is required")
	}
	now := time.Now().UTC()
	return &OperationFlag{
		name:      name,
		state:     StateInProgress,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ReconstructOperationFlag rebuilds a flag from persistence.
func ReconstructOperationFlag(
	name string,
	state FlagState,
	completedAt *time.Time,
	affectedCount int,
	createdAt, updatedAt time.Time,
) (*OperationFlag, error) {
	if name == "" {
		return nil, fmt.Errorf("operation name is required")
	}
	if !state.IsValid() {
		return nil, fmt.Errorf("invalid flag state: %s", state)
	}
	return &OperationFlag{
		name:          name,
		state:         state,
		completedAt:   completedAt,
		affectedCount: affectedCount,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}, nil
}

func (f *OperationFlag) Name() string            { return f.name }
func (f *OperationFlag) State() FlagState        { return f.state }
func (f *OperationFlag) CompletedAt() *time.Time { return f.completedAt }
func (f *OperationFlag) AffectedCount() int      { return f.affectedCount }
func (f *OperationFlag) CreatedAt() time.Time    { return f.createdAt }
func (f *OperationFlag) UpdatedAt() time.Time    { return f.updatedAt }

// IsCompleted reports whether the named operation already ran to completion.
func (f *OperationFlag) IsCompleted() bool {
	return f.state == StateCompleted
}

// Complete marks the operation done with the number of affected items.
// Completion is terminal; completing twice is rejected.
func (f *OperationFlag) Complete(affectedCount int) error {
	if f.state == StateCompleted {
		return ErrAlreadyCompleted
	}
	now := time.Now().UTC()
	f.state = StateCompleted
	f.completedAt = &now
	f.affectedCount = affectedCount
	f.updatedAt = now
	return nil
}
