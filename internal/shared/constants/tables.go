// Package constants defines shared constant values used across layers.
package constants

// Database table names.
const (
	TableEntitlements   = "entitlements"
	TableOperationFlags = "operation_flags"
)
