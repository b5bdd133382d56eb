package opsflag

import "errors"

// ErrAlreadyCompleted indicates the named one-time operation already ran.
var ErrAlreadyCompleted = errors.New("operation already completed")
