package app

import "errors"

// ErrNotFound and related errors describe storage and runtime failures.
var (
	ErrNotFound          = errors.New("not found")
	ErrStockUpdateFailed = errors.New("stock update failed")
)
