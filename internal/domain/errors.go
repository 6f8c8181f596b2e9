package domain

import (
	"errors"
	"fmt"
)

// ErrValidation and ErrInvalidState classify every domain failure.
var (
	ErrValidation   = errors.New("validation failed")
	ErrInvalidState = errors.New("invalid state")
)

var (
	ErrInvalidID         = fmt.Errorf("%w: invalid id", ErrValidation)
	ErrInvalidName       = fmt.Errorf("%w: invalid name", ErrValidation)
	ErrInvalidSKU        = fmt.Errorf("%w: invalid sku", ErrValidation)
	ErrInvalidLocationID = fmt.Errorf("%w: invalid location id", ErrValidation)
	ErrInvalidProductID  = fmt.Errorf("%w: invalid product id", ErrValidation)
	ErrInvalidQuantity   = fmt.Errorf("%w: quantity must be a non-negative integer", ErrValidation)
	ErrInvalidKind       = fmt.Errorf("%w: invalid count kind", ErrValidation)
	ErrInvalidStatus     = fmt.Errorf("%w: invalid session status", ErrValidation)
	ErrInvalidPolicy     = fmt.Errorf("%w: invalid reconciliation policy", ErrValidation)
	ErrInvalidReason     = fmt.Errorf("%w: invalid adjustment reason", ErrValidation)
	ErrEmptyProductSet   = fmt.Errorf("%w: partial count requires at least one product", ErrValidation)
)

var (
	ErrSessionCompleted  = fmt.Errorf("%w: session is completed", ErrInvalidState)
	ErrSessionCancelled  = fmt.Errorf("%w: session is cancelled", ErrInvalidState)
	ErrSessionNotStarted = fmt.Errorf("%w: session is not in progress", ErrInvalidState)
	ErrItemVerified      = fmt.Errorf("%w: item is already reconciled", ErrInvalidState)
)
