package model

import (
	"errors"
	"fmt"
)

// ErrStaleVersion is matched (errors.Is) by every stale-version conflict.
var ErrStaleVersion = errors.New("stale user version")

// StaleVersionError reports an update whose version no longer matches
// the stored row, or whose row was deleted in the meantime.
type StaleVersionError struct {
	ID      int64
	Version int64
}

func (e *StaleVersionError) Error() string {
	return fmt.Sprintf("user %d was updated or deleted by another transaction (version %d is stale)", e.ID, e.Version)
}

func (e *StaleVersionError) Is(target error) bool {
	return target == ErrStaleVersion
}
