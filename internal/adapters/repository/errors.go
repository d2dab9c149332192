package repository

import "errors"

// Sentinel kinds for snapshot store errors.
var (
	ErrNilSnapshot  = errors.New("nil snapshot")
	ErrUnknownSlot  = errors.New("unknown snapshot slot")
	ErrOutOfOrder   = errors.New("live snapshot older than the one held")
	ErrPersist      = errors.New("snapshot persistence failed")
	ErrDatabaseOpen = errors.New("open database")
)
