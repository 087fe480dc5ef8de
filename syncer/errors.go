package syncer

import "errors"

var (
	ErrNoTenant  = errors.New("missing club id")
	ErrMissingID = errors.New("record id is required")
)
