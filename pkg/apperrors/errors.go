package apperrors

import "errors"

var (
	ErrMissingConfig = errors.New("missing required configuration")
	ErrTableNotFound = errors.New("table not found")
	ErrNoPrimaryKey  = errors.New("table has no primary key")
	ErrSchemaDrift   = errors.New("source and target schemas disagree")
)
