package asset

import "errors"

var (
	ErrAssetNotFound   = errors.New("asset not found")
	ErrCommentNotFound = errors.New("comment not found")
	ErrMissingDB       = errors.New("missing database connection")
)
