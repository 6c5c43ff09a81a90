package correlation

import "errors"

var (
	ErrNestedReply     = errors.New("replies can only target top-level comments")
	ErrCommentNotFound = errors.New("comment not found")
)
