package connection

import "errors"

var (
	ErrAlreadyExists = errors.New("connection already exists")
	ErrNotFound      = errors.New("connection not found")
	ErrAlreadyActive = errors.New("connection already active")
)

// Conn is the write side of a websocket connection. *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

type Member struct {
	MemberID string
	UserID   string
	Name     string
	Color    string
	AssetID  string
}
