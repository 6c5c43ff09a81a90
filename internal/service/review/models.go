package review

import (
	"github.com/sharetube/review/internal/domain"
	"github.com/sharetube/review/internal/realtime"
	"github.com/sharetube/review/internal/repository/connection"
)

type CreateSessionParams struct {
	AssetID string
	UserID  string
	Name    string
	Color   string
}

type CreateSessionResponse struct {
	Token string       `json:"token"`
	Asset domain.Asset `json:"asset"`
}

type JoinParams struct {
	Conn    connection.Conn
	AssetID string
	Token   string
}

type JoinResponse struct {
	Member  connection.Member
	Welcome realtime.Welcome
}

type HandleEventParams struct {
	Conn  connection.Conn
	Event realtime.Event
}

// Broadcast is an event and the connections it must be relayed to.
type Broadcast struct {
	Event realtime.Event
	Conns []connection.Conn
}
