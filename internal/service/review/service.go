package review

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sharetube/review/internal/domain"
	"github.com/sharetube/review/internal/presence"
	"github.com/sharetube/review/internal/repository/connection"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrAssetMismatch = errors.New("token was issued for another asset")
	ErrAssetNotFound = errors.New("asset not found")
	ErrNotJoined     = errors.New("connection has not joined")
	ErrInvalidEvent  = errors.New("invalid event")
)

type iAssetRepo interface {
	GetAsset(ctx context.Context, id string) (domain.Asset, error)
	ListAssets(ctx context.Context, projectID string) ([]domain.Asset, error)
	GetComment(ctx context.Context, assetID, commentID string) (domain.Comment, error)
	CreateComment(ctx context.Context, c domain.Comment) (bool, error)
	DeleteComment(ctx context.Context, assetID, commentID string) ([]string, error)
	ListComments(ctx context.Context, assetID string) ([]domain.Comment, error)
}

type iPresenceRepo interface {
	SetPresence(ctx context.Context, assetID string, e presence.Entry) error
	UpdateStatus(ctx context.Context, assetID, userID string, status presence.Status, at time.Time) error
	Touch(ctx context.Context, assetID, userID string, at time.Time) error
	ListPresence(ctx context.Context, assetID string, since time.Time) ([]presence.Entry, error)
}

type iConnRepo interface {
	Add(conn connection.Conn, member connection.Member) error
	RemoveByConn(conn connection.Conn) (connection.Member, error)
	GetMember(conn connection.Conn) (connection.Member, error)
	RoomConns(assetID string, except connection.Conn) []connection.Conn
}

type Config struct {
	Secret      string
	TokenTTL    time.Duration
	PresenceTTL time.Duration
	Clock       clockwork.Clock
}

type service struct {
	assetRepo    iAssetRepo
	presenceRepo iPresenceRepo
	connRepo     iConnRepo
	secret       []byte
	tokenTTL     time.Duration
	presenceTTL  time.Duration
	clock        clockwork.Clock
}

func NewService(assetRepo iAssetRepo, presenceRepo iPresenceRepo, connRepo iConnRepo, cfg Config) *service {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.PresenceTTL <= 0 {
		cfg.PresenceTTL = presence.TTL
	}

	return &service{
		assetRepo:    assetRepo,
		presenceRepo: presenceRepo,
		connRepo:     connRepo,
		secret:       []byte(cfg.Secret),
		tokenTTL:     cfg.TokenTTL,
		presenceTTL:  cfg.PresenceTTL,
		clock:        cfg.Clock,
	}
}
