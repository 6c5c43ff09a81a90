package controller

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/review/internal/domain"
	"github.com/sharetube/review/internal/repository/connection"
	"github.com/sharetube/review/internal/service/review"
	"github.com/sharetube/review/pkg/validator"
	"github.com/sharetube/review/pkg/wsrouter"
)

type iReviewService interface {
	CreateSession(context.Context, *review.CreateSessionParams) (review.CreateSessionResponse, error)
	Join(context.Context, *review.JoinParams) (review.JoinResponse, error)
	HandleEvent(context.Context, *review.HandleEventParams) (review.Broadcast, error)
	Touch(context.Context, connection.Conn) error
	Leave(context.Context, connection.Conn) (review.Broadcast, error)
	ListAssets(ctx context.Context, projectID string) ([]domain.Asset, error)
	ListComments(ctx context.Context, assetID string) ([]domain.Comment, error)
	ExportCSV(ctx context.Context, assetID string, w io.Writer) error
}

type iConnWriter interface {
	Write(conn connection.Conn, v any) error
	Activate(conn connection.Conn, first any) error
}

type Config struct {
	HandshakeTimeout time.Duration
	Logger           *slog.Logger
}

type controller struct {
	reviewService    iReviewService
	connWriter       iConnWriter
	upgrader         websocket.Upgrader
	validate         *validator.Validator
	wsmux            *wsrouter.WSRouter
	logger           *slog.Logger
	handshakeTimeout time.Duration
}

func NewController(reviewService iReviewService, connWriter iConnWriter, cfg Config) *controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}

	c := &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		reviewService:    reviewService,
		connWriter:       connWriter,
		validate:         validator.NewValidator(),
		logger:           cfg.Logger,
		handshakeTimeout: cfg.HandshakeTimeout,
	}
	c.wsmux = c.getWSRouter()

	return c
}
