package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/review/internal/realtime"
	"github.com/sharetube/review/internal/service/review"
	"github.com/sharetube/review/pkg/ctxlogger"
	"github.com/sharetube/review/pkg/rest"
)

var errExpectedHello = errors.New("expected HELLO frame")

// connect upgrades the request, runs the HELLO/WELCOME handshake and serves
// EVENT frames until the connection drops.
func (c controller) connect(w http.ResponseWriter, r *http.Request) {
	assetID, err := c.mustURLParam(r, "asset-id")
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	ctx := ctxlogger.AppendCtx(r.Context(), slog.String("asset_id", assetID))

	token, err := c.readHello(conn)
	if err != nil {
		c.logger.InfoContext(ctx, "handshake failed", "error", err)
		conn.WriteJSON(&Output{Type: realtime.FrameError, Payload: realtime.ErrorPayload{Message: err.Error()}})
		return
	}

	joinResp, err := c.reviewService.Join(ctx, &review.JoinParams{
		Conn:    conn,
		AssetID: assetID,
		Token:   token,
	})
	if err != nil {
		c.logger.InfoContext(ctx, "failed to join", "error", err)
		conn.WriteJSON(&Output{Type: realtime.FrameError, Payload: realtime.ErrorPayload{Message: err.Error()}})
		return
	}
	defer c.disconnect(ctx, conn)

	// events relayed since Join are held back until the snapshot is out
	if err := c.connWriter.Activate(conn, &Output{Type: realtime.FrameWelcome, Payload: joinResp.Welcome}); err != nil {
		c.logger.WarnContext(ctx, "failed to write welcome", "error", err)
		return
	}

	ctx = context.WithValue(ctx, assetIDCtxKey, assetID)
	ctx = context.WithValue(ctx, memberIDCtxKey, joinResp.Member.MemberID)
	ctx = ctxlogger.AppendCtx(ctx, slog.String("member_id", joinResp.Member.MemberID))

	if err := c.wsmux.ServeConn(ctx, conn); err != nil {
		c.logger.InfoContext(ctx, "connection closed", "error", err)
	}
}

func (c controller) readHello(conn *websocket.Conn) (string, error) {
	conn.SetReadDeadline(time.Now().Add(c.handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	var frame realtime.Frame
	if err := conn.ReadJSON(&frame); err != nil {
		return "", fmt.Errorf("failed to read hello: %w", err)
	}
	if frame.Type != realtime.FrameHello {
		return "", errExpectedHello
	}

	var hello realtime.HelloPayload
	if err := json.Unmarshal(frame.Payload, &hello); err != nil {
		return "", fmt.Errorf("failed to decode hello: %w", err)
	}

	return hello.Token, nil
}

func (c controller) disconnect(ctx context.Context, conn *websocket.Conn) {
	b, err := c.reviewService.Leave(ctx, conn)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to leave", "error", err)
		return
	}

	c.broadcast(ctx, b)
}
