package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/review/internal/presence"
	repopresence "github.com/sharetube/review/internal/repository/presence"
)

type repo struct {
	rc  *redis.Client
	ttl time.Duration
}

// NewRepo stores presence entries that expire ttl after they were last written.
func NewRepo(rc *redis.Client, ttl time.Duration) *repo {
	if ttl <= 0 {
		ttl = presence.TTL
	}

	return &repo{rc: rc, ttl: ttl}
}

type presenceRecord struct {
	UserID   string `redis:"user_id"`
	Name     string `redis:"name"`
	Color    string `redis:"color"`
	Status   string `redis:"status"`
	LastSeen int64  `redis:"last_seen"`
	AssetID  string `redis:"asset_id"`
}

func (r repo) getPresenceKey(assetID, userID string) string {
	return "asset:" + assetID + ":presence:" + userID
}

func (r repo) getPresenceListKey(assetID string) string {
	return "asset:" + assetID + ":presencelist"
}

func (r repo) SetPresence(ctx context.Context, assetID string, e presence.Entry) error {
	funcName := "presence.redis.SetPresence"
	slog.DebugContext(ctx, funcName, "asset_id", assetID, "user_id", e.UserID)
	pipe := r.rc.TxPipeline()

	key := r.getPresenceKey(assetID, e.UserID)
	r.HSetStruct(ctx, pipe, key, presenceRecord{
		UserID:   e.UserID,
		Name:     e.Name,
		Color:    e.Color,
		Status:   string(e.Status),
		LastSeen: e.LastSeen.UnixMilli(),
		AssetID:  assetID,
	})
	pipe.Expire(ctx, key, r.ttl)
	r.touchList(ctx, pipe, assetID, e.UserID, e.LastSeen)

	if err := r.executePipe(ctx, pipe); err != nil {
		slog.DebugContext(ctx, funcName, "error", err)
		return fmt.Errorf("failed to set presence: %w", err)
	}

	return nil
}

func (r repo) touchList(ctx context.Context, pipe redis.Pipeliner, assetID, userID string, at time.Time) {
	listKey := r.getPresenceListKey(assetID)
	pipe.ZAdd(ctx, listKey, redis.Z{Score: float64(at.UnixMilli()), Member: userID})
	pipe.Expire(ctx, listKey, r.ttl)
}

func (r repo) UpdateStatus(ctx context.Context, assetID, userID string, status presence.Status, at time.Time) error {
	funcName := "presence.redis.UpdateStatus"
	slog.DebugContext(ctx, funcName, "asset_id", assetID, "user_id", userID, "status", status)

	if err := r.refresh(ctx, assetID, userID, at, "status", string(status)); err != nil {
		slog.DebugContext(ctx, funcName, "error", err)
		return err
	}

	return nil
}

// Touch marks the user as seen at at without changing the status.
func (r repo) Touch(ctx context.Context, assetID, userID string, at time.Time) error {
	funcName := "presence.redis.Touch"
	slog.DebugContext(ctx, funcName, "asset_id", assetID, "user_id", userID)

	if err := r.refresh(ctx, assetID, userID, at); err != nil {
		slog.DebugContext(ctx, funcName, "error", err)
		return err
	}

	return nil
}

// refresh bumps last_seen, the hash expiry and the list score of an existing
// entry, also setting any extra field/value pairs.
func (r repo) refresh(ctx context.Context, assetID, userID string, at time.Time, fields ...any) error {
	key := r.getPresenceKey(assetID, userID)
	exists, err := r.rc.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check presence: %w", err)
	}
	if exists == 0 {
		return repopresence.ErrNotFound
	}

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, key, append(fields, "last_seen", at.UnixMilli())...)
	pipe.Expire(ctx, key, r.ttl)
	r.touchList(ctx, pipe, assetID, userID, at)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}

	return nil
}

// ListPresence returns entries seen at or after since, most recent first.
func (r repo) ListPresence(ctx context.Context, assetID string, since time.Time) ([]presence.Entry, error) {
	funcName := "presence.redis.ListPresence"
	slog.DebugContext(ctx, funcName, "asset_id", assetID)

	userIDs, err := r.rc.ZRevRangeByScore(ctx, r.getPresenceListKey(assetID), &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list presence: %w", err)
	}
	if len(userIDs) == 0 {
		return []presence.Entry{}, nil
	}

	pipe := r.rc.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(userIDs))
	for i, userID := range userIDs {
		cmds[i] = pipe.HGetAll(ctx, r.getPresenceKey(assetID, userID))
	}
	if err := r.executePipe(ctx, pipe); err != nil {
		return nil, fmt.Errorf("failed to read presence: %w", err)
	}

	out := make([]presence.Entry, 0, len(cmds))
	for _, cmd := range cmds {
		if len(cmd.Val()) == 0 {
			continue
		}

		var rec presenceRecord
		if err := cmd.Scan(&rec); err != nil {
			return nil, fmt.Errorf("failed to scan presence: %w", err)
		}

		out = append(out, presence.Entry{
			UserID:         rec.UserID,
			Name:           rec.Name,
			Color:          rec.Color,
			Status:         presence.Status(rec.Status),
			LastSeen:       time.UnixMilli(rec.LastSeen).UTC(),
			CurrentAssetID: rec.AssetID,
		})
	}

	slog.DebugContext(ctx, funcName, "result", len(out))
	return out, nil
}
