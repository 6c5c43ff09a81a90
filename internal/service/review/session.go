package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/sharetube/review/internal/correlation"
	"github.com/sharetube/review/internal/domain"
	"github.com/sharetube/review/internal/presence"
	"github.com/sharetube/review/internal/realtime"
	"github.com/sharetube/review/internal/repository/asset"
	"github.com/sharetube/review/internal/repository/connection"
	repopresence "github.com/sharetube/review/internal/repository/presence"
)

// CreateSession issues a join token for one user on one asset.
func (s service) CreateSession(ctx context.Context, params *CreateSessionParams) (CreateSessionResponse, error) {
	a, err := s.getAsset(ctx, params.AssetID)
	if err != nil {
		return CreateSessionResponse{}, err
	}

	token, err := s.generateJWT(Claims{
		UserID:  params.UserID,
		Name:    params.Name,
		Color:   params.Color,
		AssetID: a.ID,
	})
	if err != nil {
		return CreateSessionResponse{}, fmt.Errorf("failed to generate token: %w", err)
	}

	return CreateSessionResponse{Token: token, Asset: a}, nil
}

func (s service) getAsset(ctx context.Context, assetID string) (domain.Asset, error) {
	a, err := s.assetRepo.GetAsset(ctx, assetID)
	if errors.Is(err, asset.ErrAssetNotFound) {
		return domain.Asset{}, ErrAssetNotFound
	}
	if err != nil {
		return domain.Asset{}, fmt.Errorf("failed to get asset: %w", err)
	}

	return a, nil
}

// Join validates the token, registers the connection in the asset room and
// returns the snapshot the client is welcomed with.
func (s service) Join(ctx context.Context, params *JoinParams) (JoinResponse, error) {
	claims, err := s.parseJWT(params.Token)
	if err != nil {
		return JoinResponse{}, err
	}
	if claims.AssetID != params.AssetID {
		return JoinResponse{}, ErrAssetMismatch
	}

	member := connectionMember(uuid.NewString(), claims)
	if err := s.connRepo.Add(params.Conn, member); err != nil {
		return JoinResponse{}, fmt.Errorf("failed to add connection: %w", err)
	}

	now := s.clock.Now()
	if err := s.presenceRepo.SetPresence(ctx, member.AssetID, presence.Entry{
		UserID:         member.UserID,
		Name:           member.Name,
		Color:          member.Color,
		Status:         presence.StatusViewing,
		LastSeen:       now,
		CurrentAssetID: member.AssetID,
	}); err != nil {
		s.connRepo.RemoveByConn(params.Conn)
		return JoinResponse{}, err
	}

	entries, err := s.presenceRepo.ListPresence(ctx, member.AssetID, now.Add(-s.presenceTTL))
	if err != nil {
		s.connRepo.RemoveByConn(params.Conn)
		return JoinResponse{}, err
	}

	comments, err := s.assetRepo.ListComments(ctx, member.AssetID)
	if err != nil {
		s.connRepo.RemoveByConn(params.Conn)
		return JoinResponse{}, err
	}

	slog.InfoContext(ctx, "member joined", "member_id", member.MemberID, "user_id", member.UserID, "asset_id", member.AssetID)
	return JoinResponse{
		Member: member,
		Welcome: realtime.Welcome{
			MemberID: member.MemberID,
			Presence: presence.Active(entries, now, s.presenceTTL),
			Comments: correlation.Sort(comments),
		},
	}, nil
}

// Leave unregisters the connection and announces the member as idle.
func (s service) Leave(ctx context.Context, conn connection.Conn) (Broadcast, error) {
	member, err := s.connRepo.RemoveByConn(conn)
	if err != nil {
		return Broadcast{}, err
	}

	now := s.clock.Now()
	if err := s.presenceRepo.UpdateStatus(ctx, member.AssetID, member.UserID, presence.StatusIdle, now); err != nil &&
		!errors.Is(err, repopresence.ErrNotFound) {
		return Broadcast{}, err
	}

	e, err := realtime.NewEvent(realtime.EventPresenceChanged, realtime.PresenceChangedPayload{
		Name:    member.Name,
		Color:   member.Color,
		Status:  presence.StatusIdle,
		AssetID: member.AssetID,
	})
	if err != nil {
		return Broadcast{}, err
	}
	e.OriginUserID = member.UserID
	e.Timestamp = now.UnixMilli()

	slog.InfoContext(ctx, "member left", "member_id", member.MemberID, "user_id", member.UserID, "asset_id", member.AssetID)
	return Broadcast{Event: e, Conns: s.connRepo.RoomConns(member.AssetID, conn)}, nil
}

func connectionMember(memberID string, claims *Claims) connection.Member {
	return connection.Member{
		MemberID: memberID,
		UserID:   claims.UserID,
		Name:     claims.Name,
		Color:    claims.Color,
		AssetID:  claims.AssetID,
	}
}
