package controller

import "context"

type contextKey int

const (
	assetIDCtxKey contextKey = iota
	memberIDCtxKey
)

func (c controller) getAssetIDFromCtx(ctx context.Context) string {
	assetID, ok := ctx.Value(assetIDCtxKey).(string)
	if !ok {
		return ""
	}

	return assetID
}

func (c controller) getMemberIDFromCtx(ctx context.Context) string {
	memberID, ok := ctx.Value(memberIDCtxKey).(string)
	if !ok {
		return ""
	}

	return memberID
}
