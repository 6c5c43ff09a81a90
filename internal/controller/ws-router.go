package controller

import (
	"github.com/sharetube/review/internal/realtime"
	"github.com/sharetube/review/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.wsRequestIdWSMw(), c.loggerWSMw())
	mux.OnError(c.handleWSError)

	wsrouter.Handle(mux, realtime.FrameAlive, c.handleAlive)
	wsrouter.Handle(mux, realtime.FrameEvent, c.handleEvent)

	return mux
}
