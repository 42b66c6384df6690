package http

import (
	"context"

	"github.com/dkeye/Meet/internal/adapters/signal"
	"github.com/dkeye/Meet/internal/adapters/store"
	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const sessionName = "MeetSessions"

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, st store.Store) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	cs := cookie.NewStore([]byte(cfg.Secret))
	cs.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, cs))

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	ctl := signal.NewSignalWSController(o,
		signal.Options{
			ReadLimit:  cfg.ReadLimit,
			PingPeriod: cfg.PingPeriod,
			WriteWait:  cfg.WriteWait,
			SendBuffer: cfg.SendBuffer,
		},
		signal.NewRateLimiter(cfg.RateLimit.Join.Limit, cfg.RateLimit.Join.Interval),
		signal.NewRateLimiter(cfg.RateLimit.Chat.Limit, cfg.RateLimit.Chat.Interval),
	)
	h := &handlers{orch: o, store: st, historyLimit: cfg.ChatHistoryLimit}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")
	api.POST("/session", h.createSession)
	api.POST("/meetings", h.createMeeting)
	api.GET("/meetings/:roomId", h.getMeeting)
	api.GET("/meetings/:roomId/host", h.getHost)
	api.GET("/meetings/:roomId/chat", h.getChat)
	api.GET("/profile/:identity", h.getProfile)
	api.GET("/rooms", h.listRooms)

	api.GET("/ws/:roomId", func(c *gin.Context) {
		id, ok := h.identity(c, c.Query("identity"))
		if !ok {
			return
		}
		codec, ok := h.codec(c)
		if !ok {
			return
		}
		ctl.HandleSignal(ctx, c, domainRoomID(c), id, codec)
	})

	return r
}
