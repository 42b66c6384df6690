package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dkeye/Meet/internal/adapters/store"
	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/dkeye/Meet/internal/protocol"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const sessionIdentityKey = "identity"

type handlers struct {
	orch         *orch.Orchestrator
	store        store.Store
	historyLimit int
}

type SessionRequest struct {
	Identity    string `json:"identity"`
	DisplayName string `json:"display_name"`
}

type MeetingRequest struct {
	Name string `json:"name"`
	Host string `json:"host"`
}

func domainRoomID(c *gin.Context) domain.RoomID {
	return domain.RoomID(c.Param("roomId"))
}

// identity resolves the caller: an explicit value wins over the cookie session.
func (h *handlers) identity(c *gin.Context, explicit string) (domain.Identity, bool) {
	raw := explicit
	if raw == "" {
		if v, ok := sessions.Default(c).Get(sessionIdentityKey).(string); ok {
			raw = v
		}
	}
	id, err := domain.ParseIdentity(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return id, true
}

func (h *handlers) codec(c *gin.Context) (protocol.Codec, bool) {
	codec, err := protocol.CodecByName(c.Query("codec"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return codec, true
}

func (h *handlers) createSession(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	id, ok := h.identity(c, req.Identity)
	if !ok {
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = string(id)
	}
	if err := h.store.SaveProfile(c.Request.Context(), domain.Profile{Identity: id, DisplayName: req.DisplayName}); err != nil {
		h.fail(c, err)
		return
	}
	s := sessions.Default(c)
	s.Set(sessionIdentityKey, string(id))
	if err := s.Save(); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"identity": id, "display_name": req.DisplayName})
}

func (h *handlers) createMeeting(c *gin.Context) {
	var req MeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	host, ok := h.identity(c, req.Host)
	if !ok {
		return
	}
	room, err := h.store.CreateMeeting(c.Request.Context(), req.Name, host)
	if err != nil {
		h.fail(c, err)
		return
	}
	log.Info().Str("module", "adapters.http").Str("room", string(room.ID)).Str("host", string(host)).Msg("meeting created")
	c.JSON(http.StatusCreated, room)
}

func (h *handlers) getMeeting(c *gin.Context) {
	room, err := h.store.ValidateMeeting(c.Request.Context(), domainRoomID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := gin.H{"room": room}
	if live, ok := h.orch.Rooms.Get(room.ID); ok {
		resp["live"] = live.Info()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) getHost(c *gin.Context) {
	host, err := h.store.GetHost(c.Request.Context(), domainRoomID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"host": host})
}

func (h *handlers) getChat(c *gin.Context) {
	id := domainRoomID(c)
	if _, err := h.store.ValidateMeeting(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	limit := h.historyLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	msgs, err := h.store.ListChat(c.Request.Context(), id, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if msgs == nil {
		msgs = []domain.ChatMessage{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *handlers) getProfile(c *gin.Context) {
	id, err := domain.ParseIdentity(c.Param("identity"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, err := h.store.GetProfile(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.orch.Rooms.List()})
}

func (h *handlers) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrProfileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRoomExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
