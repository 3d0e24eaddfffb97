package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/pelusa-v/roomchat/internal/auth"
	"github.com/pelusa-v/roomchat/internal/chat"
)

const localUserID = "user_id"

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Identity, error)
}

type Handler struct {
	ctx  context.Context
	mgr  *chat.Manager
	auth Authenticator
}

// New binds handlers to ctx; open websocket sessions use it for their events.
func New(ctx context.Context, mgr *chat.Manager, a Authenticator) *Handler {
	return &Handler{ctx: ctx, mgr: mgr, auth: a}
}

func (h *Handler) Routes(app *fiber.App) {
	app.Get("/healthz", h.HealthHandler)

	api := app.Group("/api", h.Authenticate)
	api.Get("/ws", h.Upgrade, websocket.New(h.RegisterHandler))
	api.Get("/inbox", h.InboxHandler)          // ?page=&q=
	api.Post("/inbox/read", h.MarkReadHandler) // ?room_id=&message_id=
}

func bearer(c *fiber.Ctx) string {
	if v := c.Get(fiber.HeaderAuthorization); v != "" {
		return strings.TrimSpace(strings.TrimPrefix(v, "Bearer "))
	}
	return c.Query("token")
}

func status(err error) int {
	switch {
	case errors.Is(err, chat.ErrAuthRequired), errors.Is(err, chat.ErrAuthInvalid):
		return fiber.StatusUnauthorized
	case errors.Is(err, chat.ErrAccessDenied), errors.Is(err, chat.ErrPermissionDenied):
		return fiber.StatusForbidden
	case errors.Is(err, chat.ErrInvalidData):
		return fiber.StatusBadRequest
	case errors.Is(err, chat.ErrNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// Authenticate runs before the upgrade so rejected clients never get a socket.
func (h *Handler) Authenticate(c *fiber.Ctx) error {
	id, err := h.auth.Authenticate(c.UserContext(), bearer(c))
	if err != nil {
		msg := chat.MsgInternalError
		switch {
		case errors.Is(err, chat.ErrAuthRequired):
			msg = chat.MsgAuthTokenRequired
		case errors.Is(err, chat.ErrAuthInvalid):
			msg = chat.MsgInvalidToken
		case errors.Is(err, chat.ErrAccessDenied):
			msg = chat.MsgUserAccessDenied
		default:
			log.Error().Err(err).Msg("authentication failed")
		}
		return c.Status(status(err)).JSON(chat.Failure(msg, err))
	}
	c.Locals(localUserID, id.UserID)
	return c.Next()
}

func (h *Handler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// RegisterHandler GET /api/ws
func (h *Handler) RegisterHandler(c *websocket.Conn) {
	uid, _ := c.Locals(localUserID).(int64)
	client := chat.NewClient(uuid.NewString(), uid, c)
	h.mgr.Register(h.ctx, client)
	defer h.mgr.Unregister(context.WithoutCancel(h.ctx), client)
	go client.WritePump()
	client.ReadPump(h.ctx, h.mgr)
}

// InboxHandler GET /api/inbox?page=&q=
func (h *Handler) InboxHandler(c *fiber.Ctx) error {
	uid := c.Locals(localUserID).(int64)
	req := chat.PageRequest{Page: c.QueryInt("page"), SearchQuery: strings.TrimSpace(c.Query("q"))}
	rooms, err := h.mgr.Queries().Rooms(c.UserContext(), uid, req)
	if err != nil {
		return c.Status(status(err)).JSON(chat.FailureFor(chat.MsgFailedToListRooms, err))
	}
	return c.JSON(chat.Success(chat.MsgRoomsListed, fiber.Map{"rooms": rooms, "page": req.Page}))
}

// MarkReadHandler POST /api/inbox/read?room_id=&message_id=
func (h *Handler) MarkReadHandler(c *fiber.Ctx) error {
	uid := c.Locals(localUserID).(int64)
	roomID := int64(c.QueryInt("room_id"))
	messageID := int64(c.QueryInt("message_id"))
	if err := h.mgr.Queries().MarkRead(c.UserContext(), uid, roomID, messageID); err != nil {
		return c.Status(status(err)).JSON(chat.FailureFor(chat.MsgInternalError, err))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) HealthHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
