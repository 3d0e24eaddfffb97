package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelusa-v/roomchat/internal/auth"
	"github.com/pelusa-v/roomchat/internal/chat"
	"github.com/pelusa-v/roomchat/internal/dao/daotest"
	"github.com/pelusa-v/roomchat/internal/data"
)

type env struct {
	app   *fiber.App
	f     *daotest.Fixture
	auth  *auth.Authenticator
	token string
}

func setup(t *testing.T) *env {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	f := daotest.New(t)
	f.User(1, "Ana")
	f.User(2, "Bo")
	f.FlaggedUser(3, "Bad")
	f.Room(7, "Launch", data.RoomEvent)
	f.Member(7, 1, data.RoleMember)
	f.Member(7, 2, data.RoleMember)
	f.Message(7, 2, data.MessageText, "hello", time.Now())

	mgr := chat.NewManager(chat.Deps{
		Store:     f.Store,
		Registry:  chat.NewRedisRegistry(rdb, chat.RegistryOptions{}),
		Backplane: chat.NewLocalBackplane(),
	})
	require.NoError(t, mgr.Start(ctx))

	a, err := auth.New("secret", f.Store, "")
	require.NoError(t, err)
	token, err := a.Issue(1, time.Hour)
	require.NoError(t, err)

	app := fiber.New()
	New(ctx, mgr, a).Routes(app)
	return &env{app: app, f: f, auth: a, token: token}
}

func (e *env) do(t *testing.T, method, target, token string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	e := setup(t)
	code, body := e.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestAuthentication(t *testing.T) {
	e := setup(t)
	flagged, _ := e.auth.Issue(3, time.Hour)

	tests := []struct {
		name    string
		target  string
		token   string
		code    int
		message string
	}{
		{"missing token", "/api/inbox", "", http.StatusUnauthorized, chat.MsgAuthTokenRequired},
		{"bad token", "/api/inbox", "junk", http.StatusUnauthorized, chat.MsgInvalidToken},
		{"flagged user", "/api/inbox", flagged, http.StatusForbidden, chat.MsgUserAccessDenied},
		{"query token", "/api/inbox?token=" + e.token, "", http.StatusOK, chat.MsgRoomsListed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := e.do(t, http.MethodGet, tt.target, tt.token)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	e := setup(t)
	code, _ := e.do(t, http.MethodGet, "/api/ws", e.token)
	assert.Equal(t, http.StatusUpgradeRequired, code)

	code, _ = e.do(t, http.MethodGet, "/api/ws", "")
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestInboxAndMarkRead(t *testing.T) {
	e := setup(t)

	code, body := e.do(t, http.MethodGet, "/api/inbox", e.token)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, chat.StatusSuccess, body["status"])
	rooms := body["rooms"].([]interface{})
	require.Len(t, rooms, 1)
	room := rooms[0].(map[string]interface{})
	assert.EqualValues(t, 1, room["unreadCount"])

	code, _ = e.do(t, http.MethodGet, "/api/inbox?q=nothing", e.token)
	assert.Equal(t, http.StatusOK, code)

	last := room["lastMessage"].(map[string]interface{})
	msgID := int64(last["id"].(float64))

	code, _ = e.do(t, http.MethodPost, "/api/inbox/read?room_id=7", e.token)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = e.do(t, http.MethodPost, "/api/inbox/read?room_id=8&message_id=1", e.token)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, chat.MsgRoomAccessDenied, body["message"])

	code, _ = e.do(t, http.MethodPost, "/api/inbox/read?room_id=7&message_id="+strconv.FormatInt(msgID, 10), e.token)
	assert.Equal(t, http.StatusNoContent, code)

	entry, err := e.f.Store.InboxEntry(context.Background(), 1, 7)
	require.NoError(t, err)
	assert.Zero(t, entry.UnreadCount)
}
