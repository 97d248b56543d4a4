package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"propchat/internal/app/chat"
	"propchat/internal/app/identity"
	"propchat/internal/app/store"
	"propchat/internal/app/user"
	"propchat/internal/configs"
	"propchat/internal/pkg/auth/jwt"
	"propchat/internal/pkg/errs"
	"propchat/internal/pkg/metrics"
)

// fakeChatStore is an in-memory ChatStore. InsertMessage can be forced to
// fail to exercise the persist-then-announce ordering over a live socket.
type fakeChatStore struct {
	accounts map[string]store.Account

	mu        sync.Mutex
	insertErr error
}

func (f *fakeChatStore) failInserts(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.insertErr = err
}

func (f *fakeChatStore) GetAccount(_ context.Context, userID string) (store.Account, error) {
	a, ok := f.accounts[userID]
	if !ok {
		return store.Account{}, store.ErrNotFound
	}
	return a, nil
}

func (f *fakeChatStore) GetServerByCompany(context.Context, string) (store.Server, error) {
	return store.Server{ID: "srv-1"}, nil
}

func (f *fakeChatStore) GetChannel(_ context.Context, channelID string) (store.Channel, error) {
	return store.Channel{ID: channelID, ServerID: "srv-1"}, nil
}

func (f *fakeChatStore) ListChannels(context.Context, string, string) ([]store.Channel, error) {
	return nil, nil
}

func (f *fakeChatStore) ListUserRoles(context.Context, string, string) ([]store.Role, error) {
	return nil, nil
}

func (f *fakeChatStore) ListMembers(context.Context, string) ([]store.Member, error) {
	return nil, nil
}

func (f *fakeChatStore) HasManageMessages(context.Context, string, string) (bool, error) {
	return false, nil
}

func (f *fakeChatStore) InsertMessage(_ context.Context, channelID, userID, content string, parentID *string, _ []store.NewAttachment) (store.Message, error) {
	f.mu.Lock()
	insertErr := f.insertErr
	f.mu.Unlock()
	if insertErr != nil {
		return store.Message{}, insertErr
	}
	return store.Message{
		ID:        "msg-1",
		ChannelID: channelID,
		Author:    user.User{ID: userID},
		Content:   content,
		ParentID:  parentID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}, nil
}

func (f *fakeChatStore) GetMessage(context.Context, string) (store.Message, error) {
	return store.Message{}, store.ErrNotFound
}

func (f *fakeChatStore) UpdateMessage(context.Context, string, string) (store.Message, error) {
	return store.Message{}, store.ErrNotFound
}

func (f *fakeChatStore) DeleteMessage(context.Context, string) error { return nil }

func (f *fakeChatStore) ParentInChannel(context.Context, string, string) (bool, error) {
	return true, nil
}

func (f *fakeChatStore) ListMessages(context.Context, string, int, *string) ([]store.Message, error) {
	return nil, nil
}

func (f *fakeChatStore) UpsertReadReceipt(context.Context, string, string, string) error {
	return nil
}

type openAuthorizer struct{}

func (openAuthorizer) CanSubscribe(context.Context, string, user.User) *errs.CustomError {
	return nil
}

type memPresenceStore struct{}

func (memPresenceStore) UpsertPresence(_ context.Context, _, _ string) (time.Time, error) {
	return time.Now(), nil
}

func (memPresenceStore) GetPresenceStatus(context.Context, string) (string, error) {
	return "offline", nil
}

// spyRecorder counts persistence failures; everything else is discarded.
type spyRecorder struct {
	metrics.Nop
	persistenceFailures atomic.Int64
}

func (s *spyRecorder) PersistenceFailure(string) {
	s.persistenceFailures.Add(1)
}

type transportFixture struct {
	server   *httptest.Server
	hub      *chat.Hub
	store    *fakeChatStore
	recorder *spyRecorder
	token    string
}

func newTransportFixture(t *testing.T) *transportFixture {
	return newTransportFixtureWithHeartbeat(t, 30*time.Second)
}

func newTransportFixtureWithHeartbeat(t *testing.T, heartbeat time.Duration) *transportFixture {
	t.Helper()

	cfg := &configs.AppConfig{
		Environment:       "development",
		Port:              8080,
		HeartbeatInterval: heartbeat,
		JWTSecret:         "transport-test-secret",
	}

	st := &fakeChatStore{
		accounts: map[string]store.Account{
			"user-1": {User: user.User{ID: "user-1", FirstName: "Ada", CompanyID: "co-1"}, Status: "active"},
			"user-2": {User: user.User{ID: "user-2", FirstName: "Grace", CompanyID: "co-1"}, Status: "active"},
		},
	}

	rec := &spyRecorder{}
	hub := chat.NewHub(openAuthorizer{}, memPresenceStore{}, rec, cfg.HeartbeatWindow())

	deps := &AppDeps{
		Hub:        hub,
		Config:     cfg,
		Store:      st,
		Resolver:   identity.NewJWTResolver(cfg.JWTSecret, st),
		Authorizer: openAuthorizer{},
		Metrics:    rec,
		Registry:   prometheus.NewRegistry(),
	}

	srv := httptest.NewServer(Router(deps))
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})

	token, err := jwt.GenerateToken(&jwt.Payload{ID: "user-1"}, cfg.JWTSecret, time.Hour)
	require.NoError(t, err)

	return &transportFixture{server: srv, hub: hub, store: st, recorder: rec, token: token}
}

func (f *transportFixture) tokenFor(t *testing.T, userID string) string {
	t.Helper()

	token, err := jwt.GenerateToken(&jwt.Payload{ID: userID}, "transport-test-secret", time.Hour)
	require.NoError(t, err)
	return token
}

func (f *transportFixture) dial(t *testing.T) *websocket.Conn {
	return f.dialAs(t, f.token)
}

func (f *transportFixture) dialAs(t *testing.T, token string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=" + token
	sock, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if res != nil {
		res.Body.Close()
	}
	t.Cleanup(func() { sock.Close() })
	return sock
}

func (f *transportFixture) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(http.MethodPost, f.server.URL+path, bytes.NewReader(raw))
	require.NoError(t, err)
	httpReq.Header.Set("Authorization", "Bearer "+f.token)
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

type transportEvent struct {
	Event     string          `json:"event"`
	ChannelID string          `json:"channelId"`
	Payload   json.RawMessage `json:"payload"`
}

// awaitEvent reads frames until one of the wanted kind arrives, skipping
// presence chatter emitted during registration.
func awaitEvent(t *testing.T, sock *websocket.Conn, kind string) transportEvent {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, sock.SetReadDeadline(deadline))
		_, frame, err := sock.ReadMessage()
		require.NoError(t, err)

		var ev transportEvent
		require.NoError(t, json.Unmarshal(frame, &ev))
		if ev.Event == kind {
			return ev
		}
	}
}

// joinChannel issues channel:join and pipelines a ping behind it; frames are
// dispatched in order, so the pong confirms the join has been applied.
func joinChannel(t *testing.T, sock *websocket.Conn, channelID string) {
	t.Helper()

	join := map[string]any{"op": "channel:join", "payload": map[string]string{"channelId": channelID}}
	require.NoError(t, sock.WriteJSON(join))
	require.NoError(t, sock.WriteJSON(map[string]any{"op": "ping"}))
	awaitEvent(t, sock, "pong")
}

func TestWebSocketDeliversPersistedMessage(t *testing.T) {
	req := require.New(t)
	fx := newTransportFixture(t)

	// Given a connected client subscribed to a channel
	sock := fx.dial(t)
	joinChannel(t, sock, "chan-1")

	// When another request posts a message to that channel
	res := fx.post(t, "/api/chat/channels/chan-1/messages", map[string]string{"content": "hello"})
	req.Equal(http.StatusCreated, res.StatusCode)

	// Then the stored message is delivered over the socket
	ev := awaitEvent(t, sock, "message:new")
	req.Equal("chan-1", ev.ChannelID)

	var m store.Message
	req.NoError(json.Unmarshal(ev.Payload, &m))
	req.Equal("hello", m.Content)
	req.Equal("user-1", m.Author.ID)
}

func TestWebSocketSilentWhenPersistenceFails(t *testing.T) {
	req := require.New(t)
	fx := newTransportFixture(t)

	sock := fx.dial(t)
	joinChannel(t, sock, "chan-1")

	// Given a store that refuses the write
	fx.store.failInserts(errors.New("connection reset by postgres"))

	// When the client posts a message
	res := fx.post(t, "/api/chat/channels/chan-1/messages", map[string]string{"content": "hello"})
	req.Equal(http.StatusInternalServerError, res.StatusCode)
	req.Equal(int64(1), fx.recorder.persistenceFailures.Load())

	// Then nothing reaches the subscriber: the failed write announces no event
	req.NoError(sock.SetReadDeadline(time.Now().Add(300 * time.Millisecond)))
	_, frame, err := sock.ReadMessage()
	req.Error(err, "expected read timeout, got frame: %s", frame)
}

func TestWebSocketHeartbeatTimeoutDisconnects(t *testing.T) {
	req := require.New(t)
	fx := newTransportFixtureWithHeartbeat(t, 150*time.Millisecond)

	// Given an observer and a second client sharing a channel
	observer := fx.dialAs(t, fx.tokenFor(t, "user-2"))
	joinChannel(t, observer, "chan-1")

	silent := fx.dial(t)
	joinChannel(t, silent, "chan-1")
	joined := awaitEvent(t, observer, "channel:user_joined")
	req.Equal("chan-1", joined.ChannelID)

	// When the second client goes silent: no reads, so no pongs and no pings.
	// Twice the heartbeat interval later the server tears the connection down
	// and the observer sees the channel leave followed by the offline presence.
	left := awaitEvent(t, observer, "channel:user_left")
	req.Equal("chan-1", left.ChannelID)

	var leftPayload struct {
		UserID string `json:"userId"`
	}
	req.NoError(json.Unmarshal(left.Payload, &leftPayload))
	req.Equal("user-1", leftPayload.UserID)

	presence := awaitEvent(t, observer, "user:presence")
	var presencePayload struct {
		UserID string `json:"user_id"`
		Status string `json:"status"`
	}
	req.NoError(json.Unmarshal(presence.Payload, &presencePayload))
	req.Equal("user-1", presencePayload.UserID)
	req.Equal("offline", presencePayload.Status)

	req.Eventually(func() bool { return fx.hub.ConnCount() == 1 }, 2*time.Second, 20*time.Millisecond)
}

func TestWebSocketRejectsInvalidCredential(t *testing.T) {
	req := require.New(t)
	fx := newTransportFixture(t)

	wsURL := "ws" + strings.TrimPrefix(fx.server.URL, "http") + "/ws?token=not-a-token"
	sock, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	req.Error(err)
	req.Nil(sock)
	req.NotNil(res)
	defer res.Body.Close()
	req.Equal(http.StatusUnauthorized, res.StatusCode)
	req.Equal(0, fx.hub.ConnCount())
}
