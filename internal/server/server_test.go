package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"proxichat/broker/internal/config"
	"proxichat/broker/internal/geo"
	"proxichat/broker/internal/models"

	"github.com/Netflix/go-env"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type testServer struct {
	base string
	host string
}

func startServer(t *testing.T, vars env.EnvSet) testServer {
	t.Helper()
	if _, ok := vars["SQLITE_PATH"]; !ok {
		vars["SQLITE_PATH"] = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	}
	cfg, err := config.FromEnvSet(vars)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	srv, err := New(ctx, cfg, logs.GetLoggerFromLevel(slog.LevelError))
	if err != nil {
		_ = srv.Close()
		cancel()
		require.NoError(t, err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
		require.NoError(t, srv.Close())
	})

	return testServer{base: "http://" + ln.Addr().String(), host: ln.Addr().String()}
}

func (s testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	r, err := http.NewRequest(method, s.base+path, reader)
	require.NoError(t, err)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(r)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (s testServer) register(t *testing.T, name string, at geo.Coordinate) models.UserResponse {
	t.Helper()
	status, res := s.do(t, http.MethodPost, "/users/register/"+name, "", at)
	require.Equal(t, http.StatusCreated, status, res.Error)
	var user models.UserResponse
	require.NoError(t, json.Unmarshal(res.Data, &user))
	return user
}

func (s testServer) dial(t *testing.T, userID uuid.UUID, token string) *websocket.Conn {
	t.Helper()
	u := url.URL{Scheme: "ws", Host: s.host, Path: "/chat/" + userID.String()}
	if token != "" {
		u.RawQuery = "token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// the roster pushed on connect proves the hub registered us
	readRoster(t, conn)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn, kind byte) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		if len(data) > 0 && data[0] == kind {
			return data
		}
	}
}

func readRoster(t *testing.T, conn *websocket.Conn) []models.Contact {
	t.Helper()
	var contacts []models.Contact
	require.NoError(t, json.Unmarshal(readFrame(t, conn, '['), &contacts))
	return contacts
}

func readMessage(t *testing.T, conn *websocket.Conn) models.Message {
	t.Helper()
	msg, err := models.DecodeMessage(readFrame(t, conn, '{'))
	require.NoError(t, err)
	return msg
}

func (s testServer) onlineCount(t *testing.T) int {
	t.Helper()
	_, res := s.do(t, http.MethodGet, "/ws/stats", "", nil)
	var stats struct {
		OnlineUsers int `json:"onlineUsers"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &stats))
	return stats.OnlineUsers
}

func decodeMessages(t *testing.T, res envelope) []models.Message {
	t.Helper()
	var messages []models.Message
	require.NoError(t, json.Unmarshal(res.Data, &messages))
	return messages
}

func TestServer_EndToEndScenario(t *testing.T) {
	req := require.New(t)
	s := startServer(t, env.EnvSet{})

	// Given alice and bob registered about 556m apart
	alice := s.register(t, "alice", geo.Coordinate{Latitude: 0, Longitude: 0})
	bob := s.register(t, "bob", geo.Coordinate{Latitude: 0, Longitude: 0.005})

	status, res := s.do(t, http.MethodPost, "/contacts/sync", "", jsonBody{
		"userID":   alice.ID,
		"location": geo.Coordinate{},
		"radius":   1000,
	})
	req.Equal(http.StatusOK, status, res.Error)
	var near []models.Contact
	req.NoError(json.Unmarshal(res.Data, &near))
	req.Len(near, 1)
	req.Equal(bob.ID, near[0].ID)
	req.InDelta(556, *near[0].Distance, 1)

	// When both connect and alice writes to bob
	aliceConn := s.dial(t, alice.ID, "")
	bobConn := s.dial(t, bob.ID, "")
	live := models.NewMessage(alice.ID, bob.ID, "hello bob")
	req.NoError(aliceConn.WriteJSON(live))

	// Then bob receives it live
	req.Equal(live, readMessage(t, bobConn))

	// When bob goes away and alice writes again
	req.NoError(bobConn.Close())
	req.Eventually(func() bool { return s.onlineCount(t) == 1 }, 5*time.Second, 20*time.Millisecond)
	queued := models.NewMessage(alice.ID, bob.ID, "call me back")
	req.NoError(aliceConn.WriteJSON(queued))

	// Then the message waits in bob's queue exactly once
	var pending []models.Message
	req.Eventually(func() bool {
		_, res := s.do(t, http.MethodGet, "/queue/"+bob.ID.String(), "", nil)
		pending = append(pending, decodeMessages(t, res)...)
		return len(pending) > 0
	}, 5*time.Second, 50*time.Millisecond)
	req.Equal([]models.Message{queued}, pending)

	_, res = s.do(t, http.MethodGet, "/queue/"+bob.ID.String(), "", nil)
	req.Empty(decodeMessages(t, res))

	// And the conversation holds both messages in either direction
	_, res = s.do(t, http.MethodGet, fmt.Sprintf("/messages/%s/%s", bob.ID, alice.ID), "", nil)
	req.Equal([]models.Message{live, queued}, decodeMessages(t, res))

	// And bob shows as offline in the contacts of alice
	_, res = s.do(t, http.MethodPost, "/contacts/sync", "", jsonBody{
		"userID": alice.ID, "location": geo.Coordinate{}, "radius": 1000,
	})
	req.NoError(json.Unmarshal(res.Data, &near))
	req.False(near[0].IsOnline)
}

func TestServer_AccountErrors(t *testing.T) {
	req := require.New(t)
	s := startServer(t, env.EnvSet{})
	s.register(t, "carol", geo.Coordinate{})

	status, _ := s.do(t, http.MethodPost, "/users/register/carol", "", geo.Coordinate{})
	req.Equal(http.StatusConflict, status)

	status, _ = s.do(t, http.MethodPost, "/users/login/dave", "", geo.Coordinate{})
	req.Equal(http.StatusNotFound, status)

	status, _ = s.do(t, http.MethodPost, "/users/register/erin", "", geo.Coordinate{Latitude: 120})
	req.Equal(http.StatusBadRequest, status)

	status, res := s.do(t, http.MethodPost, "/users/login/carol", "", geo.Coordinate{Latitude: 1})
	req.Equal(http.StatusOK, status)
	var user models.UserResponse
	req.NoError(json.Unmarshal(res.Data, &user))
	req.Equal(models.StatusOnline, user.Status)
	req.Empty(user.Token)
}

func TestServer_StatusUpdates(t *testing.T) {
	req := require.New(t)
	s := startServer(t, env.EnvSet{})
	userID := uuid.New()

	status, _ := s.do(t, http.MethodPut, "/status/"+userID.String(), "", "away")
	req.Equal(http.StatusOK, status)

	status, _ = s.do(t, http.MethodPut, "/status/"+userID.String(), "", jsonBody{"status": "offline"})
	req.Equal(http.StatusOK, status)

	status, _ = s.do(t, http.MethodPut, "/status/"+userID.String(), "", "sleeping")
	req.Equal(http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPut, "/status/not-a-uuid", "", "away")
	req.Equal(http.StatusBadRequest, status)
}

func TestServer_AuthenticationAndDurableBackends(t *testing.T) {
	req := require.New(t)
	s := startServer(t, env.EnvSet{
		"JWT_SECRET":      "s3cret",
		"QUEUE_BACKEND":   "badger",
		"HISTORY_BACKEND": "badger",
		"BADGER_PATH":     t.TempDir(),
	})
	alice := s.register(t, "alice", geo.Coordinate{})
	bob := s.register(t, "bob", geo.Coordinate{Latitude: 0.001})
	req.NotEmpty(alice.Token)

	// Requests without a token, or with the token of someone else, are refused
	status, _ := s.do(t, http.MethodGet, "/queue/"+bob.ID.String(), "", nil)
	req.Equal(http.StatusUnauthorized, status)
	status, _ = s.do(t, http.MethodGet, "/queue/"+bob.ID.String(), alice.Token, nil)
	req.Equal(http.StatusForbidden, status)
	status, _ = s.do(t, http.MethodPost, "/contacts/sync", alice.Token, jsonBody{
		"userID": bob.ID, "location": geo.Coordinate{}, "radius": 10,
	})
	req.Equal(http.StatusForbidden, status)

	// A websocket authenticated through the query string can send
	aliceConn := s.dial(t, alice.ID, alice.Token)
	msg := models.NewMessage(alice.ID, bob.ID, "stored on disk")
	req.NoError(aliceConn.WriteJSON(msg))

	var pending []models.Message
	req.Eventually(func() bool {
		_, res := s.do(t, http.MethodGet, "/queue/"+bob.ID.String(), bob.Token, nil)
		pending = append(pending, decodeMessages(t, res)...)
		return len(pending) > 0
	}, 5*time.Second, 50*time.Millisecond)
	req.Equal([]models.Message{msg}, pending)

	status, res := s.do(t, http.MethodGet, fmt.Sprintf("/messages/%s/%s", alice.ID, bob.ID), bob.Token, nil)
	req.Equal(http.StatusOK, status)
	req.Equal([]models.Message{msg}, decodeMessages(t, res))
}

func TestServer_HealthIsPublic(t *testing.T) {
	req := require.New(t)
	s := startServer(t, env.EnvSet{"JWT_SECRET": "s3cret"})

	resp, err := http.Get(s.base + "/health")
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusOK, resp.StatusCode)
}

type jsonBody map[string]any
