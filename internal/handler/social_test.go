package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"shelfmate/backend/internal/hub"
	"shelfmate/backend/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFriendRequestFlow(t *testing.T) {
	e := newTestEnv(t, nil)
	alice := e.register("alice")
	bob := e.register("bob")

	w := e.do(http.MethodPost, "/api/v1/friends/requests", alice.Token, gin.H{"user_id": bob.ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var req FriendRequestResponse
	decode(t, w, &req)
	assert.Equal(t, alice.ID, req.InitiatorID)
	assert.Equal(t, bob.ID, req.ApproverID)
	assert.Equal(t, "bob", req.User.Username)

	// The reverse request hits the same pair.
	w = e.do(http.MethodPost, "/api/v1/friends/requests", bob.Token, gin.H{"user_id": alice.ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(http.MethodGet, "/api/v1/friends/requests?direction=incoming", bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var incoming []FriendRequestResponse
	decode(t, w, &incoming)
	require.Len(t, incoming, 1)
	assert.Equal(t, "alice", incoming[0].User.Username)

	approve := fmt.Sprintf("/api/v1/friends/requests/%d/approve", req.ID)

	// Only the receiver can approve.
	w = e.do(http.MethodPost, approve, alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"applied":false}`, w.Body.String())

	w = e.do(http.MethodPost, approve, bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"applied":true}`, w.Body.String())

	w = e.do(http.MethodPost, approve, bob.Token, nil)
	assert.JSONEq(t, `{"applied":false}`, w.Body.String())

	w = e.do(http.MethodGet, "/api/v1/friends", alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var friends []UserSummary
	decode(t, w, &friends)
	require.Len(t, friends, 1)
	assert.Equal(t, bob.ID, friends[0].ID)

	w = e.do(http.MethodGet, fmt.Sprintf("/api/v1/users/%d", bob.ID), alice.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var profile PublicUserResponse
	decode(t, w, &profile)
	assert.Equal(t, "friends", profile.RelationToMe)
	assert.EqualValues(t, 1, profile.FriendsCount)

	w = e.do(http.MethodPost, "/api/v1/friends/requests", alice.Token, gin.H{"user_id": bob.ID})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(http.MethodDelete, fmt.Sprintf("/api/v1/friends/%d", alice.ID), bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"applied":true}`, w.Body.String())

	w = e.do(http.MethodGet, "/api/v1/friends", alice.Token, nil)
	decode(t, w, &friends)
	assert.Empty(t, friends)
}

func TestFriendRequestValidation(t *testing.T) {
	e := newTestEnv(t, nil)
	alice := e.register("alice")

	w := e.do(http.MethodPost, "/api/v1/friends/requests", alice.Token, gin.H{"user_id": alice.ID})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/api/v1/friends/requests", alice.Token, gin.H{"user_id": 999})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodGet, "/api/v1/friends/requests?direction=sideways", alice.Token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelAndDenyRequest(t *testing.T) {
	e := newTestEnv(t, nil)
	alice := e.register("alice")
	bob := e.register("bob")

	send := func() uint {
		w := e.do(http.MethodPost, "/api/v1/friends/requests", alice.Token, gin.H{"user_id": bob.ID})
		require.Equal(t, http.StatusCreated, w.Code)
		var req FriendRequestResponse
		decode(t, w, &req)
		return req.ID
	}

	id := send()
	// The receiver cannot cancel, the initiator can.
	w := e.do(http.MethodPost, fmt.Sprintf("/api/v1/friends/requests/%d/cancel", id), bob.Token, nil)
	assert.JSONEq(t, `{"applied":false}`, w.Body.String())
	w = e.do(http.MethodPost, fmt.Sprintf("/api/v1/friends/requests/%d/cancel", id), alice.Token, nil)
	assert.JSONEq(t, `{"applied":true}`, w.Body.String())

	id = send()
	w = e.do(http.MethodPost, fmt.Sprintf("/api/v1/friends/requests/%d/deny", id), alice.Token, nil)
	assert.JSONEq(t, `{"applied":false}`, w.Body.String())
	w = e.do(http.MethodPost, fmt.Sprintf("/api/v1/friends/requests/%d/deny", id), bob.Token, nil)
	assert.JSONEq(t, `{"applied":true}`, w.Body.String())

	w = e.do(http.MethodGet, "/api/v1/friends/requests?direction=outgoing", alice.Token, nil)
	var outgoing []FriendRequestResponse
	decode(t, w, &outgoing)
	assert.Empty(t, outgoing)
}

func TestSendMessage(t *testing.T) {
	e := newTestEnv(t, nil)
	alice := e.register("alice")
	bob := e.register("bob")

	inbox := hub.NewClient(4)
	e.h.hub.Subscribe(bob.ID, inbox)
	defer e.h.hub.Unsubscribe(bob.ID, inbox)

	w := e.do(http.MethodPost, "/api/v1/messages", alice.Token, gin.H{"receiver_id": bob.ID, "text": "Have you read Dune?"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var msg MessageDTO
	decode(t, w, &msg)
	assert.Equal(t, alice.ID, msg.SenderID)
	assert.Equal(t, "Have you read Dune?", msg.Text)

	select {
	case data := <-inbox:
		var ev struct {
			Type    string                 `json:"type"`
			Payload service.MessagePayload `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, service.EventReceiveMessage, ev.Type)
		assert.Equal(t, "alice", ev.Payload.SenderName)
		assert.Equal(t, "Have you read Dune?", ev.Payload.Text)
	case <-time.After(time.Second):
		t.Fatal("receiver got no push")
	}

	// Blank messages are dropped.
	w = e.do(http.MethodPost, "/api/v1/messages", alice.Token, gin.H{"receiver_id": bob.ID, "text": "   "})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = e.do(http.MethodPost, "/api/v1/messages", alice.Token, gin.H{"receiver_id": 999, "text": "hello"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodGet, fmt.Sprintf("/api/v1/messages/%d", alice.ID), bob.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []MessageDTO
	decode(t, w, &history)
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)

	w = e.do(http.MethodGet, "/api/v1/messages", bob.Token, nil)
	var partners []UserSummary
	decode(t, w, &partners)
	require.Len(t, partners, 1)
	assert.Equal(t, "alice", partners[0].Username)
}

func TestWebsocketRelay(t *testing.T) {
	e := newTestEnv(t, nil)
	alice := e.register("alice")
	bob := e.register("bob")

	srv := httptest.NewServer(e.router)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws"

	dial := func(token string) *websocket.Conn {
		header := http.Header{"Authorization": []string{"Bearer " + token}}
		conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
		require.NoError(t, err)
		_ = resp.Body.Close()
		return conn
	}

	bobConn := dial(bob.Token)
	defer bobConn.Close()
	aliceConn := dial(alice.Token)
	defer aliceConn.Close()

	require.Eventually(t, func() bool {
		return e.h.hub.Online(bob.ID) && e.h.hub.Online(alice.ID)
	}, time.Second, 10*time.Millisecond)

	w := e.do(http.MethodGet, fmt.Sprintf("/api/v1/users/%d/online", bob.ID), alice.Token, nil)
	assert.JSONEq(t, `{"online":true}`, w.Body.String())

	frame := fmt.Sprintf(`{"type":"SendMessage","payload":{"receiver_id":%d,"text":"hi bob"}}`, bob.ID)
	require.NoError(t, aliceConn.WriteMessage(websocket.TextMessage, []byte(frame)))

	for _, conn := range []*websocket.Conn{bobConn, aliceConn} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(data), `"type":"ReceiveMessage"`)
		assert.Contains(t, string(data), `"hi bob"`)
	}

	w = e.do(http.MethodGet, fmt.Sprintf("/api/v1/messages/%d", bob.ID), alice.Token, nil)
	var history []MessageDTO
	decode(t, w, &history)
	require.Len(t, history, 1)
	assert.Equal(t, "hi bob", history[0].Text)
}

func TestWebsocketRequiresSession(t *testing.T) {
	e := newTestEnv(t, nil)
	w := e.do(http.MethodGet, "/api/v1/ws", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEventStreamRelay(t *testing.T) {
	e := newTestEnv(t, nil)
	alice := e.register("alice")
	bob := e.register("bob")

	srv := httptest.NewServer(e.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/messages/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+bob.Token)

	// Headers are flushed with the first event, so the request runs alongside the send.
	responses := make(chan *http.Response, 1)
	go func() {
		resp, err := srv.Client().Do(req)
		if err != nil {
			close(responses)
			return
		}
		responses <- resp
	}()

	require.Eventually(t, func() bool { return e.h.hub.Online(bob.ID) }, time.Second, 10*time.Millisecond)

	w := e.do(http.MethodPost, "/api/v1/messages", alice.Token, gin.H{"receiver_id": bob.ID, "text": "streamed hello"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp *http.Response
	select {
	case r, ok := <-responses:
		require.True(t, ok, "stream request failed")
		resp = r
	case <-time.After(2 * time.Second):
		t.Fatal("stream never answered")
	}
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	var event, data string
	timeout := time.After(2 * time.Second)
	for data == "" {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream closed before the event")
			switch {
			case strings.HasPrefix(line, "event:"):
				event = strings.TrimPrefix(line, "event:")
			case strings.HasPrefix(line, "data:") && event != "":
				data = strings.TrimPrefix(line, "data:")
			}
		case <-timeout:
			t.Fatal("no event frame on the stream")
		}
	}
	assert.Equal(t, service.EventReceiveMessage, event)

	var ev struct {
		Type    string                 `json:"type"`
		Payload service.MessagePayload `json:"payload"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, "alice", ev.Payload.SenderName)
	assert.Equal(t, "streamed hello", ev.Payload.Text)

	cancel()
	require.Eventually(t, func() bool { return !e.h.hub.Online(bob.ID) }, 2*time.Second, 10*time.Millisecond)
}

func TestEventStreamRequiresSession(t *testing.T) {
	e := newTestEnv(t, nil)
	w := e.do(http.MethodGet, "/api/v1/messages/stream", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
