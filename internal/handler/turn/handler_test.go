package turn

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/taleforge/internal/model/asset"
	"github.com/zhouzirui/taleforge/internal/model/game"
)

type fakePlayer struct {
	mu    sync.Mutex
	calls []string
	kind  game.ErrorKind
}

func (f *fakePlayer) PlayTurn(_ context.Context, sessionID, action string) game.TurnResult {
	f.mu.Lock()
	f.calls = append(f.calls, sessionID+"|"+action)
	f.mu.Unlock()

	if strings.TrimSpace(action) == "" {
		return game.TurnResult{SessionID: sessionID, Options: []string{"Explore", "Look around"}, Assets: asset.UnknownSet(), ErrorKind: game.ErrorInvalidInput}
	}
	if f.kind != "" {
		return game.TurnResult{SessionID: sessionID, Options: []string{"Explore", "Look around"}, Assets: asset.UnknownSet(), ErrorKind: f.kind}
	}
	return game.TurnResult{
		SessionID: sessionID,
		Scenario:  "You " + action + ".",
		Options:   []string{"Go on", "Turn back"},
		Assets:    asset.Set{Environment: "cave.png", Item: asset.Unknown, Character: asset.Unknown},
		OK:        true,
	}
}

func setupRouter(player Player) *chi.Mux {
	h := New(player, func(name string) string { return "/static/images/" + name }, nil)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func postTurn(t *testing.T, r http.Handler, body string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/turn", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	var resp Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec, resp
}

func TestTurnSuccess(t *testing.T) {
	player := &fakePlayer{}
	rec, resp := postTurn(t, setupRouter(player), `{"sessionId":"s1","action":"enter the cave"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !resp.OK || resp.SessionID != "s1" || resp.Scenario != "You enter the cave." {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Images.Environment != "/static/images/cave.png" || resp.Images.Item != "/static/images/unknown.png" {
		t.Fatalf("unexpected images %+v", resp.Images)
	}
}

func TestTurnAcceptsChoiceAlias(t *testing.T) {
	player := &fakePlayer{}
	_, resp := postTurn(t, setupRouter(player), `{"sessionId":"s1","choice":"look around"}`)

	if resp.Scenario != "You look around." {
		t.Fatalf("expected choice to be played, got %+v", resp)
	}
}

func TestTurnMintsSessionID(t *testing.T) {
	player := &fakePlayer{}
	_, resp := postTurn(t, setupRouter(player), `{"action":"Start"}`)

	if resp.SessionID == "" {
		t.Fatal("expected a minted session id")
	}
}

func TestTurnInvalidInput(t *testing.T) {
	player := &fakePlayer{}
	rec, resp := postTurn(t, setupRouter(player), `{"sessionId":"s1","action":"   "}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if resp.OK || resp.ErrorKind != game.ErrorInvalidInput || len(resp.Options) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestTurnUpstreamUnavailable(t *testing.T) {
	player := &fakePlayer{kind: game.ErrorUpstreamUnavailable}
	rec, resp := postTurn(t, setupRouter(player), `{"sessionId":"s1","action":"wait"}`)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rec.Code)
	}
	if resp.ErrorKind != game.ErrorUpstreamUnavailable {
		t.Fatalf("unexpected error kind %q", resp.ErrorKind)
	}
}

func TestTurnRejectsMalformedBody(t *testing.T) {
	player := &fakePlayer{}
	rec, _ := postTurn(t, setupRouter(player), `{"sessionId":`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
	if len(player.calls) != 0 {
		t.Fatalf("expected no turn to be played, got %v", player.calls)
	}
}

func TestWebSocketPlaysTurnsInOrder(t *testing.T) {
	player := &fakePlayer{}
	srv := httptest.NewServer(setupRouter(player))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/s9"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for _, action := range []string{"light a torch", "descend"} {
		if err := conn.WriteJSON(map[string]string{"action": action}); err != nil {
			t.Fatalf("write: %v", err)
		}
		var resp Response
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatalf("read: %v", err)
		}
		if resp.Scenario != "You "+action+"." || resp.SessionID != "s9" {
			t.Fatalf("unexpected response %+v", resp)
		}
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	var failure wsError
	if err := conn.ReadJSON(&failure); err != nil {
		t.Fatalf("read: %v", err)
	}
	if failure.Error == "" {
		t.Fatal("expected an error frame for malformed input")
	}

	player.mu.Lock()
	defer player.mu.Unlock()
	if len(player.calls) != 2 || player.calls[0] != "s9|light a torch" || player.calls[1] != "s9|descend" {
		t.Fatalf("unexpected calls %v", player.calls)
	}
}
