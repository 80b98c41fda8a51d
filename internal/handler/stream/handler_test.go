package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/taleforge/internal/model/asset"
	"github.com/zhouzirui/taleforge/internal/model/game"
)

type slowPlayer struct {
	delay time.Duration
}

func (p slowPlayer) PlayTurn(ctx context.Context, sessionID, action string) game.TurnResult {
	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
	}
	if strings.TrimSpace(action) == "" {
		return game.TurnResult{SessionID: sessionID, Assets: asset.UnknownSet(), ErrorKind: game.ErrorInvalidInput}
	}
	return game.TurnResult{SessionID: sessionID, Scenario: "A bridge.", Options: []string{"Cross it", "Go back"}, Assets: asset.UnknownSet(), OK: true}
}

func serve(t *testing.T, player slowPlayer, target string) string {
	t.Helper()
	r := chi.NewRouter()
	New(player, nil, 5*time.Millisecond, nil).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	return rec.Body.String()
}

func TestStreamEmitsEventsInOrder(t *testing.T) {
	body := serve(t, slowPlayer{delay: 30 * time.Millisecond}, "/stream/s1?action=look")

	start := strings.Index(body, "event: start")
	heartbeat := strings.Index(body, "event: heartbeat")
	turn := strings.Index(body, "event: turn")
	end := strings.Index(body, "event: end")
	if start < 0 || heartbeat < start || turn < heartbeat || end < turn {
		t.Fatalf("unexpected event order:\n%s", body)
	}
	if !strings.Contains(body, `"scenario":"A bridge."`) {
		t.Fatalf("missing turn payload:\n%s", body)
	}
}

func TestStreamReportsInvalidInput(t *testing.T) {
	body := serve(t, slowPlayer{}, "/stream/s1")

	if !strings.Contains(body, `"errorKind":"invalid_input"`) {
		t.Fatalf("expected invalid input result:\n%s", body)
	}
	if !strings.Contains(body, "event: end") {
		t.Fatalf("expected end event:\n%s", body)
	}
}
