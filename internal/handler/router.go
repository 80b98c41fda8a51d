package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/taleforge/internal/handler/chat"
	"github.com/zhouzirui/taleforge/internal/handler/stream"
	"github.com/zhouzirui/taleforge/internal/handler/turn"
	"github.com/zhouzirui/taleforge/internal/logger"
	"github.com/zhouzirui/taleforge/internal/metrics"
	middlewarePkg "github.com/zhouzirui/taleforge/internal/middleware"
	chatService "github.com/zhouzirui/taleforge/internal/service/chat"
	"github.com/zhouzirui/taleforge/pkg/utils"
)

// Dependencies are the services the HTTP layer needs.
type Dependencies struct {
	Sessions *chatService.Service
	Player   turn.Player
	AssetURL turn.URLFunc
	// AssetDir and AssetPrefix serve image files when both are set and the
	// prefix is a local path.
	AssetDir    string
	AssetPrefix string
	Heartbeat   time.Duration
	// AllowedOrigins feeds CORS; empty allows every origin.
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Dependencies) http.Handler {
	log := logger.OrNop(deps.Logger)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_ = utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	if deps.AssetDir != "" && strings.HasPrefix(deps.AssetPrefix, "/") {
		prefix := "/" + strings.Trim(deps.AssetPrefix, "/") + "/"
		r.Handle(prefix+"*", http.StripPrefix(prefix, http.FileServer(http.Dir(deps.AssetDir))))
	}

	chatHandler := chat.New(deps.Sessions)
	turnHandler := turn.New(deps.Player, deps.AssetURL, log)
	streamHandler := stream.New(deps.Player, deps.AssetURL, deps.Heartbeat, log)

	r.Route("/api", func(api chi.Router) {
		chatHandler.RegisterRoutes(api)
		turnHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
	})

	return r
}
