// Package turn runs one player action through prompt, completion, parsing and
// asset resolution while keeping the session history coherent.
package turn

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/taleforge/internal/analysis/narrative"
	"github.com/zhouzirui/taleforge/internal/logger"
	"github.com/zhouzirui/taleforge/internal/metrics"
	"github.com/zhouzirui/taleforge/internal/model/asset"
	"github.com/zhouzirui/taleforge/internal/model/chat"
	"github.com/zhouzirui/taleforge/internal/model/game"
	"github.com/zhouzirui/taleforge/internal/service/ai"
	assetService "github.com/zhouzirui/taleforge/internal/service/asset"
	chatService "github.com/zhouzirui/taleforge/internal/service/chat"
)

const (
	// InvalidInputMessage is returned for blank actions.
	InvalidInputMessage = "Please enter a valid action."
	// UnavailableMessage is returned when the narrator cannot be reached.
	UnavailableMessage = "The narrator falls silent for a moment. Please try again."
)

// Completer produces narrator text for a prompt.
type Completer interface {
	Complete(ctx context.Context, messages []*schema.Message) (ai.Completion, error)
}

// Resolver picks scene images for a scenario.
type Resolver interface {
	Resolve(ctx context.Context, scenario string) (asset.Set, error)
}

// Dependencies groups the collaborators of a Service.
type Dependencies struct {
	Sessions  *chatService.Service
	Prompts   *ai.PromptBuilder
	Completer Completer
	Parser    *narrative.Parser
	Resolver  Resolver
	Logger    *zap.Logger
	// HistoryWindow is how many recent turns are sent upstream.
	HistoryWindow int
}

// Service orchestrates turns. It is safe for concurrent use; turns for one
// session are serialized through the session store.
type Service struct {
	sessions  *chatService.Service
	prompts   *ai.PromptBuilder
	completer Completer
	parser    *narrative.Parser
	resolver  Resolver
	logger    *zap.Logger
	window    int
}

// NewService wires the turn pipeline. Nil parser, prompt builder and resolver
// fall back to defaults.
func NewService(deps Dependencies) *Service {
	s := &Service{
		sessions:  deps.Sessions,
		prompts:   deps.Prompts,
		completer: deps.Completer,
		parser:    deps.Parser,
		resolver:  deps.Resolver,
		logger:    logger.OrNop(deps.Logger),
		window:    deps.HistoryWindow,
	}
	if s.prompts == nil {
		s.prompts = ai.NewPromptBuilder(0, nil)
	}
	if s.parser == nil {
		s.parser = narrative.New(narrative.DefaultConfig())
	}
	if s.resolver == nil {
		s.resolver = assetService.NewResolver(nil, s.logger)
	}
	if s.window <= 0 {
		s.window = chatService.DefaultWindow
	}
	return s
}

// Sessions exposes the underlying store for handlers.
func (s *Service) Sessions() *chatService.Service {
	return s.sessions
}

// PlayTurn processes one action. It never returns an error: failures are
// reported through TurnResult.OK and TurnResult.ErrorKind.
func (s *Service) PlayTurn(ctx context.Context, sessionID, action string) game.TurnResult {
	start := time.Now()
	sessionID = strings.TrimSpace(sessionID)
	action = strings.TrimSpace(action)
	log := s.logger.With(zap.String("session_id", sessionID))

	if action == "" || sessionID == "" {
		metrics.RecordTurn(string(game.ErrorInvalidInput), time.Since(start))
		return s.failure(sessionID, game.ErrorInvalidInput)
	}

	release, err := s.sessions.Acquire(ctx, sessionID)
	if err != nil {
		log.Warn("could not acquire session", zap.Error(err))
		return s.fail(sessionID, game.ErrorUpstreamUnavailable, start)
	}
	defer release()

	if err := s.recordAction(ctx, sessionID, action); err != nil {
		log.Error("failed to record action", zap.Error(err))
		return s.fail(sessionID, game.ErrorUpstreamUnavailable, start)
	}

	history, err := s.sessions.HistoryWindow(ctx, sessionID, s.window)
	if err != nil {
		log.Error("failed to load history", zap.Error(err))
		return s.fail(sessionID, game.ErrorUpstreamUnavailable, start)
	}

	prompt, err := s.prompts.Build(ctx, history, action)
	if err != nil {
		log.Error("failed to build prompt", zap.Error(err))
		return s.fail(sessionID, game.ErrorUpstreamUnavailable, start)
	}

	completion, err := s.completer.Complete(ctx, prompt.Messages)
	if err != nil {
		log.Warn("turn failed upstream",
			zap.Int("attempts", completion.Attempts),
			zap.Bool("cancelled", errors.Is(err, context.Canceled)),
			zap.Error(err))
		return s.fail(sessionID, game.ErrorUpstreamUnavailable, start)
	}

	parsed := s.parser.Parse(completion.Text)
	if parsed.Degraded {
		metrics.RecordParseDegraded()
		log.Info("narrator reply needed option recovery", zap.Int("raw_length", len(completion.Text)))
	}

	assets, err := s.resolver.Resolve(ctx, parsed.Scenario)
	if err != nil {
		log.Warn("asset resolution incomplete", zap.Error(err))
	}

	if err := s.sessions.Append(ctx, sessionID, chat.RoleAssistant, completion.Text); err != nil {
		log.Error("failed to record reply", zap.Error(err))
	}

	elapsed := time.Since(start)
	metrics.RecordTurn("ok", elapsed)
	log.Info("turn completed",
		zap.Int("attempts", completion.Attempts),
		zap.Bool("npc", prompt.NPC),
		zap.Bool("degraded", parsed.Degraded),
		zap.Int("options", len(parsed.Options)),
		zap.Duration("duration", elapsed))

	return game.TurnResult{
		SessionID: sessionID,
		Scenario:  parsed.Scenario,
		Options:   parsed.Options,
		Assets:    assets,
		OK:        true,
	}
}

// recordAction appends the user turn unless it is already the latest entry,
// which happens when the previous attempt at this action failed.
func (s *Service) recordAction(ctx context.Context, sessionID, action string) error {
	session, err := s.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		return err
	}
	if last, ok := session.LastTurn(); ok && last.Role == chat.RoleUser && last.Content == action {
		return nil
	}
	return s.sessions.Append(ctx, sessionID, chat.RoleUser, action)
}

func (s *Service) fail(sessionID string, kind game.ErrorKind, start time.Time) game.TurnResult {
	metrics.RecordTurn(string(kind), time.Since(start))
	return s.failure(sessionID, kind)
}

func (s *Service) failure(sessionID string, kind game.ErrorKind) game.TurnResult {
	message := UnavailableMessage
	if kind == game.ErrorInvalidInput {
		message = InvalidInputMessage
	}
	return game.TurnResult{
		SessionID: sessionID,
		Scenario:  message,
		Options:   s.parser.Fallbacks(),
		Assets:    asset.UnknownSet(),
		OK:        false,
		ErrorKind: kind,
	}
}
