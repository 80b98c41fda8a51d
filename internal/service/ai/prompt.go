package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/taleforge/internal/model/chat"
)

// BaseDirective is the narrator instruction used when no NPC is introduced.
// Its formatting rules are the ones the narrative parser relies on.
const BaseDirective = `You are the game master of a text adventure.
Rules:
- Reply in at most 120 words.
- Write a short scenario first, then a line containing only "Options:", then 3 or 4 player actions.
- Put each action on its own line as a standalone sentence of at least four words, without numbering.
- Never mention options inside the scenario and never greet the player or label the scenario.
- Do not give any character spoken lines.`

// NPCDirective allows exactly one non-player character exchange.
const NPCDirective = `You are the game master of a text adventure.
Rules:
- Reply in at most 120 words.
- Write a short scenario first, then a line containing only "Options:", then 3 or 4 player actions.
- Put each action on its own line as a standalone sentence of at least four words, without numbering.
- Never mention options inside the scenario and never greet the player or label the scenario.
- Introduce one non-player character who speaks exactly once, written as Name: "what they say".
- No other character speaks.`

// DefaultNPCProbability is the chance a turn uses NPCDirective.
const DefaultNPCProbability = 0.35

// Float64er draws uniform values in [0, 1).
type Float64er interface {
	Float64() float64
}

// Prompt is the message sequence for one upstream call.
type Prompt struct {
	Messages []*schema.Message
	NPC      bool
}

// PromptBuilder renders [directive, history..., action] through an eino chat
// template.
type PromptBuilder struct {
	tmpl           prompt.ChatTemplate
	npcProbability float64

	mu  sync.Mutex
	rng Float64er
}

// NewPromptBuilder clamps npcProbability to [0, 1]. A nil rng never picks the
// NPC directive unless npcProbability is 1.
func NewPromptBuilder(npcProbability float64, rng Float64er) *PromptBuilder {
	switch {
	case npcProbability < 0:
		npcProbability = 0
	case npcProbability > 1:
		npcProbability = 1
	}

	return &PromptBuilder{
		tmpl: prompt.FromMessages(
			schema.FString,
			schema.SystemMessage("{directive}"),
			schema.MessagesPlaceholder("history", true),
			schema.UserMessage("{action}"),
		),
		npcProbability: npcProbability,
		rng:            rng,
	}
}

// Build assembles the prompt. Stored system turns are replaced by the chosen
// directive, and a trailing user turn equal to action is dropped so the action
// appears exactly once.
func (b *PromptBuilder) Build(ctx context.Context, history []chat.Turn, action string) (Prompt, error) {
	npc := b.drawNPC()
	directive := BaseDirective
	if npc {
		directive = NPCDirective
	}

	msgs, err := b.tmpl.Format(ctx, map[string]any{
		"directive": directive,
		"history":   historyMessages(history, action),
		"action":    action,
	})
	if err != nil {
		return Prompt{}, fmt.Errorf("failed to render prompt: %w", err)
	}
	return Prompt{Messages: msgs, NPC: npc}, nil
}

func (b *PromptBuilder) drawNPC() bool {
	if b.npcProbability >= 1 {
		return true
	}
	if b.npcProbability <= 0 || b.rng == nil {
		return false
	}
	b.mu.Lock()
	v := b.rng.Float64()
	b.mu.Unlock()
	return v < b.npcProbability
}

func historyMessages(turns []chat.Turn, action string) []*schema.Message {
	if n := len(turns); n > 0 && turns[n-1].Role == chat.RoleUser &&
		strings.TrimSpace(turns[n-1].Content) == strings.TrimSpace(action) {
		turns = turns[:n-1]
	}

	history := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return history
}
