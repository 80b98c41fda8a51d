// Package narrative turns free-form narrator replies into a scenario and a
// bounded list of player options.
//
// Parsing is a pure function over its input and Config: it never fails and
// never panics, and every result satisfies the option invariants (between
// MinOptions and MaxOptions distinct entries, none containing Marker).
package narrative

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/zhouzirui/taleforge/internal/model/game"
)

// Marker separates the scenario from the option list in narrator replies.
const Marker = "Options:"

// DefaultFallbackOptions pads replies that carry too few usable options.
var DefaultFallbackOptions = []string{"Explore", "Look around", "Wait"}

// DefaultBannedPhrases are stock labels and greetings stripped from scenarios.
var DefaultBannedPhrases = []string{
	"Scenario:",
	"Narrator:",
	"Game Master:",
	"Welcome, adventurer!",
	"Welcome to the adventure!",
}

// lastResortOptions guarantees MinOptions is reachable even when the configured
// fallbacks collide with options already present.
var lastResortOptions = []string{"Explore", "Look around", "Wait", "Continue onward"}

const (
	defaultMinOptionWords = 4
	defaultMinOptions     = 2
	defaultMaxOptions     = 4
	defaultEmptyScenario  = "The path ahead is quiet."
)

// Intner picks a rotation offset into the fallback options.
type Intner interface {
	IntN(n int) int
}

// Config controls option thresholds and scenario cleanup.
type Config struct {
	BannedPhrases   []string
	MinOptionWords  int
	MinOptions      int
	MaxOptions      int
	FallbackOptions []string
	// EmptyScenario replaces a scenario that is blank after cleanup.
	EmptyScenario string
	// Rand, when set, picks where the fallback rotation starts. It must be
	// safe for concurrent use if the Parser is shared.
	Rand Intner
}

// DefaultConfig returns the thresholds the narrator directive is written for.
func DefaultConfig() Config {
	return Config{
		BannedPhrases:   append([]string(nil), DefaultBannedPhrases...),
		MinOptionWords:  defaultMinOptionWords,
		MinOptions:      defaultMinOptions,
		MaxOptions:      defaultMaxOptions,
		FallbackOptions: append([]string(nil), DefaultFallbackOptions...),
		EmptyScenario:   defaultEmptyScenario,
	}
}

func (c Config) normalized() Config {
	if c.MinOptionWords <= 0 {
		c.MinOptionWords = defaultMinOptionWords
	}
	if c.MinOptions <= 0 {
		c.MinOptions = defaultMinOptions
	}
	if c.MinOptions > len(lastResortOptions) {
		c.MinOptions = len(lastResortOptions)
	}
	if c.MaxOptions <= 0 {
		c.MaxOptions = defaultMaxOptions
	}
	if c.MaxOptions < c.MinOptions {
		c.MaxOptions = c.MinOptions
	}
	if strings.TrimSpace(c.EmptyScenario) == "" {
		c.EmptyScenario = defaultEmptyScenario
	}

	fallbacks := make([]string, 0, len(c.FallbackOptions))
	for _, opt := range c.FallbackOptions {
		opt = normalizeOption(opt)
		if opt == "" || strings.Contains(opt, Marker) {
			continue
		}
		fallbacks = append(fallbacks, opt)
	}
	if len(fallbacks) == 0 {
		fallbacks = append(fallbacks, DefaultFallbackOptions...)
	}
	c.FallbackOptions = fallbacks
	return c
}

// Parser applies the split and cleanup rules with a fixed Config.
type Parser struct {
	cfg     Config
	cleanup []cleanupRule
}

// New builds a Parser. Zero-valued thresholds fall back to the defaults.
func New(cfg Config) *Parser {
	cfg = cfg.normalized()
	return &Parser{
		cfg:     cfg,
		cleanup: scenarioRules(cfg.BannedPhrases),
	}
}

// Config returns the normalized configuration.
func (p *Parser) Config() Config {
	return p.cfg
}

// Fallbacks returns the configured fallback options, de-duplicated and capped
// at MaxOptions, topped up to MinOptions when too few are distinct.
func (p *Parser) Fallbacks() []string {
	opts := newOptionSet(p.cfg.MaxOptions)
	for _, opt := range p.cfg.FallbackOptions {
		opts.add(opt)
	}
	opts.pad(lastResortOptions, p.cfg.MinOptions, nil)
	return opts.list()
}

// Parse is shorthand for New(cfg).Parse(raw).
func Parse(raw string, cfg Config) game.ParsedResponse {
	return New(cfg).Parse(raw)
}

// Parse splits raw into scenario and options.
func (p *Parser) Parse(raw string) game.ParsedResponse {
	raw = stripControl(strings.ReplaceAll(raw, "\r\n", "\n"))

	sp := splitReply(raw, p.cfg)
	scenario := sp.scenario
	for _, rule := range p.cleanup {
		scenario = rule(scenario)
	}

	opts := newOptionSet(p.cfg.MaxOptions)
	for _, line := range sp.candidates {
		opts.addCandidate(line, sp.minWords)
	}

	degraded := false
	if opts.len() < p.cfg.MinOptions {
		degraded = true
		for _, frag := range recoverFromProse(scenario, p.cfg.MinOptionWords) {
			opts.addCandidate(frag, p.cfg.MinOptionWords)
		}
	}
	if opts.len() < p.cfg.MinOptions {
		opts.pad(p.cfg.FallbackOptions, p.cfg.MinOptions, p.cfg.Rand)
		opts.pad(lastResortOptions, p.cfg.MinOptions, nil)
	}

	if scenario == "" {
		degraded = true
		scenario = p.cfg.EmptyScenario
	}

	return game.ParsedResponse{
		Scenario: formatDialogue(scenario),
		Options:  opts.list(),
		Degraded: degraded,
	}
}

// Serialize renders a parsed reply back into the narrator format.
func Serialize(resp game.ParsedResponse) string {
	var b strings.Builder
	b.WriteString(resp.Scenario)
	b.WriteString("\n")
	b.WriteString(Marker)
	for _, opt := range resp.Options {
		b.WriteString("\n- ")
		b.WriteString(opt)
	}
	return b.String()
}

type optionSet struct {
	max   int
	items []string
	seen  map[string]struct{}
	fold  cases.Caser
}

func newOptionSet(max int) *optionSet {
	return &optionSet{
		max:  max,
		seen: make(map[string]struct{}),
		fold: cases.Fold(),
	}
}

func (s *optionSet) len() int {
	return len(s.items)
}

func (s *optionSet) key(opt string) string {
	key := strings.Join(strings.Fields(s.fold.String(opt)), " ")
	return strings.TrimRight(key, ".!")
}

// add records opt unless an equal option was already seen or the set is full.
func (s *optionSet) add(opt string) bool {
	if len(s.items) >= s.max {
		return false
	}
	k := s.key(opt)
	if k == "" {
		return false
	}
	if _, dup := s.seen[k]; dup {
		return false
	}
	s.seen[k] = struct{}{}
	s.items = append(s.items, opt)
	return true
}

func (s *optionSet) addCandidate(line string, minWords int) {
	opt := normalizeOption(line)
	if opt == "" || strings.Contains(opt, Marker) {
		return
	}
	if len(strings.Fields(opt)) < minWords {
		return
	}
	s.add(opt)
}

// pad appends entries from pool in rotation until the set holds min items.
func (s *optionSet) pad(pool []string, min int, rnd Intner) {
	if len(pool) == 0 {
		return
	}
	start := 0
	if rnd != nil {
		start = rnd.IntN(len(pool))
	}
	for i := 0; i < len(pool) && len(s.items) < min; i++ {
		s.add(pool[(start+i)%len(pool)])
	}
}

func (s *optionSet) list() []string {
	return append([]string(nil), s.items...)
}
