package narrative

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	// bulletLine matches lines the narrator formatted as list items.
	bulletLine = regexp.MustCompile(`^\s*(?:[-*+•–—]|\(?\d{1,2}[.)])\s+\S`)
	// bulletPrefix is the list marker itself, for stripping from prose.
	bulletPrefix = regexp.MustCompile(`^\s*(?:[-*+•–—]|\(?\d{1,2}[.)])\s+`)
	// optionPrefix covers every decoration seen ahead of option text.
	optionPrefix = regexp.MustCompile(`^(?:\s|[-*_+•·–—>#.]|\(?\d{1,2}[.):]|(?i:option\s*\d{1,2}\s*[:.)\-]))+`)
	// sentence splits prose into terminal-punctuated fragments.
	sentence = regexp.MustCompile(`[^.!?\n]+[.!?]*`)
	// punctuationOnly matches lines left behind by label removal.
	punctuationOnly = regexp.MustCompile(`^[\p{P}\p{S}\s]*$`)
)

// split is the outcome of the first matching split rule.
type split struct {
	rule       string
	scenario   string
	candidates []string
	// minWords is the word threshold candidates must meet. Options listed
	// under the marker were explicitly offered, so only empty ones are
	// dropped; bare bullets are filtered for truncated fragments.
	minWords int
}

type splitRule struct {
	name  string
	apply func(raw string, cfg Config) (split, bool)
}

// splitRules run in order; the first rule that applies wins.
var splitRules = []splitRule{
	{name: "marker", apply: splitOnMarker},
	{name: "bullets", apply: splitOnBullets},
	{name: "prose", apply: splitProse},
}

func splitReply(raw string, cfg Config) split {
	for _, rule := range splitRules {
		if sp, ok := rule.apply(raw, cfg); ok {
			sp.rule = rule.name
			return sp
		}
	}
	return split{scenario: raw}
}

// splitOnMarker splits on the last marker so an incidental mention inside the
// narrative does not swallow the real option list.
func splitOnMarker(raw string, _ Config) (split, bool) {
	idx := strings.LastIndex(raw, Marker)
	if idx < 0 {
		return split{}, false
	}
	return split{
		scenario:   raw[:idx],
		candidates: strings.Split(raw[idx+len(Marker):], "\n"),
		minWords:   1,
	}, true
}

func splitOnBullets(raw string, cfg Config) (split, bool) {
	var scenario, candidates []string
	for _, line := range strings.Split(raw, "\n") {
		if bulletLine.MatchString(line) {
			candidates = append(candidates, line)
			continue
		}
		scenario = append(scenario, line)
	}
	if len(candidates) == 0 {
		return split{}, false
	}
	return split{
		scenario:   strings.Join(scenario, "\n"),
		candidates: candidates,
		minWords:   cfg.MinOptionWords,
	}, true
}

func splitProse(raw string, _ Config) (split, bool) {
	return split{scenario: raw}, true
}

// normalizeOption strips list decoration and emphasis from a candidate line.
func normalizeOption(line string) string {
	opt := optionPrefix.ReplaceAllString(line, "")
	opt = strings.TrimRight(opt, " \t*_")
	return strings.Join(strings.Fields(opt), " ")
}

// recoverFromProse returns the last two sentences of scenario long enough to
// stand as options.
func recoverFromProse(scenario string, minWords int) []string {
	var frags []string
	for _, frag := range sentence.FindAllString(scenario, -1) {
		frag = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(frag), ".!?"))
		if len(strings.Fields(frag)) < minWords {
			continue
		}
		frags = append(frags, frag)
	}
	if len(frags) > 2 {
		frags = frags[len(frags)-2:]
	}
	return frags
}

type cleanupRule func(string) string

// scenarioRules builds the ordered scenario cleanup pipeline.
func scenarioRules(banned []string) []cleanupRule {
	phrases := append([]string{Marker}, banned...)
	patterns := make([]*regexp.Regexp, 0, len(phrases))
	for _, phrase := range phrases {
		phrase = strings.TrimSpace(phrase)
		if phrase == "" {
			continue
		}
		patterns = append(patterns, regexp.MustCompile(`(?i)`+regexp.QuoteMeta(phrase)))
	}

	return []cleanupRule{
		func(s string) string {
			// Removing one phrase can splice another together, so repeat
			// until nothing matches.
			for changed := true; changed; {
				changed = false
				for _, re := range patterns {
					if next := re.ReplaceAllString(s, ""); next != s {
						s, changed = next, true
					}
				}
			}
			return s
		},
		stripListMarkers,
		tidyLines,
	}
}

// stripControl drops control characters other than newlines and tabs.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

func stripListMarkers(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = bulletPrefix.ReplaceAllString(line, "")
	}
	return strings.Join(lines, "\n")
}

// tidyLines trims every line, drops lines left with only punctuation and
// collapses runs of blank lines.
func tidyLines(s string) string {
	var out []string
	blank := false
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || punctuationOnly.MatchString(line) {
			blank = len(out) > 0
			continue
		}
		if blank {
			out = append(out, "")
			blank = false
		}
		out = append(out, line)
	}
	joined := strings.Join(out, "\n")
	joined = strings.TrimLeft(joined, " \t:;,-–—")
	return strings.TrimSpace(strings.TrimRight(joined, " \t:;,-–—"))
}
