package narrative

import (
	"html"
	"regexp"
	"strings"
)

// dialogue matches `Name: "quoted text"` with straight or curly quotes. The
// speaker is the single word before the colon, so titles stay plain text.
var dialogue = regexp.MustCompile(`\b([A-Za-z]+):\s*["“]([^"”\n]+)["”]`)

// Ellipsis replaces the quote of every NPC line after the first.
const Ellipsis = "…"

var markupEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// formatDialogue renders the first NPC line as markup and collapses the rest
// to the speaker name plus an ellipsis, so a scenario carries at most one live
// quote. Text outside the markup is escaped so it cannot inject tags.
func formatDialogue(scenario string) string {
	matches := dialogue.FindAllStringSubmatchIndex(scenario, -1)
	if len(matches) == 0 {
		return markupEscaper.Replace(scenario)
	}

	var b strings.Builder
	last := 0
	for i, m := range matches {
		b.WriteString(markupEscaper.Replace(scenario[last:m[0]]))
		name := scenario[m[2]:m[3]]
		quote := strings.TrimSpace(scenario[m[4]:m[5]])
		if i == 0 {
			b.WriteString(`<strong class="npc-name">`)
			b.WriteString(html.EscapeString(name))
			b.WriteString(`</strong>: <span class="npc-dialogue">"`)
			b.WriteString(html.EscapeString(quote))
			b.WriteString(`"</span>`)
		} else {
			b.WriteString(markupEscaper.Replace(name))
			b.WriteString(`: "` + Ellipsis + `"`)
		}
		last = m[1]
	}
	b.WriteString(markupEscaper.Replace(scenario[last:]))
	return b.String()
}
