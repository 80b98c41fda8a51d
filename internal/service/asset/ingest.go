package asset

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/zhouzirui/taleforge/internal/model/asset"
)

type categoryPattern struct {
	category asset.Category
	hints    []string
}

// categoryPatterns classify an image by substrings of its filename. Earlier
// categories win when a name carries hints for several.
var categoryPatterns = []categoryPattern{
	{asset.Environment, []string{
		"dngn_", "castle", "ruins", "dungeon", "cave", "forest", "swamp", "lava", "desert",
		"village", "city", "ice", "volcano", "tavern", "altar", "tree", "rock", "water",
	}},
	{asset.Item, []string{
		"sword", "dagger", "axe", "shield", "potion", "scroll", "staff", "wand", "key",
		"gold", "treasure", "armor", "ring", "orb", "rune", "stone", "book",
	}},
	{asset.Character, []string{
		"goblin", "orc", "troll", "dragon", "lich", "wizard", "knight", "demon", "vampire",
		"guardian", "mummy", "skeleton", "elf", "merchant", "bandit", "undead",
	}},
}

var letters = regexp.MustCompile(`\p{L}+`)

// minKeywordLen drops filler tokens such as "of" or "a".
const minKeywordLen = 3

// Classify returns the category implied by filename.
func Classify(filename string) (asset.Category, bool) {
	name := strings.ToLower(filepath.Base(filename))
	for _, p := range categoryPatterns {
		for _, hint := range p.hints {
			if strings.Contains(name, hint) {
				return p.category, true
			}
		}
	}
	return "", false
}

// Keywords splits a filename into lowercase single-word keywords.
func Keywords(filename string) []string {
	base := strings.ToLower(filepath.Base(filename))
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var out []string
	seen := make(map[string]struct{})
	for _, word := range letters.FindAllString(base, -1) {
		if utf8.RuneCountInString(word) < minKeywordLen {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		out = append(out, word)
	}
	return out
}

// DeriveEntries builds keyword rows for the given image files. Files are
// processed in sorted order, unclassified files are skipped, and the first
// file to claim a keyword keeps it.
func DeriveEntries(filenames []string) []asset.Entry {
	sorted := append([]string(nil), filenames...)
	sort.Strings(sorted)

	var entries []asset.Entry
	claimed := make(map[string]struct{})
	for _, file := range sorted {
		if !strings.EqualFold(filepath.Ext(file), ".png") {
			continue
		}
		category, ok := Classify(file)
		if !ok {
			continue
		}
		for _, kw := range Keywords(file) {
			if _, dup := claimed[kw]; dup {
				continue
			}
			claimed[kw] = struct{}{}
			entries = append(entries, asset.Entry{
				Keyword:  kw,
				Category: category,
				Filename: filepath.Base(file),
			})
		}
	}
	return entries
}
