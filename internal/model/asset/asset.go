package asset

import "strings"

// Category groups scene images.
type Category string

const (
	Environment Category = "environment"
	Item        Category = "item"
	Character   Category = "character"
)

// Categories lists every category in resolution order.
var Categories = []Category{Environment, Item, Character}

// Unknown is the sentinel filename for a category with no match.
const Unknown = "unknown.png"

// ParseCategory maps a stored category string onto a known Category.
func ParseCategory(raw string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case Environment:
		return Environment, true
	case Item:
		return Item, true
	case Character:
		return Character, true
	default:
		return "", false
	}
}

// Entry is one row of the keyword table.
type Entry struct {
	Keyword  string   `json:"keyword"`
	Category Category `json:"category"`
	Filename string   `json:"filename"`
}

// Set is the categorized image selection for one scenario.
type Set struct {
	Environment string `json:"environment"`
	Item        string `json:"item"`
	Character   string `json:"character"`
}

// UnknownSet returns a Set with every category unresolved.
func UnknownSet() Set {
	return Set{Environment: Unknown, Item: Unknown, Character: Unknown}
}

// Get returns the filename assigned to a category.
func (s Set) Get(c Category) string {
	switch c {
	case Environment:
		return s.Environment
	case Item:
		return s.Item
	case Character:
		return s.Character
	}
	return ""
}

// With returns a copy of s with the category set to filename.
func (s Set) With(c Category, filename string) Set {
	switch c {
	case Environment:
		s.Environment = filename
	case Item:
		s.Item = filename
	case Character:
		s.Character = filename
	}
	return s
}
