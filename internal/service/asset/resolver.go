// Package asset picks scene images for a scenario and derives the keyword
// table from image filenames.
package asset

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/zhouzirui/taleforge/internal/logger"
	"github.com/zhouzirui/taleforge/internal/metrics"
	"github.com/zhouzirui/taleforge/internal/model/asset"
)

var (
	markupTag = regexp.MustCompile(`<[^>]*>`)
	wordToken = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

// Resolver maps scenario text onto an asset.Set through a keyword Store.
type Resolver struct {
	store  asset.Store
	logger *zap.Logger
}

// NewResolver creates a Resolver over store.
func NewResolver(store asset.Store, l *zap.Logger) *Resolver {
	return &Resolver{store: store, logger: logger.OrNop(l)}
}

// Resolve scans the scenario's words in order and assigns each category the
// file of the first word whose entry carries that category. Markup is ignored.
// On a store error the categories resolved so far are returned with the error.
func (r *Resolver) Resolve(ctx context.Context, scenario string) (asset.Set, error) {
	set := asset.UnknownSet()
	if r == nil || r.store == nil {
		return set, nil
	}

	resolved := make(map[asset.Category]bool, len(asset.Categories))
	seen := make(map[string]struct{})
	for _, token := range Tokenize(scenario) {
		if len(resolved) == len(asset.Categories) {
			break
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}

		entry, ok, err := r.lookup(ctx, token)
		if err != nil {
			r.record(resolved)
			return set, fmt.Errorf("resolve assets: %w", err)
		}
		if !ok || resolved[entry.Category] {
			continue
		}
		set = set.With(entry.Category, entry.Filename)
		resolved[entry.Category] = true
		r.logger.Debug("asset matched",
			zap.String("token", token),
			zap.String("category", string(entry.Category)),
			zap.String("filename", entry.Filename))
	}

	r.record(resolved)
	return set, nil
}

// lookup tries the token as written, then without a plural suffix.
func (r *Resolver) lookup(ctx context.Context, token string) (asset.Entry, bool, error) {
	for _, candidate := range singulars(token) {
		entry, ok, err := r.store.Lookup(ctx, candidate)
		if err != nil || ok {
			return entry, ok, err
		}
	}
	return asset.Entry{}, false, nil
}

func (r *Resolver) record(resolved map[asset.Category]bool) {
	for _, c := range asset.Categories {
		metrics.RecordAsset(string(c), resolved[c])
	}
}

// Tokenize lowercases text, drops markup, and returns its word tokens in order.
func Tokenize(text string) []string {
	text = html.UnescapeString(markupTag.ReplaceAllString(text, " "))
	return wordToken.FindAllString(strings.ToLower(text), -1)
}

func singulars(token string) []string {
	out := []string{token}
	n := utf8.RuneCountInString(token)
	if strings.HasSuffix(token, "es") && n > 4 {
		out = append(out, strings.TrimSuffix(token, "es"))
	}
	if strings.HasSuffix(token, "s") && !strings.HasSuffix(token, "ss") && n > 3 {
		out = append(out, strings.TrimSuffix(token, "s"))
	}
	return out
}
