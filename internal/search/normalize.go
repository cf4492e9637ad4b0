// Package search normalizes Arabic text so that spelling variants of the same
// name (hamza forms, taa marbuta, diacritics) compare equal.
package search

import (
	"strings"
	"unicode"

	"github.com/uptrace/bun"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// tashkeel covers the Arabic harakat block plus the superscript alef.
var tashkeel = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x064B, Hi: 0x065F, Stride: 1},
		{Lo: 0x0670, Hi: 0x0670, Stride: 1},
	},
}

var letterVariants = map[rune]rune{
	'أ': 'ا',
	'إ': 'ا',
	'آ': 'ا',
	'ٱ': 'ا',
	'ؤ': 'و',
	'ئ': 'ي',
	'ة': 'ه',
	'ى': 'ي',
}

func unifyLetter(r rune) rune {
	if mapped, ok := letterVariants[r]; ok {
		return mapped
	}
	return unicode.ToLower(r)
}

func newNormalizer() transform.Transformer {
	return transform.Chain(runes.Remove(runes.In(tashkeel)), runes.Map(unifyLetter))
}

// Normalize strips diacritics, folds letter variants, lowercases and
// collapses whitespace. It is idempotent.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	out, _, err := transform.String(newNormalizer(), text)
	if err != nil {
		out = text
	}
	return strings.Join(strings.Fields(out), " ")
}

// Includes reports whether term occurs in text after normalizing both.
func Includes(text, term string) bool {
	if text == "" || term == "" {
		return false
	}
	return strings.Contains(Normalize(text), Normalize(term))
}

// MatchAny reports whether term occurs in any of the fields. A blank term
// matches everything.
func MatchAny(term string, fields ...string) bool {
	if strings.TrimSpace(term) == "" {
		return true
	}
	for _, f := range fields {
		if Includes(f, term) {
			return true
		}
	}
	return false
}

// likeEscaper makes LIKE wildcards in a search term match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// Filter adds a case-insensitive "contains" condition over the given columns,
// OR-ed together. A blank term leaves the query untouched.
func Filter(q *bun.SelectQuery, term string, columns ...string) *bun.SelectQuery {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" || len(columns) == 0 {
		return q
	}
	pattern := "%" + likeEscaper.Replace(term) + "%"
	return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
		for _, col := range columns {
			q = q.WhereOr(`lower(?) LIKE ? ESCAPE '\'`, bun.Ident(col), pattern)
		}
		return q
	})
}
