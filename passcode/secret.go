// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package passcode

import "strings"

// Template placeholder markers for the three symbol classes.
const (
	placeholderLetter  = "@"
	placeholderDigit   = "#"
	placeholderKeyword = "$"
)

// RenderSecret substitutes the resolved symbols into the pattern's
// placeholders, one class at a time in the order letters, digits, keywords.
// Within each class placeholders are consumed left to right, one per symbol.
// Symbols without a remaining placeholder of their class are dropped;
// placeholders without a symbol remain as-is.
func RenderSecret(pattern string, reports []IndexedReport) string {
	var letters, digits, keywords []string
	for _, r := range reports {
		if r.Symbol == "" {
			continue
		}

		switch classify(r.Symbol) {
		case placeholderLetter:
			letters = append(letters, r.Symbol)
		case placeholderDigit:
			digits = append(digits, r.Symbol)
		default:
			keywords = append(keywords, r.Symbol)
		}
	}

	parts := strings.Split(pattern, "")
	substitute(parts, placeholderLetter, letters)
	substitute(parts, placeholderDigit, digits)
	substitute(parts, placeholderKeyword, keywords)

	return strings.Join(parts, "")
}

// classify returns the placeholder class of a symbol: a single ASCII letter
// maps to the letter class, a single ASCII digit to the digit class, and
// everything else (multi-character tokens) to the keyword class.
func classify(symbol string) string {
	if len(symbol) != 1 {
		return placeholderKeyword
	}

	c := symbol[0]
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return placeholderLetter
	case c >= '0' && c <= '9':
		return placeholderDigit
	default:
		return placeholderKeyword
	}
}

func substitute(parts []string, marker string, symbols []string) {
	for _, symbol := range symbols {
		for i, p := range parts {
			if p == marker {
				parts[i] = symbol
				break
			}
		}
	}
}
