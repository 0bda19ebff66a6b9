// Copyright © 2024-2026 IngressFS Labs. Licensed under the terms of the MIT License.

package passcode_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ingressfs/passbot/passcode"
)

func TestRenderSecret(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		symbols []string
		want    string
	}{
		{
			name:    "empty pattern",
			pattern: "",
			symbols: []string{"a", "1"},
			want:    "",
		},
		{
			name:    "no placeholders",
			pattern: "static",
			symbols: []string{"a", "1"},
			want:    "static",
		},
		{
			name:    "all classes",
			pattern: "#@$#",
			symbols: []string{"x", "3", "omega", "7"},
			want:    "3xomega7",
		},
		{
			name:    "placeholders left over",
			pattern: "@@##",
			symbols: []string{"q"},
			want:    "q@##",
		},
		{
			name:    "symbols left over",
			pattern: "#",
			symbols: []string{"1", "2", "z"},
			want:    "1",
		},
		{
			name:    "classes consumed in report order",
			pattern: "@#@#",
			symbols: []string{"a", "1", "b", "2"},
			want:    "a1b2",
		},
		{
			name:    "multi character symbol is a keyword",
			pattern: "@-$",
			symbols: []string{"ab"},
			want:    "@-ab",
		},
		{
			name:    "non alphanumeric single char is a keyword",
			pattern: "@#$",
			symbols: []string{"*"},
			want:    "@#*",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var reports []passcode.IndexedReport
			for i, symbol := range test.symbols {
				reports = append(reports, passcode.IndexedReport{Index: i + 1, Symbol: symbol})
			}

			require.Equal(t, test.want, passcode.RenderSecret(test.pattern, reports))
		})
	}
}

func TestRenderSecretSkipsEmptySymbols(t *testing.T) {
	reports := []passcode.IndexedReport{
		{Index: 1, Symbol: ""},
		{Index: 2, Symbol: "9"},
	}

	require.Equal(t, "9@", passcode.RenderSecret("#@", reports))
}
