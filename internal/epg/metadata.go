// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package epg

import (
	"regexp"
	"strings"
)

// Metadata is what ParseDescription finds in free-text event descriptions.
type Metadata struct {
	Year      string
	Country   string
	Directors []string
	Actors    []string
}

var (
	// "USA 2023", "D 1999", "Frankreich 2000"
	yearCountryRegex = regexp.MustCompile(`\b([A-Z][a-zA-Z\.]+)\s+((?:19|20)\d{2})\b`)
	directorRegex    = regexp.MustCompile(`(?i)\b(?:Regie:|Director:|Directed by)\s*([^,.\n]+)`)
	castRegex        = regexp.MustCompile(`(?i)\b(?:Darsteller|Cast|Actors|Mit):\s*([^.\n]+)`)
)

// ParseDescription extracts production year, country and credits from the
// conventions German and English broadcasters use in descriptions.
func ParseDescription(desc string) Metadata {
	var meta Metadata

	if match := yearCountryRegex.FindStringSubmatch(desc); len(match) == 3 {
		meta.Country = strings.TrimSpace(match[1])
		meta.Year = match[2]
	}
	if match := directorRegex.FindStringSubmatch(desc); len(match) > 1 {
		meta.Directors = splitNames(match[1])
	}
	if match := castRegex.FindStringSubmatch(desc); len(match) > 1 {
		meta.Actors = splitNames(match[1])
	}
	return meta
}

// splitNames splits a comma list and drops role annotations:
// "Tom Hanks (Forrest)" becomes "Tom Hanks".
func splitNames(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		name, _, _ := strings.Cut(part, "(")
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
