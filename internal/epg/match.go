// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package epg

import "github.com/ManuGH/tvhgate/internal/htsp"

// FindChannel returns the channel whose NameKey is closest to name, within
// maxDist edits. An exact key match always wins; ties go to the lower
// channel number.
func (s *Store) FindChannel(name string, maxDist int) (htsp.Channel, bool) {
	key := NameKey(name)
	if key == "" {
		return htsp.Channel{}, false
	}

	var (
		best     htsp.Channel
		bestDist = maxDist + 1
	)
	for _, ch := range s.Snapshot().Channels {
		d := levenshtein(key, NameKey(ch.Name))
		if d == 0 {
			return ch, true
		}
		if d < bestDist {
			best, bestDist = ch, d
		}
	}
	if bestDist <= maxDist {
		return best, true
	}
	return htsp.Channel{}, false
}

// levenshtein is the edit distance between a and b in runes.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
