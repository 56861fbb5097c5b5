// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package epg

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ManuGH/tvhgate/internal/htsp"
)

// defaultDuration stands in for a missing stop time.
const defaultDuration = 30 * time.Minute

// BuildOptions tunes BuildTV.
type BuildOptions struct {
	// Generator is written to generator-info-name.
	Generator string
	// IconBase is prefixed to relative channel icon paths such as
	// "imagecache/12".
	IconBase string
	// Lang is set on programme titles when non-empty.
	Lang string
}

// BuildTV renders snap as an XMLTV document. Events on unknown channels or
// without a title are skipped.
func BuildTV(snap Snapshot, opts BuildOptions) *TV {
	if opts.Generator == "" {
		opts.Generator = "tvhgate"
	}
	tv := &TV{
		Generator: opts.Generator,
		Channels:  make([]Channel, 0, len(snap.Channels)),
		Programs:  make([]Programme, 0, len(snap.Events)),
	}

	ids := channelIDs(snap.Channels)
	for _, ch := range snap.Channels {
		xch := Channel{ID: ids[ch.ID], DisplayName: displayNames(ch)}
		if ch.Icon != "" {
			xch.Icon = &Icon{Src: iconURL(opts.IconBase, ch.Icon)}
		}
		tv.Channels = append(tv.Channels, xch)
	}

	for _, ev := range snap.Events {
		id, ok := ids[ev.ChannelID]
		if !ok || ev.Title == "" || ev.Start.IsZero() {
			continue
		}
		stop := ev.Stop
		if !stop.After(ev.Start) {
			stop = ev.Start.Add(defaultDuration)
		}
		desc := description(ev)
		prog := Programme{
			Start:   FormatTime(ev.Start),
			Stop:    FormatTime(stop),
			Channel: id,
			Title:   Title{Lang: opts.Lang, Value: ev.Title},
			Desc:    desc,
		}
		if desc != "" {
			meta := ParseDescription(desc)
			prog.Date = meta.Year
			prog.Country = meta.Country
			if len(meta.Directors) > 0 || len(meta.Actors) > 0 {
				prog.Credits = &Credits{Directors: meta.Directors, Actors: meta.Actors}
			}
		}
		tv.Programs = append(tv.Programs, prog)
	}
	return tv
}

// channelIDs assigns XMLTV ids derived from channel names. Names that
// collapse to the same id, or to nothing, get the server id appended.
func channelIDs(channels []htsp.Channel) map[uint32]string {
	ids := make(map[uint32]string, len(channels))
	used := make(map[string]bool, len(channels))
	for _, ch := range channels {
		id := makeStableID(ch.Name)
		if id == "" || used[id] {
			id = strings.TrimPrefix(id+".tvh"+strconv.FormatUint(uint64(ch.ID), 10), ".")
		}
		used[id] = true
		ids[ch.ID] = id
	}
	return ids
}

func displayNames(ch htsp.Channel) []string {
	names := []string{ch.Name}
	if ch.Number > 0 {
		names = append(names, strconv.FormatInt(ch.Number, 10))
	}
	return names
}

func iconURL(base, icon string) string {
	if base == "" || strings.Contains(icon, "://") {
		return icon
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(icon, "/")
}

// description prefers the long text unless it only repeats the summary.
func description(ev htsp.Event) string {
	if ev.Description != "" && ev.Description != ev.Summary {
		return ev.Description
	}
	return ev.Summary
}

var (
	stableIDStrip = regexp.MustCompile(`[^a-zA-ZÀ-ÿ0-9\s.\-_]`)
	stableIDEmpty = regexp.MustCompile(`^[\s.\-_]*$`)
	stableIDSep   = regexp.MustCompile(`[\s.\-_]+`)
)

// makeStableID turns a channel name into a dotted lower-case id, keeping
// Latin-1 letters: "Das Erste HD" becomes "das.erste.hd".
func makeStableID(input string) string {
	cleaned := stableIDStrip.ReplaceAllString(strings.ToLower(input), "")
	if stableIDEmpty.MatchString(cleaned) {
		return ""
	}
	return strings.Trim(stableIDSep.ReplaceAllString(cleaned, "."), ".")
}
