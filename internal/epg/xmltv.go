// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package epg keeps the tuner's channel and event state and exports it as
// XMLTV.
package epg

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	unorm "golang.org/x/text/unicode/norm"

	xglog "github.com/ManuGH/tvhgate/internal/log"
)

// TimeLayout is the XMLTV timestamp format.
const TimeLayout = "20060102150405 -0700"

// maxXMLSize bounds ReadXMLTV input.
const maxXMLSize = 50 * 1024 * 1024

type TV struct {
	XMLName   xml.Name    `xml:"tv"`
	Generator string      `xml:"generator-info-name,attr,omitempty"`
	Channels  []Channel   `xml:"channel"`
	Programs  []Programme `xml:"programme"`
}

type Channel struct {
	ID          string   `xml:"id,attr"`
	DisplayName []string `xml:"display-name"`
	Icon        *Icon    `xml:"icon,omitempty"`
}

type Icon struct {
	Src string `xml:"src,attr"`
}

type Programme struct {
	Start   string   `xml:"start,attr"`
	Stop    string   `xml:"stop,attr"`
	Channel string   `xml:"channel,attr"`
	Title   Title    `xml:"title"`
	Desc    string   `xml:"desc,omitempty"`
	Credits *Credits `xml:"credits,omitempty"`
	Date    string   `xml:"date,omitempty"`
	Country string   `xml:"country,omitempty"`
}

type Title struct {
	// Lang contains the language code for the title (optional).
	Lang string `xml:"lang,attr,omitempty"`
	// Value is the character data of the title element.
	Value string `xml:",chardata"`
}

type Credits struct {
	Directors []string `xml:"director"`
	Actors    []string `xml:"actor"`
}

// FormatTime renders t as an XMLTV timestamp.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// Encode writes tv with an XML declaration.
func Encode(w io.Writer, tv *TV) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(tv); err != nil {
		return fmt.Errorf("encode xmltv: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// WriteXMLTV replaces path with tv. Readers see either the old file or the
// complete new one; the data is synced before the rename.
func WriteXMLTV(ctx context.Context, path string, tv *TV) error {
	logger := xglog.FromContext(ctx)

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create XMLTV directory: %w", err)
	}
	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending XMLTV file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending XMLTV file")
		}
	}()

	if err := Encode(pendingFile, tv); err != nil {
		return fmt.Errorf("write XMLTV data: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace XMLTV file: %w", err)
	}
	return nil
}

// ReadXMLTV parses an XMLTV file. Entity expansion is disabled and input
// beyond 50 MiB is ignored.
func ReadXMLTV(path string) (*TV, error) {
	path = filepath.Clean(path)
	// path comes from configuration
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var doc TV
	dec := xml.NewDecoder(io.LimitReader(f, maxXMLSize))
	dec.Strict = true
	dec.Entity = make(map[string]string)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode xmltv: %w", err)
	}
	return &doc, nil
}

var (
	suffix = regexp.MustCompile(`\s+(hd|uhd|4k|austria|österreich|oesterreich|at|de|ch)$`)
	space  = regexp.MustCompile(`\s+`)
)

// NameKey folds a channel name for matching: NFC, lower case, quality and
// region suffixes removed, whitespace collapsed. "ORF1 HD" and "orf1" share
// a key.
func NameKey(s string) string {
	s = unorm.NFC.String(s)
	s = strings.ToLower(strings.TrimSpace(s))
	// lower casing can produce new combining sequences
	s = unorm.NFC.String(s)

	for {
		before := s
		s = suffix.ReplaceAllString(s, "")
		if s == before {
			break
		}
	}

	s = space.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
