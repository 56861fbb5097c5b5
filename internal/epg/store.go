// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package epg

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/tvhgate/internal/htsp"
	xglog "github.com/ManuGH/tvhgate/internal/log"
)

// Store holds channels and events mirrored from the server's asynchronous
// metadata stream. It is safe for concurrent use and implements
// htsp.EventHandler.
type Store struct {
	mu       sync.RWMutex
	channels map[uint32]htsp.Channel
	events   map[uint32]htsp.Event
	synced   bool
	syncedCh chan struct{}
	logger   zerolog.Logger
}

// NewStore returns an empty, unsynced store.
func NewStore() *Store {
	return &Store{
		channels: make(map[uint32]htsp.Channel),
		events:   make(map[uint32]htsp.Event),
		syncedCh: make(chan struct{}),
		logger:   xglog.WithComponent("epg"),
	}
}

// HandleEvent applies msg; it lets the store be the client's handler.
func (s *Store) HandleEvent(_ context.Context, msg htsp.Message) {
	s.Apply(msg)
}

// Apply updates the store from one asynchronous message. Update messages
// carry only the fields that changed. It reports whether msg was used.
func (s *Store) Apply(msg htsp.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch method := msg.Method(); method {
	case htsp.MethodChannelAdd:
		ch, ok := htsp.ChannelFromMessage(msg)
		if !ok {
			return s.malformed(method)
		}
		s.channels[ch.ID] = ch
	case htsp.MethodChannelUpdate:
		id, ok := msg.Uint("channelId")
		if !ok {
			return s.malformed(method)
		}
		s.channels[id] = mergeChannel(s.channels[id], id, msg)
	case htsp.MethodChannelDelete:
		id, ok := msg.Uint("channelId")
		if !ok {
			return s.malformed(method)
		}
		delete(s.channels, id)
		for evID, ev := range s.events {
			if ev.ChannelID == id {
				delete(s.events, evID)
			}
		}
	case htsp.MethodEventAdd:
		ev, ok := htsp.EventFromMessage(msg)
		if !ok {
			return s.malformed(method)
		}
		s.events[ev.ID] = ev
	case htsp.MethodEventUpdate:
		id, ok := msg.Uint("eventId")
		if !ok {
			return s.malformed(method)
		}
		s.events[id] = mergeEvent(s.events[id], id, msg)
	case htsp.MethodEventDelete:
		id, ok := msg.Uint("eventId")
		if !ok {
			return s.malformed(method)
		}
		delete(s.events, id)
	case htsp.MethodInitialSyncCompleted:
		if !s.synced {
			s.synced = true
			close(s.syncedCh)
			s.logger.Info().
				Str(xglog.FieldEvent, "epg.synced").
				Int("channels", len(s.channels)).
				Int("events", len(s.events)).
				Msg("initial metadata sync completed")
		}
	default:
		return false
	}
	return true
}

func (s *Store) malformed(method string) bool {
	s.logger.Debug().
		Str(xglog.FieldEvent, "epg.malformed").
		Str(xglog.FieldMethod, method).
		Msg("ignoring message without id")
	return false
}

func mergeChannel(ch htsp.Channel, id uint32, msg htsp.Message) htsp.Channel {
	ch.ID = id
	if v, ok := msg.Int("channelNumber"); ok {
		ch.Number = v
	}
	if v, ok := msg.Str("channelName"); ok {
		ch.Name = v
	}
	if v, ok := msg.Str("channelIcon"); ok {
		ch.Icon = v
	}
	return ch
}

func mergeEvent(ev htsp.Event, id uint32, msg htsp.Message) htsp.Event {
	ev.ID = id
	if v, ok := msg.Uint("channelId"); ok {
		ev.ChannelID = v
	}
	if v, ok := msg.Int("start"); ok {
		ev.Start = time.Unix(v, 0)
	}
	if v, ok := msg.Int("stop"); ok {
		ev.Stop = time.Unix(v, 0)
	}
	if v, ok := msg.Str("title"); ok {
		ev.Title = v
	}
	if v, ok := msg.Str("summary"); ok {
		ev.Summary = v
	}
	if v, ok := msg.Str("description"); ok {
		ev.Description = v
	}
	return ev
}

// Merge adds or replaces events fetched with getEvents.
func (s *Store) Merge(events []htsp.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		s.events[ev.ID] = ev
	}
}

// Prune drops events that ended before t and returns how many were removed.
func (s *Store) Prune(t time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, ev := range s.events {
		if !ev.Stop.IsZero() && ev.Stop.Before(t) {
			delete(s.events, id)
			n++
		}
	}
	return n
}

// Synced reports whether initialSyncCompleted has been received.
func (s *Store) Synced() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.synced
}

// WaitSynced blocks until the initial sync completed or ctx is done.
func (s *Store) WaitSynced(ctx context.Context) error {
	select {
	case <-s.syncedCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot is a consistent copy of the store. Channels are ordered by
// number then name, events by channel then start.
type Snapshot struct {
	Channels []htsp.Channel
	Events   []htsp.Event
}

// Snapshot copies the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	snap := Snapshot{
		Channels: make([]htsp.Channel, 0, len(s.channels)),
		Events:   make([]htsp.Event, 0, len(s.events)),
	}
	for _, ch := range s.channels {
		snap.Channels = append(snap.Channels, ch)
	}
	for _, ev := range s.events {
		snap.Events = append(snap.Events, ev)
	}
	s.mu.RUnlock()

	sort.Slice(snap.Channels, func(i, j int) bool {
		a, b := snap.Channels[i], snap.Channels[j]
		if a.Number != b.Number {
			return a.Number < b.Number
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
	sort.Slice(snap.Events, func(i, j int) bool {
		a, b := snap.Events[i], snap.Events[j]
		if a.ChannelID != b.ChannelID {
			return a.ChannelID < b.ChannelID
		}
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.ID < b.ID
	})
	return snap
}

// Len returns the number of channels and events.
func (s *Store) Len() (channels, events int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.channels), len(s.events)
}
