// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package htsp

import (
	"context"
	"time"
)

// Asynchronous server methods.
const (
	MethodChannelAdd           = "channelAdd"
	MethodChannelUpdate        = "channelUpdate"
	MethodChannelDelete        = "channelDelete"
	MethodEventAdd             = "eventAdd"
	MethodEventUpdate          = "eventUpdate"
	MethodEventDelete          = "eventDelete"
	MethodInitialSyncCompleted = "initialSyncCompleted"
)

// EventHandler receives asynchronous server messages in arrival order.
// HandleEvent runs on the client's event goroutine; a slow handler applies
// backpressure to the connection once the event buffer is full.
type EventHandler interface {
	HandleEvent(ctx context.Context, msg Message)
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, msg Message)

// HandleEvent calls f.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, msg Message) { f(ctx, msg) }

// ServerInfo is what the server announced in its hello reply.
type ServerInfo struct {
	Name         string
	Version      string
	HTSPVersion  int64
	Capabilities []string
	WebRoot      string
}

// SysTime is the server clock.
type SysTime struct {
	Time      time.Time
	GMTOffset time.Duration
	Timezone  string
}

// DiskSpace reports the recording storage in bytes.
type DiskSpace struct {
	Free  int64
	Used  int64
	Total int64
}

// Channel is a tuner channel as announced by channelAdd/channelUpdate.
type Channel struct {
	ID     uint32
	Number int64
	Name   string
	Icon   string
}

// ChannelFromMessage reads channel fields. Update messages carry only the
// changed fields, so absent fields stay zero and ok reports the id only.
func ChannelFromMessage(m Message) (ch Channel, ok bool) {
	ch.ID, ok = m.Uint("channelId")
	ch.Number, _ = m.Int("channelNumber")
	ch.Name, _ = m.Str("channelName")
	ch.Icon, _ = m.Str("channelIcon")
	return ch, ok
}

// Event is one EPG entry.
type Event struct {
	ID          uint32
	ChannelID   uint32
	Start       time.Time
	Stop        time.Time
	Title       string
	Summary     string
	Description string
}

// EventFromMessage reads event fields; ok is false without an eventId.
func EventFromMessage(m Message) (ev Event, ok bool) {
	ev.ID, ok = m.Uint("eventId")
	ev.ChannelID, _ = m.Uint("channelId")
	if v, has := m.Int("start"); has {
		ev.Start = time.Unix(v, 0)
	}
	if v, has := m.Int("stop"); has {
		ev.Stop = time.Unix(v, 0)
	}
	ev.Title, _ = m.Str("title")
	ev.Summary, _ = m.Str("summary")
	ev.Description, _ = m.Str("description")
	return ev, ok
}

// EventQuery selects events for GetEvents.
type EventQuery struct {
	ChannelID    uint32    // zero selects all channels
	MaxTime      time.Time // zero means no upper bound
	NumFollowing int
}

func (q EventQuery) args() Message {
	args := Message{}
	if q.ChannelID != 0 {
		args["channelId"] = int64(q.ChannelID)
	}
	if !q.MaxTime.IsZero() {
		args["maxTime"] = q.MaxTime.Unix()
	}
	if q.NumFollowing > 0 {
		args["numFollowing"] = int64(q.NumFollowing)
	}
	return args
}

// AsyncOptions configures enableAsyncMetadata.
type AsyncOptions struct {
	EPG        bool
	EPGMaxTime time.Time
}
