// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package htsp

import (
	"context"
	"fmt"
	"time"
)

// GetSysTime returns the server clock.
func (c *Client) GetSysTime(ctx context.Context) (SysTime, error) {
	reply, err := c.Call(ctx, "getSysTime", nil)
	if err != nil {
		return SysTime{}, err
	}
	sec, ok := reply.Int("time")
	if !ok {
		return SysTime{}, fmt.Errorf("%w: getSysTime reply without time", ErrMalformed)
	}
	st := SysTime{Time: time.Unix(sec, 0)}
	if mins, ok := reply.Int("gmtoffset"); ok {
		st.GMTOffset = time.Duration(mins) * time.Minute
	}
	st.Timezone, _ = reply.Str("timezone")
	return st, nil
}

// GetDiskSpace returns recording storage usage.
func (c *Client) GetDiskSpace(ctx context.Context) (DiskSpace, error) {
	reply, err := c.Call(ctx, "getDiskSpace", nil)
	if err != nil {
		return DiskSpace{}, err
	}
	var ds DiskSpace
	ds.Free, _ = reply.Int("freediskspace")
	ds.Used, _ = reply.Int("useddiskspace")
	ds.Total, _ = reply.Int("totaldiskspace")
	return ds, nil
}

// GetEvents fetches EPG events. Entries without an event id are skipped.
func (c *Client) GetEvents(ctx context.Context, q EventQuery) ([]Event, error) {
	reply, err := c.Call(ctx, "getEvents", q.args())
	if err != nil {
		return nil, err
	}
	items, _ := reply.List("events")
	events := make([]Event, 0, len(items))
	for _, item := range items {
		m, ok := item.(Message)
		if !ok {
			continue
		}
		if ev, ok := EventFromMessage(m); ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

// EnableAsyncMetadata asks the server to stream channels (and optionally
// EPG events) as asynchronous messages, finished by initialSyncCompleted.
func (c *Client) EnableAsyncMetadata(ctx context.Context, opts AsyncOptions) error {
	args := Message{}
	if opts.EPG {
		args["epg"] = int64(1)
		if !opts.EPGMaxTime.IsZero() {
			args["epgMaxTime"] = opts.EPGMaxTime.Unix()
		}
	}
	_, err := c.Call(ctx, "enableAsyncMetadata", args)
	return err
}
