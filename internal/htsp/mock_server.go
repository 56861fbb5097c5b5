// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package htsp

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"sync"
	"time"
)

// MockServer is an in-process Tvheadend stand-in for tests. It speaks
// enough HTSP for the client: hello, authenticate, getSysTime,
// getDiskSpace, getEvents and enableAsyncMetadata.
type MockServer struct {
	ln   net.Listener
	done chan struct{}
	wg   sync.WaitGroup

	mu        sync.Mutex
	conns     map[net.Conn]*sync.Mutex
	username  string
	password  string
	challenge []byte
	channels  []Message
	events    []Message
	delay     map[string]time.Duration
	silent    map[string]bool
	calls     map[string]int
	now       func() time.Time
	closed    bool
}

// NewMockServer starts a server on a loopback port. It panics if no port
// is available, like httptest.NewServer.
func NewMockServer() *MockServer {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		panic(fmt.Sprintf("htsp: mock server listen: %v", err))
	}
	m := &MockServer{
		ln:        ln,
		done:      make(chan struct{}),
		conns:     make(map[net.Conn]*sync.Mutex),
		challenge: []byte("0123456789abcdef0123456789abcdef"),
		delay:     make(map[string]time.Duration),
		silent:    make(map[string]bool),
		calls:     make(map[string]int),
		now:       time.Now,
	}
	m.SetDefaultData()
	m.wg.Add(1)
	go m.acceptLoop()
	return m
}

// Addr is the host:port to dial.
func (m *MockServer) Addr() string { return m.ln.Addr().String() }

// SetDefaultData loads two channels with one event each.
func (m *MockServer) SetDefaultData() {
	start := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = []Message{
		{"channelId": int64(1), "channelNumber": int64(1), "channelName": "Das Erste HD", "channelIcon": "imagecache/1"},
		{"channelId": int64(2), "channelNumber": int64(2), "channelName": "ZDF HD", "channelIcon": "imagecache/2"},
	}
	m.events = []Message{
		{"eventId": int64(101), "channelId": int64(1), "start": start.Unix(), "stop": start.Add(15 * time.Minute).Unix(),
			"title": "Tagesschau", "summary": "Nachrichten"},
		{"eventId": int64(201), "channelId": int64(2), "start": start.Unix(), "stop": start.Add(45 * time.Minute).Unix(),
			"title": "heute-show", "description": "Satire"},
	}
}

// SetChannels replaces the channel list sent by enableAsyncMetadata.
func (m *MockServer) SetChannels(channels ...Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = channels
}

// SetEvents replaces the EPG served by getEvents and enableAsyncMetadata.
func (m *MockServer) SetEvents(events ...Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = events
}

// SetCredentials requires authenticate with the given user and password.
func (m *MockServer) SetCredentials(username, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.username, m.password = username, password
}

// SetDelay holds replies to method for d.
func (m *MockServer) SetDelay(method string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay[method] = d
}

// SetSilent makes the server swallow requests for method without replying.
func (m *MockServer) SetSilent(method string, silent bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.silent[method] = silent
}

// SetClock overrides the time reported by getSysTime.
func (m *MockServer) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Calls returns how many requests for method were received.
func (m *MockServer) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// Push sends an asynchronous message to every connected client.
func (m *MockServer) Push(msg Message) {
	m.mu.Lock()
	targets := make(map[net.Conn]*sync.Mutex, len(m.conns))
	for c, wmu := range m.conns {
		targets[c] = wmu
	}
	m.mu.Unlock()
	for c, wmu := range targets {
		m.send(c, wmu, msg)
	}
}

// DropConnections closes every client connection but keeps listening.
func (m *MockServer) DropConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for c := range m.conns {
		_ = c.Close()
	}
}

// Close stops the server and waits for its goroutines.
func (m *MockServer) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.done)
	_ = m.ln.Close()
	for c := range m.conns {
		_ = c.Close()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *MockServer) acceptLoop() {
	defer m.wg.Done()
	for {
		conn, err := m.ln.Accept()
		if err != nil {
			return
		}
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			_ = conn.Close()
			return
		}
		wmu := &sync.Mutex{}
		m.conns[conn] = wmu
		m.wg.Add(1)
		m.mu.Unlock()
		go m.serve(conn, wmu)
	}
}

func (m *MockServer) serve(conn net.Conn, wmu *sync.Mutex) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.conns, conn)
		m.mu.Unlock()
		_ = conn.Close()
	}()

	r := bufio.NewReader(conn)
	for {
		req, err := ReadMessage(r)
		if err != nil {
			return
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.handle(conn, wmu, req)
		}()
	}
}

func (m *MockServer) handle(conn net.Conn, wmu *sync.Mutex, req Message) {
	method := req.Method()

	m.mu.Lock()
	m.calls[method]++
	delay := m.delay[method]
	silent := m.silent[method]
	m.mu.Unlock()

	if silent {
		return
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-m.done:
			return
		}
	}

	reply, async := m.respond(method, req)
	if seq, ok := req.Int("seq"); ok {
		reply["seq"] = seq
	}
	m.send(conn, wmu, reply)
	for _, msg := range async {
		m.send(conn, wmu, msg)
	}
}

// respond builds the reply to req and any asynchronous messages that must
// follow it.
func (m *MockServer) respond(method string, req Message) (Message, []Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch method {
	case "hello":
		return Message{
			"htspversion":      int64(ProtocolVersion),
			"servername":       "MockTVH",
			"serverversion":    "4.3-mock",
			"servercapability": []any{"timeshift", "imagecache"},
			"challenge":        append([]byte(nil), m.challenge...),
			"webroot":          "/tvh",
		}, nil

	case "authenticate":
		user, _ := req.Str("username")
		digest, _ := req.Bytes("digest")
		if m.username != "" && (user != m.username || !bytes.Equal(digest, Digest(m.password, m.challenge))) {
			return Message{"noaccess": int64(1)}, nil
		}
		return Message{}, nil

	case "getSysTime":
		now := m.now()
		_, offset := now.Zone()
		return Message{
			"time":      now.Unix(),
			"gmtoffset": int64(offset / 60),
			"timezone":  now.Location().String(),
		}, nil

	case "getDiskSpace":
		return Message{
			"freediskspace":  int64(300 << 30),
			"useddiskspace":  int64(200 << 30),
			"totaldiskspace": int64(500 << 30),
		}, nil

	case "getEvents":
		chID, filter := req.Int("channelId")
		maxTime, bounded := req.Int("maxTime")
		out := make([]any, 0, len(m.events))
		for _, ev := range m.events {
			if id, _ := ev.Int("channelId"); filter && id != chID {
				continue
			}
			if start, _ := ev.Int("start"); bounded && start > maxTime {
				continue
			}
			out = append(out, copyMessage(ev))
		}
		return Message{"events": out}, nil

	case "enableAsyncMetadata":
		var async []Message
		for _, ch := range m.channels {
			msg := copyMessage(ch)
			msg["method"] = MethodChannelAdd
			async = append(async, msg)
		}
		if epg, _ := req.Int("epg"); epg != 0 {
			for _, ev := range m.events {
				msg := copyMessage(ev)
				msg["method"] = MethodEventAdd
				async = append(async, msg)
			}
		}
		async = append(async, Message{"method": MethodInitialSyncCompleted})
		return Message{}, async

	default:
		return Message{"error": "Invalid method"}, nil
	}
}

func (m *MockServer) send(conn net.Conn, wmu *sync.Mutex, msg Message) {
	wmu.Lock()
	defer wmu.Unlock()
	_ = WriteMessage(conn, msg)
}

func copyMessage(src Message) Message {
	dst := make(Message, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
