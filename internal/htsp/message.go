// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package htsp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// MaxFrameSize bounds a single message body.
const MaxFrameSize = 16 << 20

// htsmsg field types.
const (
	typeMap  byte = 1
	typeS64  byte = 2
	typeStr  byte = 3
	typeBin  byte = 4
	typeList byte = 5
)

// Message is one htsmsg. Values are int64, string, []byte, Message or []any.
type Message map[string]any

// Method returns the "method" field, empty for replies.
func (m Message) Method() string {
	s, _ := m.Str("method")
	return s
}

// Seq returns the "seq" field used to match replies to requests.
func (m Message) Seq() (uint32, bool) {
	v, ok := m.Int("seq")
	if !ok || v < 0 || v > int64(^uint32(0)) {
		return 0, false
	}
	return uint32(v), true
}

// Str returns a string field.
func (m Message) Str(key string) (string, bool) {
	switch v := m[key].(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}

// Int returns an integer field.
func (m Message) Int(key string) (int64, bool) {
	v, ok := m[key].(int64)
	return v, ok
}

// Uint returns a non-negative integer field as uint32.
func (m Message) Uint(key string) (uint32, bool) {
	v, ok := m.Int(key)
	if !ok || v < 0 || v > int64(^uint32(0)) {
		return 0, false
	}
	return uint32(v), true
}

// Bytes returns a binary field.
func (m Message) Bytes(key string) ([]byte, bool) {
	v, ok := m[key].([]byte)
	return v, ok
}

// Map returns a nested message.
func (m Message) Map(key string) (Message, bool) {
	v, ok := m[key].(Message)
	return v, ok
}

// List returns a list field.
func (m Message) List(key string) ([]any, bool) {
	v, ok := m[key].([]any)
	return v, ok
}

// MarshalBinary encodes m as a length-prefixed frame.
func (m Message) MarshalBinary() ([]byte, error) {
	var body bytes.Buffer
	if err := encodeMap(&body, m); err != nil {
		return nil, err
	}
	if body.Len() > MaxFrameSize {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds limit", ErrMalformed, body.Len())
	}
	out := make([]byte, 4, 4+body.Len())
	binary.BigEndian.PutUint32(out, uint32(body.Len()))
	return append(out, body.Bytes()...), nil
}

// WriteMessage writes one frame to w.
func WriteMessage(w io.Writer, m Message) error {
	frame, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// ReadMessage reads one frame from r.
func ReadMessage(r io.Reader) (Message, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds limit", ErrMalformed, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return Unmarshal(body)
}

// Unmarshal decodes a frame body (without its length prefix).
func Unmarshal(body []byte) (Message, error) {
	m := Message{}
	err := decodeFields(body, func(name string, v any) {
		m[name] = v
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func encodeMap(buf *bytes.Buffer, m Message) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if len(k) > 255 {
			return fmt.Errorf("%w: field name %q too long", ErrMalformed, k[:32])
		}
		if err := encodeField(buf, k, m[k]); err != nil {
			return err
		}
	}
	return nil
}

func encodeField(buf *bytes.Buffer, name string, v any) error {
	var (
		typ  byte
		data []byte
	)
	switch x := v.(type) {
	case Message:
		var sub bytes.Buffer
		if err := encodeMap(&sub, x); err != nil {
			return err
		}
		typ, data = typeMap, sub.Bytes()
	case map[string]any:
		return encodeField(buf, name, Message(x))
	case []any:
		var sub bytes.Buffer
		for _, item := range x {
			if err := encodeField(&sub, "", item); err != nil {
				return err
			}
		}
		typ, data = typeList, sub.Bytes()
	case []Message:
		items := make([]any, len(x))
		for i := range x {
			items[i] = x[i]
		}
		return encodeField(buf, name, items)
	case []string:
		items := make([]any, len(x))
		for i := range x {
			items[i] = x[i]
		}
		return encodeField(buf, name, items)
	case string:
		typ, data = typeStr, []byte(x)
	case []byte:
		typ, data = typeBin, x
	case bool:
		var n int64
		if x {
			n = 1
		}
		typ, data = typeS64, encodeS64(n)
	default:
		n, ok := toInt64(v)
		if !ok {
			return fmt.Errorf("%w: field %q has type %T", ErrUnsupportedType, name, v)
		}
		typ, data = typeS64, encodeS64(n)
	}

	var hdr [6]byte
	hdr[0] = typ
	hdr[1] = byte(len(name))
	binary.BigEndian.PutUint32(hdr[2:], uint32(len(data)))
	buf.Write(hdr[:])
	buf.WriteString(name)
	buf.Write(data)
	return nil
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case int32:
		return int64(x), true
	case uint32:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint64:
		if x > 1<<63-1 {
			return 0, false
		}
		return int64(x), true
	default:
		return 0, false
	}
}

// encodeS64 writes the little-endian bytes of n without trailing zero bytes.
// Zero encodes as no bytes at all; negative values always take eight.
func encodeS64(n int64) []byte {
	u := uint64(n)
	out := make([]byte, 0, 8)
	for u != 0 {
		out = append(out, byte(u))
		u >>= 8
	}
	return out
}

func decodeS64(data []byte) (int64, error) {
	if len(data) > 8 {
		return 0, fmt.Errorf("%w: integer of %d bytes", ErrMalformed, len(data))
	}
	var u uint64
	for i, b := range data {
		u |= uint64(b) << (8 * i)
	}
	return int64(u), nil
}

func decodeFields(data []byte, emit func(name string, v any)) error {
	for len(data) > 0 {
		if len(data) < 6 {
			return fmt.Errorf("%w: truncated field header", ErrMalformed)
		}
		typ := data[0]
		nameLen := int(data[1])
		dataLen := binary.BigEndian.Uint32(data[2:6])
		data = data[6:]
		if uint64(nameLen)+uint64(dataLen) > uint64(len(data)) {
			return fmt.Errorf("%w: field overruns message", ErrMalformed)
		}
		name := string(data[:nameLen])
		payload := data[nameLen : nameLen+int(dataLen)]
		data = data[nameLen+int(dataLen):]

		switch typ {
		case typeMap:
			sub := Message{}
			if err := decodeFields(payload, func(n string, v any) { sub[n] = v }); err != nil {
				return err
			}
			emit(name, sub)
		case typeList:
			var items []any
			if err := decodeFields(payload, func(_ string, v any) { items = append(items, v) }); err != nil {
				return err
			}
			if items == nil {
				items = []any{}
			}
			emit(name, items)
		case typeS64:
			n, err := decodeS64(payload)
			if err != nil {
				return err
			}
			emit(name, n)
		case typeStr:
			emit(name, string(payload))
		case typeBin:
			b := make([]byte, len(payload))
			copy(b, payload)
			emit(name, b)
		default:
			// Newer servers add types (double, bool, uuid) that no field we
			// read relies on.
		}
	}
	return nil
}
