package webc

import (
	"bufio"
	"bytes"
	"io"
)

// SSEEvent is one server-sent event: its event name (may be empty) and the
// concatenated data payload.
type SSEEvent struct {
	Name string
	Data []byte
}

// EventSource reads server-sent events from a byte stream. It is the
// event-source abstraction adapters decode vendor streams from.
type EventSource struct {
	r *bufio.Reader
}

func NewEventSource(r io.Reader) *EventSource {
	return &EventSource{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next event. Multiple data lines are joined with a
// newline, per the SSE spec. It returns io.EOF when the stream ends.
func (s *EventSource) Next() (SSEEvent, error) {
	var name string
	var dataLines [][]byte

	flush := func() (SSEEvent, bool) {
		if len(dataLines) == 0 && name == "" {
			return SSEEvent{}, false
		}
		return SSEEvent{Name: name, Data: bytes.Join(dataLines, []byte("\n"))}, true
	}

	for {
		line, err := s.r.ReadBytes('\n')
		if err != nil {
			line = bytes.TrimRight(line, "\r\n")
			if len(line) > 0 {
				name, dataLines = consumeLine(line, name, dataLines)
			}
			if ev, ok := flush(); ok {
				return ev, nil
			}
			if err == io.EOF {
				return SSEEvent{}, io.EOF
			}
			return SSEEvent{}, err
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			if ev, ok := flush(); ok {
				return ev, nil
			}
			continue
		}
		if line[0] == ':' {
			// Comment line.
			continue
		}
		name, dataLines = consumeLine(line, name, dataLines)
	}
}

func consumeLine(line []byte, name string, dataLines [][]byte) (string, [][]byte) {
	if val, ok := fieldValue(line, "event:"); ok {
		return string(val), dataLines
	}
	if val, ok := fieldValue(line, "data:"); ok {
		return name, append(dataLines, append([]byte(nil), val...))
	}
	return name, dataLines
}

func fieldValue(line []byte, prefix string) ([]byte, bool) {
	if !bytes.HasPrefix(line, []byte(prefix)) {
		return nil, false
	}
	val := line[len(prefix):]
	if len(val) > 0 && val[0] == ' ' {
		val = val[1:]
	}
	return val, true
}
