// Package logger records session output as asciinema v2 casts.
package logger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ptyhost/ptyhost/internal/pty"
)

// Event types of the asciicast v2 format.
const (
	EventOutput = "o"
	EventInput  = "i"
	EventResize = "r"
	EventMarker = "m"
)

// Header is the first line of an asciicast v2 file.
type Header struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Command   string            `json:"command,omitempty"`
	Title     string            `json:"title,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// Event is one [time, type, data] line of a cast.
type Event struct {
	TimeOffset float64
	EventType  string
	Data       string
}

// MarshalJSON encodes the event as a three element array.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.TimeOffset, e.EventType, e.Data})
}

// UnmarshalJSON decodes a three element array.
func (e *Event) UnmarshalJSON(data []byte) error {
	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	if len(arr) != 3 {
		return fmt.Errorf("invalid event format: expected 3 elements, got %d", len(arr))
	}
	if err := json.Unmarshal(arr[0], &e.TimeOffset); err != nil {
		return fmt.Errorf("invalid time offset: %w", err)
	}
	if err := json.Unmarshal(arr[1], &e.EventType); err != nil {
		return fmt.Errorf("invalid event type: %w", err)
	}
	if err := json.Unmarshal(arr[2], &e.Data); err != nil {
		return fmt.Errorf("invalid event data: %w", err)
	}
	return nil
}

// Recorder writes a session's terminal traffic as an asciicast v2 stream.
// It implements pty.Consumer: data events become output events and the
// exit event closes the recording.
type Recorder struct {
	mu        sync.Mutex
	writer    io.Writer
	file      *os.File
	startTime time.Time
	closed    bool

	// pending holds the bytes of a UTF-8 sequence split across reads.
	pending []byte
}

// NewRecorder creates the cast file at filePath.
func NewRecorder(filePath string) (*Recorder, error) {
	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	return &Recorder{writer: file, file: file, startTime: time.Now()}, nil
}

// NewRecorderWithWriter records to w. Close does not close w.
func NewRecorderWithWriter(w io.Writer) *Recorder {
	return &Recorder{writer: w, startTime: time.Now()}
}

// WriteHeader writes the header line. Call it once, before any event.
func (r *Recorder) WriteHeader(h Header) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h.Version = 2
	if h.Timestamp == 0 {
		h.Timestamp = r.startTime.Unix()
	}
	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if _, err := r.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// WriteOutput records terminal output. Incomplete UTF-8 sequences at the
// end of data are held back until the rest arrives.
func (r *Recorder) WriteOutput(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf := append(r.pending, data...)
	cut := validPrefix(buf)
	r.pending = append([]byte(nil), buf[cut:]...)
	if cut == 0 {
		return nil
	}
	return r.writeEventLocked(EventOutput, string(buf[:cut]))
}

// WriteInput records bytes sent to the terminal.
func (r *Recorder) WriteInput(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeEventLocked(EventInput, string(data))
}

// WriteResize records a window size change.
func (r *Recorder) WriteResize(cols, rows int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeEventLocked(EventResize, fmt.Sprintf("%dx%d", cols, rows))
}

// WriteMarker records a named marker.
func (r *Recorder) WriteMarker(label string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeEventLocked(EventMarker, label)
}

func (r *Recorder) writeEventLocked(eventType, data string) error {
	if r.closed {
		return os.ErrClosed
	}
	event := Event{
		TimeOffset: time.Since(r.startTime).Seconds(),
		EventType:  eventType,
		Data:       data,
	}
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := r.writer.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// HandleEvent records data events and closes the recording on exit.
func (r *Recorder) HandleEvent(ev pty.Event) {
	switch ev.Kind {
	case pty.EventData:
		r.WriteOutput(ev.Data)
	case pty.EventExit:
		r.WriteMarker("exit: " + ev.Exit.String())
		r.Close()
	}
}

// Close flushes held back bytes and closes the file if the recorder owns it.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	if len(r.pending) > 0 {
		r.writeEventLocked(EventOutput, string(r.pending))
		r.pending = nil
	}
	r.closed = true
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// validPrefix returns the length of b without a trailing incomplete UTF-8
// sequence.
func validPrefix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if !utf8.FullRune(b[i:]) {
			return i
		}
		break
	}
	return len(b)
}

// ReadCast parses an asciicast v2 stream.
func ReadCast(rd io.Reader) (Header, []Event, error) {
	var header Header
	var events []Event

	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return header, nil, err
		}
		return header, nil, io.ErrUnexpectedEOF
	}
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return header, nil, fmt.Errorf("invalid header: %w", err)
	}
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return header, events, err
		}
		events = append(events, ev)
	}
	return header, events, scanner.Err()
}
