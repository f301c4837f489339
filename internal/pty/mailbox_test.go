package pty

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func collect(m *mailbox) []Event {
	var got []Event
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.dispatch(ConsumerFunc(func(ev Event) { got = append(got, ev) }))
	}()
	m.close()
	<-done
	return got
}

func TestMailboxDropsDataAfterExit(t *testing.T) {
	m := newMailbox()
	m.put(Event{Kind: EventData, Data: []byte("a")})
	m.put(Event{Kind: EventExit, Exit: ExitStatus{Code: 2}})
	m.put(Event{Kind: EventData, Data: []byte("late")})
	m.put(Event{Kind: EventExit})

	got := collect(m)
	if len(got) != 2 {
		t.Fatalf("Expected 2 events, got %d: %v", len(got), got)
	}
	if got[0].Kind != EventData || string(got[0].Data) != "a" {
		t.Errorf("Expected data event first, got %v", got[0])
	}
	if got[1].Kind != EventExit || got[1].Exit.Code != 2 {
		t.Errorf("Expected exit code 2, got %v", got[1])
	}
}

func TestMailboxPutAfterClose(t *testing.T) {
	m := newMailbox()
	m.close()
	m.put(Event{Kind: EventData, Data: []byte("x")})
	if got := collect(m); len(got) != 0 {
		t.Errorf("Expected no events after close, got %v", got)
	}
}

func TestMailboxOrderProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("data events arrive in put order", prop.ForAll(
		func(chunks []string) bool {
			m := newMailbox()
			var got []Event
			done := make(chan struct{})
			go func() {
				defer close(done)
				m.dispatch(ConsumerFunc(func(ev Event) { got = append(got, ev) }))
			}()
			for _, c := range chunks {
				m.put(Event{Kind: EventData, Data: []byte(c)})
			}
			m.put(Event{Kind: EventExit})
			m.close()
			<-done

			if len(got) != len(chunks)+1 {
				return false
			}
			for i, c := range chunks {
				if string(got[i].Data) != c {
					return false
				}
			}
			return got[len(got)-1].Kind == EventExit
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestEventKindString(t *testing.T) {
	if EventData.String() != "data" || EventExit.String() != "exit" {
		t.Errorf("unexpected names %s %s", EventData, EventExit)
	}
	if got := EventKind(9).String(); got != fmt.Sprintf("EventKind(%d)", 9) {
		t.Errorf("unexpected fallback %s", got)
	}
}
