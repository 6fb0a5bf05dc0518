package game

import (
	"encoding/json"
	"sync"

	"github.com/minaorangina/rummy/protocol"
	"github.com/minaorangina/rummy/socket"
)

type emitted struct {
	Event   protocol.Event
	Payload interface{}
}

type spyEmitter struct {
	mu   sync.Mutex
	sent []emitted
}

func (s *spyEmitter) Emit(event protocol.Event, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, emitted{event, payload})
	return nil
}

func (s *spyEmitter) events() []protocol.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []protocol.Event{}
	for _, e := range s.sent {
		out = append(out, e.Event)
	}
	return out
}

type fixedTurn bool

func (f fixedTurn) IsMyTurn() bool { return bool(f) }

type spyNavigator struct {
	results []Result
}

func (n *spyNavigator) ShowResult(r Result) {
	n.results = append(n.results, r)
}

// fakeSource records On/Off calls and lets a test deliver events
type fakeSource struct {
	next     socket.Subscription
	handlers map[protocol.Event]map[socket.Subscription]socket.Handler
}

func newFakeSource() *fakeSource {
	return &fakeSource{handlers: map[protocol.Event]map[socket.Subscription]socket.Handler{}}
}

func (f *fakeSource) On(event protocol.Event, h socket.Handler) socket.Subscription {
	f.next++
	if f.handlers[event] == nil {
		f.handlers[event] = map[socket.Subscription]socket.Handler{}
	}
	f.handlers[event][f.next] = h
	return f.next
}

func (f *fakeSource) Off(event protocol.Event, subs ...socket.Subscription) {
	for _, s := range subs {
		delete(f.handlers[event], s)
	}
	if len(subs) == 0 || len(f.handlers[event]) == 0 {
		delete(f.handlers, event)
	}
}

func (f *fakeSource) deliver(event protocol.Event, payload interface{}) {
	var data json.RawMessage
	switch p := payload.(type) {
	case nil:
	case string:
		data = json.RawMessage(p)
	default:
		data, _ = json.Marshal(p)
	}
	for _, h := range f.handlers[event] {
		h(data)
	}
}
