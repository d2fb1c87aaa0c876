package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

// drain collects whatever frames are queued on ch after a short settle.
func drain(ch <-chan []byte) []string {
	time.Sleep(50 * time.Millisecond)
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func TestBroker_ClientCount(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	a, c := b.Subscribe(), b.Subscribe()
	if n := b.ClientCount(); n != 2 {
		t.Fatalf("clients = %d, want 2", n)
	}
	b.Unsubscribe(a)
	b.Unsubscribe(a) // second call is a no-op
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d, want 1", n)
	}
	b.Unsubscribe(c)
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d, want 0", n)
	}
}

func TestBroker_PublishFansOut(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	first, second := b.Subscribe(), b.Subscribe()
	defer b.Unsubscribe(first)
	defer b.Unsubscribe(second)

	b.Publish(Event{Type: TypeNoteCreated, Data: NoteEventData{Path: "inbox/a.md", ID: 7}})

	for _, ch := range []chan []byte{first, second} {
		got := recv(t, ch)
		if !strings.Contains(got, "event: note.created\n") || !strings.Contains(got, `"path":"inbox/a.md"`) {
			t.Errorf("frame = %q", got)
		}
		if !strings.HasSuffix(got, "\n\n") {
			t.Errorf("frame not terminated: %q", got)
		}
	}
}

func TestPublishNoteEvent_GraphThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("created", "a.md", 1)
	b.PublishNoteEvent("updated", "b.md", 2)
	b.PublishNoteEvent("renamed", "c.md", 3) // unknown kinds are ignored

	var notes, graphs int
	for _, f := range drain(ch) {
		if strings.Contains(f, "event: graph.updated") {
			graphs++
		} else {
			notes++
		}
	}
	if notes != 2 || graphs != 1 {
		t.Errorf("notes = %d graphs = %d, want 2 and 1", notes, graphs)
	}
}

func TestServeHTTP_StreamsUntilDisconnect(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	b.Publish(Event{Type: TypeNoteUpdated, Data: NoteEventData{Path: "x.md"}})
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if body := w.Body.String(); !strings.Contains(body, "event: note.updated") {
		t.Errorf("stream missing event: %q", body)
	}
	if n := b.ClientCount(); n != 0 {
		t.Errorf("clients after disconnect = %d", n)
	}
}

func TestPublish_SlowClientDoesNotBlock(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	slow := b.Subscribe()
	defer b.Unsubscribe(slow)

	done := make(chan struct{})
	go func() {
		for i := 0; i < clientBuffer*2; i++ {
			b.Publish(ping(strconv.Itoa(i)))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full client")
	}
	if n := len(drain(slow)); n != clientBuffer {
		t.Errorf("queued = %d, want %d", n, clientBuffer)
	}
}

func TestClose(t *testing.T) {
	b := NewBroker(time.Hour)
	ch := b.Subscribe()

	b.Close()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("subscriber channel still open")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients after close = %d", n)
	}
	if _, ok := <-b.Subscribe(); ok {
		t.Error("subscribe after close returned an open channel")
	}
	b.Publish(ping("late"))
	b.PublishNoteEvent("updated", "x.md", 3)
	b.Unsubscribe(ch)
}

func TestPublishNoteEvent_Payload(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishNoteEvent("created", "n.md", 42)
	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.HasPrefix(s, "id: ") {
			t.Errorf("missing event id in %q", s)
		}
		if !strings.Contains(s, `data: {"path":"n.md","id":42}`) {
			t.Errorf("unexpected payload in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for note event")
	}

	// Drain graph.updated.
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for graph event")
	}

	b.PublishNoteEvent("deleted", "n.md", 0)
	select {
	case msg := <-ch:
		if !strings.Contains(string(msg), `data: {"path":"n.md"}`) {
			t.Errorf("deleted payload = %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for delete event")
	}
}

func TestPublish_ExplicitID(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{ID: "fixed", Type: "ping", Data: map[string]string{}})
	select {
	case msg := <-ch:
		if !strings.HasPrefix(string(msg), "id: fixed\nevent: ping\n") {
			t.Errorf("msg = %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func recv(t *testing.T, ch <-chan []byte) string {
	t.Helper()
	select {
	case msg := <-ch:
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for frame")
		return ""
	}
}

// publishAll publishes events and waits until the loop has broadcast each one.
func publishAll(t *testing.T, b *Broker, events ...Event) {
	t.Helper()
	probe := b.Subscribe()
	defer b.Unsubscribe(probe)
	for _, e := range events {
		b.Publish(e)
		recv(t, probe)
	}
}

func ping(id string) Event {
	return Event{ID: id, Type: "ping", Data: map[string]string{}}
}

func TestSubscribeFrom_ReplaysMissedFrames(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	publishAll(t, b, ping("1"), ping("2"), ping("3"))

	ch := b.SubscribeFrom("1")
	defer b.Unsubscribe(ch)
	if got := recv(t, ch); !strings.HasPrefix(got, "id: 2\n") {
		t.Errorf("first replayed = %q", got)
	}
	if got := recv(t, ch); !strings.HasPrefix(got, "id: 3\n") {
		t.Errorf("second replayed = %q", got)
	}

	b.Publish(ping("4"))
	if got := recv(t, ch); !strings.HasPrefix(got, "id: 4\n") {
		t.Errorf("live frame = %q", got)
	}
}

func TestSubscribeFrom_UnknownIDReplaysNothing(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	publishAll(t, b, ping("a"))

	ch := b.SubscribeFrom("expired")
	defer b.Unsubscribe(ch)
	select {
	case msg := <-ch:
		t.Errorf("unexpected replay %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeFrom_HistoryBounded(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	for i := 0; i < historySize+5; i++ {
		publishAll(t, b, ping(strconv.Itoa(i)))
	}

	// Frame 0 fell out of the history, so resuming from it replays nothing.
	ch := b.SubscribeFrom("0")
	defer b.Unsubscribe(ch)
	select {
	case msg := <-ch:
		t.Errorf("evicted id replayed %q", msg)
	case <-time.After(50 * time.Millisecond):
	}

	ch2 := b.SubscribeFrom(strconv.Itoa(historySize + 3))
	defer b.Unsubscribe(ch2)
	if got := recv(t, ch2); !strings.HasPrefix(got, "id: "+strconv.Itoa(historySize+4)+"\n") {
		t.Errorf("tail replay = %q", got)
	}
}

func TestSSEHandler_LastEventIDAndHeartbeat(t *testing.T) {
	b := NewBroker(time.Hour, WithHeartbeat(20*time.Millisecond))
	defer b.Close()
	publishAll(t, b, ping("old"), Event{ID: "new", Type: "note.updated", Data: map[string]string{"path": "x.md"}})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	req.Header.Set("Last-Event-ID", "old")
	w := httptest.NewRecorder()
	b.ServeHTTP(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "id: new\nevent: note.updated\n") {
		t.Errorf("missed frame not replayed: %q", body)
	}
	if strings.Contains(body, "id: old\n") {
		t.Errorf("frame at Last-Event-ID should not be replayed: %q", body)
	}
	if !strings.Contains(body, ": keepalive\n\n") {
		t.Errorf("no heartbeat in %q", body)
	}
}
