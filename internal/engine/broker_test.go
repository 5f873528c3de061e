package engine_test

import (
	"testing"

	"github.com/drennalls/slotline/internal/engine"
)

func TestBrokerSingleSubscriber(t *testing.T) {
	b := engine.NewBroker()
	ch, unsub := b.Subscribe("r1")
	defer unsub()

	events := []engine.Event{
		{Type: engine.EventProgress, Data: 1},
		{Type: engine.EventProgress, Data: 2},
		{Type: engine.EventConflict, Data: "hw-1"},
	}
	for _, ev := range events {
		b.Publish("r1", ev)
	}
	b.Close("r1", &engine.Event{Type: engine.EventDone})

	var got []engine.Event
	for ev := range ch {
		got = append(got, ev)
	}

	if len(got) != len(events)+1 {
		t.Fatalf("got %d events, want %d", len(got), len(events)+1)
	}
	for i, ev := range events {
		if got[i].Type != ev.Type {
			t.Errorf("event[%d].Type = %q, want %q", i, got[i].Type, ev.Type)
		}
	}
	if got[len(got)-1].Type != engine.EventDone {
		t.Errorf("last event = %+v, want done", got[len(got)-1])
	}
}

func TestBrokerMultipleSubscribers(t *testing.T) {
	b := engine.NewBroker()
	ch1, unsub1 := b.Subscribe("r1")
	defer unsub1()
	ch2, unsub2 := b.Subscribe("r1")
	defer unsub2()

	b.Publish("r1", engine.Event{Type: engine.EventProgress})
	b.Close("r1", nil)

	for i, ch := range []<-chan engine.Event{ch1, ch2} {
		var got []engine.Event
		for ev := range ch {
			got = append(got, ev)
		}
		if len(got) != 1 || got[0].Type != engine.EventProgress {
			t.Errorf("subscriber %d got %+v, want one progress event", i+1, got)
		}
	}
}

func TestBrokerLateSubscriberGetsTerminalEvent(t *testing.T) {
	b := engine.NewBroker()
	b.Publish("r1", engine.Event{Type: engine.EventProgress})
	b.Close("r1", &engine.Event{Type: engine.EventDone, Data: "stats"})

	ch, unsub := b.Subscribe("r1")
	defer unsub()

	ev, ok := <-ch
	if !ok {
		t.Fatal("late subscriber channel closed without the terminal event")
	}
	if ev.Type != engine.EventDone {
		t.Errorf("event = %+v, want done", ev)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after the terminal event")
	}
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := engine.NewBroker()
	ch, unsub := b.Subscribe("r1")
	unsub()

	b.Publish("r1", engine.Event{Type: engine.EventProgress})

	select {
	case ev, ok := <-ch:
		if ok {
			t.Errorf("received %+v after unsubscribe", ev)
		}
	default:
	}
}

func TestBrokerPublishUnknownRunIsNoop(t *testing.T) {
	b := engine.NewBroker()
	b.Publish("ghost", engine.Event{Type: engine.EventProgress})

	if b.Known("ghost") {
		t.Error("publish alone should not create a topic")
	}
}

func TestBrokerOpenMakesRunKnown(t *testing.T) {
	b := engine.NewBroker()

	if b.Known("r1") {
		t.Fatal("fresh broker should not know r1")
	}

	b.Open("r1")
	if !b.Known("r1") {
		t.Fatal("Open should register the run before any event")
	}

	// Events published after Open but before any subscriber are dropped,
	// not delivered retroactively.
	b.Publish("r1", engine.Event{Type: engine.EventProgress})
	ch, unsub := b.Subscribe("r1")
	defer unsub()

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %+v before close", ev)
	default:
	}

	b.Close("r1", &engine.Event{Type: engine.EventDone})
	if ev, ok := <-ch; !ok || ev.Type != engine.EventDone {
		t.Fatalf("got (%+v, %v), want done event", ev, ok)
	}
}
