package events

import (
	"testing"
)

func TestBus_FanOut(t *testing.T) {
	bus := NewBus(nil)
	a, cancelA := bus.Subscribe()
	b, cancelB := bus.Subscribe()
	defer cancelA()
	defer cancelB()

	bus.Emit(TerminalOutput, OutputPayload{SessionID: "s1", Data: "hi"})

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		ev := <-ch
		if ev.Topic != TerminalOutput {
			t.Errorf("%s: expected topic %q, got %q", name, TerminalOutput, ev.Topic)
		}
		p, ok := ev.Payload.(OutputPayload)
		if !ok || p.Data != "hi" {
			t.Errorf("%s: unexpected payload %#v", name, ev.Payload)
		}
	}
}

func TestBus_FullSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus(nil)
	ch, cancel := bus.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Emit(HookEvent, i)
	}

	if len(ch) != subscriberBuffer {
		t.Errorf("expected %d buffered events, got %d", subscriberBuffer, len(ch))
	}
}

func TestBus_CancelAndClose(t *testing.T) {
	bus := NewBus(nil)
	ch, cancel := bus.Subscribe()
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after cancel")
	}

	other, _ := bus.Subscribe()
	bus.Close()
	if _, ok := <-other; ok {
		t.Error("expected closed channel after bus close")
	}

	bus.Emit(HookEvent, nil)

	late, _ := bus.Subscribe()
	if _, ok := <-late; ok {
		t.Error("expected subscription on closed bus to be closed")
	}
}

func TestRecorder_PreservesOrder(t *testing.T) {
	var rec Recorder
	rec.Emit(PlanLinked, nil)
	rec.Emit(TerminalOutput, nil)
	rec.Emit(SessionEnded, nil)

	got := rec.Topics()
	want := []string{PlanLinked, TerminalOutput, SessionEnded}
	if len(got) != len(want) {
		t.Fatalf("expected %d topics, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("topic %d: got %q, want %q", i, got[i], want[i])
		}
	}
}
