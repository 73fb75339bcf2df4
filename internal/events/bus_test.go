package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan ProcessSpawnedEvent, 1)

	unsub := bus.Subscribe(func(e ProcessSpawnedEvent) {
		received <- e
	})
	defer unsub()

	ev := ProcessSpawnedEvent{
		Pid:       4242,
		Command:   []string{"sleep", "5"},
		Strategy:  "kill-wait",
		Timestamp: "2025-01-27T10:30:00Z",
	}
	bus.Publish(ev)

	select {
	case got := <-received:
		if got.Pid != ev.Pid {
			t.Errorf("Expected pid %d, got %d", ev.Pid, got.Pid)
		}
		if got.Strategy != ev.Strategy {
			t.Errorf("Expected strategy %s, got %s", ev.Strategy, got.Strategy)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := New()
	received1 := make(chan ProcessDisposedEvent, 1)
	received2 := make(chan ProcessDisposedEvent, 1)

	unsub1 := bus.Subscribe(func(e ProcessDisposedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e ProcessDisposedEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(ProcessDisposedEvent{Pid: 1, Outcome: "killed"})

	for i, ch := range []chan ProcessDisposedEvent{received1, received2} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d did not receive the event", i+1)
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan StopRequestedEvent, 1)

	unsub := bus.Subscribe(func(e StopRequestedEvent) {
		received <- e
	})

	bus.Publish(StopRequestedEvent{Reason: StopSignal})
	<-received

	unsub()

	bus.Publish(StopRequestedEvent{Reason: StopDeadline})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()
	spawned := make(chan ProcessSpawnedEvent, 1)
	disposed := make(chan ProcessDisposedEvent, 1)

	defer bus.Subscribe(func(e ProcessSpawnedEvent) { spawned <- e })()
	defer bus.Subscribe(func(e ProcessDisposedEvent) { disposed <- e })()

	bus.Publish(ProcessDisposedEvent{Pid: 9})

	select {
	case e := <-disposed:
		if e.Pid != 9 {
			t.Errorf("Expected pid 9, got %d", e.Pid)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for disposed event")
	}

	select {
	case <-spawned:
		t.Error("spawned handler must not receive a disposed event")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestBus_UnknownHandlerIsNoop(_ *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	unsub()
}

func TestBus_ThreadSafety(t *testing.T) {
	bus := New()

	var mu sync.Mutex
	count := 0
	done := make(chan struct{})
	const publishers, perPublisher = 10, 10

	unsub := bus.Subscribe(func(ProcessDisposedEvent) {
		mu.Lock()
		count++
		if count == publishers*perPublisher {
			close(done)
		}
		mu.Unlock()
	})
	defer unsub()

	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				bus.Publish(ProcessDisposedEvent{Pid: base*perPublisher + j})
			}
		}(i)
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		mu.Lock()
		defer mu.Unlock()
		t.Fatalf("received %d of %d events", count, publishers*perPublisher)
	}
}

func TestEventJSONSerialization(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		keys  []string
	}{
		{"spawned", ProcessSpawnedEvent{Pid: 1, Command: []string{"true"}}, []string{"pid", "command", "strategy", "timestamp"}},
		{"stop", StopRequestedEvent{Reason: StopFile, Detail: "/tmp/stop"}, []string{"reason", "detail", "timestamp"}},
		{"disposed", ProcessDisposedEvent{Pid: 1, Outcome: "exited", Observed: true}, []string{"pid", "outcome", "exit_code", "observed", "duration_sec"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("Failed to marshal: %v", err)
			}

			var result map[string]any
			if unmarshalErr := json.Unmarshal(data, &result); unmarshalErr != nil {
				t.Fatalf("Failed to unmarshal: %v", unmarshalErr)
			}
			for _, key := range tt.keys {
				if _, ok := result[key]; !ok {
					t.Errorf("missing key %q in %s", key, data)
				}
			}
		})
	}
}

func TestEventTypesAreDistinct(t *testing.T) {
	seen := make(map[uint32]string)
	for name, ev := range map[string]Event{
		"spawned":  ProcessSpawnedEvent{},
		"stop":     StopRequestedEvent{},
		"disposed": ProcessDisposedEvent{},
	} {
		if other, dup := seen[ev.Type()]; dup {
			t.Errorf("%s and %s share type %d", name, other, ev.Type())
		}
		seen[ev.Type()] = name
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan StopRequestedEvent, 1)

	unsub := SubscribeToChannel(bus, ch)
	defer unsub()

	bus.Publish(StopRequestedEvent{Reason: StopSignal, Detail: "interrupt"})

	select {
	case e := <-ch:
		if e.Reason != StopSignal || e.Detail != "interrupt" {
			t.Errorf("unexpected event: %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel event")
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan StopRequestedEvent) // unbuffered, never read

	unsub := SubscribeToChannel(bus, ch)
	defer unsub()

	// Must not block the dispatcher
	for i := 0; i < 10; i++ {
		bus.Publish(StopRequestedEvent{Reason: StopDeadline})
	}
	time.Sleep(20 * time.Millisecond)
}
