package broadcast

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func waitCalls(t *testing.T, calls <-chan struct{}, want int) {
	t.Helper()
	for i := 0; i < want; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("handler called %d times, want %d", i, want)
		}
	}
	select {
	case <-calls:
		t.Fatalf("handler called more than %d times", want)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSync_LoginSuccessReachesSiblings(t *testing.T) {
	const origin = "https://app.example"
	bus := NewMemoryBus()
	tab1 := New(bus.Channel(ChannelName, origin), origin)
	tab2 := New(bus.Channel(ChannelName, origin), origin)
	defer tab1.Destroy()
	defer tab2.Destroy()

	if tab1.EmitterID() == tab2.EmitterID() {
		t.Fatal("emitter ids must differ")
	}

	calls1 := make(chan struct{}, 4)
	calls2 := make(chan struct{}, 4)
	tab1.OnLoginSuccess(func() { calls1 <- struct{}{} })
	tab2.OnLoginSuccess(func() { calls2 <- struct{}{} })

	if err := tab1.PostLoginSuccess(context.Background()); err != nil {
		t.Fatalf("PostLoginSuccess() error = %v", err)
	}
	waitCalls(t, calls2, 1)
	waitCalls(t, calls1, 0)
}

func TestSync_Filters(t *testing.T) {
	const origin = "https://app.example"
	bus := NewMemoryBus()
	tab := New(bus.Channel(ChannelName, origin), origin)
	defer tab.Destroy()
	raw := bus.Channel(ChannelName, origin)
	defer raw.Close()

	calls := make(chan struct{}, 8)
	tab.OnLoginSuccess(func() { calls <- struct{}{} })

	encode := func(m Message) []byte {
		data, _ := json.Marshal(m)
		return data
	}
	posts := []Envelope{
		{Origin: origin, Data: encode(Message{EmitterID: tab.EmitterID(), Msg: MsgLoginSuccess})},
		{Origin: "https://evil.example", Data: encode(Message{EmitterID: "other", Msg: MsgLoginSuccess})},
		{Origin: origin, Data: []byte("not json")},
		{Origin: origin, Data: encode(Message{EmitterID: "other", Msg: "logout"})},
		{Origin: origin, Data: encode(Message{Msg: MsgLoginSuccess})},
		{Origin: origin, Data: encode(Message{EmitterID: "other", Msg: MsgLoginSuccess})},
	}
	for _, env := range posts {
		if err := raw.Post(context.Background(), env); err != nil {
			t.Fatalf("Post() error = %v", err)
		}
	}
	waitCalls(t, calls, 1)
}

func TestSync_Destroy(t *testing.T) {
	bus := NewMemoryBus()
	tab1 := New(bus.Channel(ChannelName, "o"), "o")
	tab2 := New(bus.Channel(ChannelName, "o"), "o")

	calls := make(chan struct{}, 1)
	tab2.OnLoginSuccess(func() { calls <- struct{}{} })
	if err := tab2.Destroy(); err != nil {
		t.Fatalf("Destroy() error = %v", err)
	}

	_ = tab1.PostLoginSuccess(context.Background())
	waitCalls(t, calls, 0)
	if err := tab2.PostLoginSuccess(context.Background()); err == nil {
		t.Error("PostLoginSuccess() after Destroy should fail")
	}
}
