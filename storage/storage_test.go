package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestMemory_GetSetRemove(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.Get(ctx, KeyDelegation); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty storage error = %v, want ErrNotFound", err)
	}

	value := []byte("chain")
	if err := m.Set(ctx, KeyDelegation, value); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value[0] = 'X'

	got, err := m.Get(ctx, KeyDelegation)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "chain" {
		t.Errorf("Get() = %q, want %q (stored value must be copied)", got, "chain")
	}

	if err := m.Remove(ctx, KeyDelegation); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := m.Remove(ctx, KeyDelegation); err != nil {
		t.Errorf("Remove() on missing key error = %v, want nil", err)
	}
	if _, err := m.Get(ctx, KeyDelegation); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Remove error = %v, want ErrNotFound", err)
	}
}

func TestMemory_Closed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Close()

	if err := m.Set(ctx, KeySessionKey, []byte("k")); !errors.Is(err, ErrClosed) {
		t.Errorf("Set after Close error = %v, want ErrClosed", err)
	}
	if _, err := m.Get(ctx, KeySessionKey); !errors.Is(err, ErrClosed) {
		t.Errorf("Get after Close error = %v, want ErrClosed", err)
	}
}

func TestMemory_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewMemory().Get(ctx, KeySessionKey); !errors.Is(err, context.Canceled) {
		t.Errorf("Get with canceled context error = %v, want context.Canceled", err)
	}
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = m.Set(ctx, KeySessionKey, []byte("v"))
				_, _ = m.Get(ctx, KeySessionKey)
				_ = m.Remove(ctx, KeySessionKey)
			}
		}()
	}
	wg.Wait()
}
