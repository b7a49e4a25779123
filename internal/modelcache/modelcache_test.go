package modelcache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestGetLoadsOncePerKey(t *testing.T) {
	registry := New[int]()
	var loads atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			value, err := registry.Get("base", func() (int, error) {
				loads.Add(1)
				return 42, nil
			})
			if err != nil || value != 42 {
				t.Errorf("Get = %d, %v", value, err)
			}
		}()
	}
	wg.Wait()

	if loads.Load() != 1 {
		t.Fatalf("loader ran %d times", loads.Load())
	}
	if registry.Len() != 1 {
		t.Fatalf("unexpected key count %d", registry.Len())
	}
}

func TestGetCachesErrors(t *testing.T) {
	registry := New[string]()
	loadErr := errors.New("model missing")
	calls := 0

	for i := 0; i < 2; i++ {
		_, err := registry.Get("broken", func() (string, error) {
			calls++
			return "", loadErr
		})
		if !errors.Is(err, loadErr) {
			t.Fatalf("expected load error, got %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("failed loader should not rerun, ran %d times", calls)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	registry := New[string]()
	a, _ := registry.Get("a", func() (string, error) { return "alpha", nil })
	b, _ := registry.Get("b", func() (string, error) { return "beta", nil })
	if a != "alpha" || b != "beta" {
		t.Fatalf("unexpected values %q %q", a, b)
	}
}
