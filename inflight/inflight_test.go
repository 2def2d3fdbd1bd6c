package inflight

import (
	"sync"
	"testing"
)

func TestBeginDone(t *testing.T) {
	r := NewRegistry()

	if !r.Begin("op") {
		t.Fatal("first Begin should claim the key")
	}
	if r.Begin("op") {
		t.Error("second Begin should be refused while in flight")
	}
	if !r.IsInFlight("op") {
		t.Error("key should be in flight")
	}

	r.Done("op")
	if r.IsInFlight("op") {
		t.Error("key should be released")
	}
	if !r.Begin("op") {
		t.Error("key should be claimable again after Done")
	}
}

func TestDistinctKeys(t *testing.T) {
	r := NewRegistry()
	if !r.Begin("a") || !r.Begin("b") {
		t.Error("distinct keys must not block each other")
	}
}

func TestConcurrentClaims(t *testing.T) {
	r := NewRegistry()

	const n = 64
	var wg sync.WaitGroup
	won := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won <- r.Begin("contested")
		}()
	}
	wg.Wait()
	close(won)

	winners := 0
	for w := range won {
		if w {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("%d goroutines claimed the key, want exactly 1", winners)
	}
}
