package attestationsink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestNewHTTPSinkDisabledWhenEmpty(t *testing.T) {
	sink := NewHTTPSink("")
	if sink.Enabled() {
		t.Error("expected sink constructed from empty URL to report disabled")
	}
}

func TestDisperseReturnsCommitment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"commitment":"kzg:abc123"}`))
	}))
	defer server.Close()

	sink := NewHTTPSink(server.URL)
	commitment, err := sink.Disperse(context.Background(), []byte("blob data"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if commitment != "kzg:abc123" {
		t.Errorf("expected commitment kzg:abc123, got %s", commitment)
	}
}

func TestDisperseAsyncIgnoresFailureSilently(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	sink := NewHTTPSink(server.URL)
	var called bool
	var mu sync.Mutex
	done := make(chan struct{})

	go func() {
		DisperseAsync(sink, []byte("x"), func(commitment string) {
			mu.Lock()
			called = true
			mu.Unlock()
		})
		close(done)
	}()

	<-done
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if called {
		t.Error("onDone should not be called when dispersal fails")
	}
}

func TestDisperseAsyncNoopWhenDisabled(t *testing.T) {
	// Must not panic with a nil sink.
	DisperseAsync(nil, []byte("x"), func(string) {
		t.Error("onDone should never be invoked for a disabled sink")
	})
}
