package internal

import (
	"fmt"
	"testing"
	"time"
)

// TypeToString returns the string representation of a non-string type
func TypeToString(obj interface{}) string {
	return fmt.Sprintf("%+v", obj)
}

// TableAssertEqual checks that the values are equal, naming the case on failure
func TableAssertEqual(t *testing.T, testName string, got, want interface{}) {
	t.Helper()

	if got != want {
		t.Errorf("%s\nGot: %s\nWant: %s", testName, TypeToString(got), TypeToString(want))
	}
}

// Within fails the test if assert does not return within d
func Within(t *testing.T, d time.Duration, assert func()) {
	t.Helper()

	done := make(chan struct{}, 1)

	go func() {
		assert()
		done <- struct{}{}
	}()

	select {
	case <-time.After(d):
		t.Error("timed out")
	case <-done:
	}
}

// Receive reads one value from ch, failing the test after d
func Receive[T any](t *testing.T, ch <-chan T, d time.Duration) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(d):
		var zero T
		t.Fatalf("timed out after %s waiting for %T", d, zero)
		return zero
	}
}
