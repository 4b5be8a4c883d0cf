// Package testutil provides shared test utilities and fixtures.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// LocalhostRequest creates a test request that appears to come from loopback,
// which tsweb requires before serving /debug/ routes.
func LocalhostRequest(method, path string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, path, body)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

// SampleBlock builds a rows x samples block where every cell is
// row*1000 + sample, so transposition and ordering are easy to assert.
func SampleBlock(rows, samples int) [][]float64 {
	block := make([][]float64, rows)
	for r := range block {
		block[r] = make([]float64, samples)
		for s := range block[r] {
			block[r][s] = float64(r*1000 + s)
		}
	}
	return block
}

// Eventually polls cond until it returns true or the timeout elapses.
func Eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
