package testkit

import (
	"sync"
	"testing"
)

var serialMu sync.Mutex

// Serial holds a process-wide lock until t ends, for tests that touch
// package-level state such as the module registry
func Serial(t *testing.T) {
	t.Helper()
	serialMu.Lock()
	t.Cleanup(serialMu.Unlock)
}
