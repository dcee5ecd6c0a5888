package testutil

import (
	"fmt"
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger whose lines are tagged with the running test,
// so output from hub and sync goroutines can be traced back to it.
func TestLogger(t *testing.T) *log.Logger {
	t.Helper()
	return log.New(os.Stdout, fmt.Sprintf("[%s] ", t.Name()), log.LstdFlags|log.Lmicroseconds)
}
