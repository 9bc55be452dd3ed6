// Package testutil provides testing utilities for caudal packages
package testutil

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/caudal/pkg/logger"
)

// SampleArchive is a small caudal extract: three readings of two gauges,
// one of them missing.
const SampleArchive = "codigo_estacion,fecha,caudal,gauge_name\n" +
	"1001,2001-01-01,3.2,Rio Loa\n" +
	"1001,2001-01-02,#,Rio Loa\n" +
	"1002,2001-01-01,10.5,Rio Elqui\n"

// LogBuffer collects console log output. It is safe for concurrent writes.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TestLogger creates a console-only logger at debug level together with the
// buffer it writes to.
func TestLogger(t *testing.T) (*logger.Logger, *LogBuffer) {
	t.Helper()

	buf := &LogBuffer{}
	log, err := logger.New(logger.Config{Level: "debug", Console: buf})
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log, buf
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
