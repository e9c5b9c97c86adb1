package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	file    *os.File
	mu      sync.Mutex
	enabled bool
	root    = log.NewWithOptions(io.Discard, log.Options{})
)

// DefaultPath is ~/.config/go-feather/debug.log
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "go-feather", "debug.log")
}

// Enable starts logging to path (truncated) at the given level ("debug", "info", ...)
func Enable(path, level string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}
	if path == "" {
		path = DefaultPath()
	}

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.DebugLevel
	}

	os.MkdirAll(filepath.Dir(path), 0755)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	enabled = true
	root = log.NewWithOptions(f, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Level:           lvl,
	})
	root.Info("=== Debug logging started ===")

	return nil
}

// EnableWriter logs to w instead of a file (tests, cmd tools)
func EnableWriter(w io.Writer, level log.Level) {
	mu.Lock()
	defer mu.Unlock()
	root = log.NewWithOptions(w, log.Options{Level: level})
	enabled = true
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	enabled = false
	root = log.NewWithOptions(io.Discard, log.Options{})
}

// Logger returns a logger prefixed with category
func Logger(category string) *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	return root.WithPrefix(category)
}

// Log writes a message to the debug log
func Log(category, format string, args ...any) {
	mu.Lock()
	l := root
	on := enabled
	mu.Unlock()

	if !on {
		return
	}
	l.WithPrefix(category).Debug(fmt.Sprintf(format, args...))
}

// LogEvery logs only every N calls (use for high-frequency events)
var counters = make(map[string]int)

func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}
