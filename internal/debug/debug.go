// Package debug records a raw trace of everything that crosses the
// pseudo-terminal: each chunk read from the target and each write sent to it.
// Tracing is off until Enable is called.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	instance *Logger
	once     sync.Once
)

// Logger handles debug tracing with singleton pattern
type Logger struct {
	enabled bool
	file    *os.File
	log     zerolog.Logger
	mutex   sync.Mutex
}

// GetLogger returns the singleton logger instance
func GetLogger() *Logger {
	once.Do(func() {
		instance = &Logger{
			log: zerolog.Nop(),
		}
	})
	return instance
}

// Enable turns on debug tracing, appending JSON lines to path
func (l *Logger) Enable(path string) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.enabled {
		return nil
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open debug file: %w", err)
	}

	l.file = file
	l.log = newTraceLogger(file)
	l.enabled = true
	return nil
}

// EnableWriter turns on debug tracing to w. The caller owns w.
func (l *Logger) EnableWriter(w io.Writer) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.closeFile()
	l.log = newTraceLogger(w)
	l.enabled = true
}

// Disable turns off debug tracing and closes the file
func (l *Logger) Disable() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if !l.enabled {
		return
	}

	l.closeFile()
	l.log = zerolog.Nop()
	l.enabled = false
}

func (l *Logger) closeFile() {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}

// IsEnabled returns whether debug tracing is enabled
func (l *Logger) IsEnabled() bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.enabled
}

// Printf writes a formatted trace message if enabled
func (l *Logger) Printf(format string, args ...interface{}) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.enabled {
		l.log.Debug().Msgf(format, args...)
	}
}

// Read traces a chunk received from the pseudo-terminal
func (l *Logger) Read(pid int, data string) {
	l.chunk("read", pid, data)
}

// Write traces bytes sent to the pseudo-terminal
func (l *Logger) Write(pid int, data string, n int, err error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.enabled {
		l.log.Debug().
			Str("dir", "write").
			Int("pid", pid).
			Str("data", fmt.Sprintf("%q", data)).
			Int("n", n).
			Err(err).
			Send()
	}
}

func (l *Logger) chunk(dir string, pid int, data string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.enabled {
		l.log.Debug().
			Str("dir", dir).
			Int("pid", pid).
			Int("len", len(data)).
			Str("data", fmt.Sprintf("%q", data)).
			Send()
	}
}

func newTraceLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

// Package-level convenience functions
func Enable(path string) error {
	return GetLogger().Enable(path)
}

func Disable() {
	GetLogger().Disable()
}

func IsEnabled() bool {
	return GetLogger().IsEnabled()
}

func Printf(format string, args ...interface{}) {
	GetLogger().Printf(format, args...)
}

func Read(pid int, data string) {
	GetLogger().Read(pid, data)
}

func Write(pid int, data string, n int, err error) {
	GetLogger().Write(pid, data, n, err)
}
