// Package sessionlog writes a per-session audio activity log to a
// rotating file. It records stream totals and per-packet timing lines,
// separate from the application log so a session can be replayed and
// analyzed afterwards.
package sessionlog

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger appends session records to a rotating log file. Safe for
// concurrent use.
type Logger struct {
	mu     sync.Mutex
	out    io.WriteCloser
	logger *log.Logger
}

// New returns a session logger writing to the configured file. The
// file and its directory are created on first write.
func New(opts ...Option) *Logger {

	options := Options{
		Path:       "audsync-session.log",
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 28,
	}

	for _, option := range opts {
		option(&options)
	}

	out := &lumberjack.Logger{
		Filename:   options.Path,
		MaxSize:    options.MaxSizeMB,
		MaxBackups: options.MaxBackups,
		MaxAge:     options.MaxAgeDays,
		Compress:   options.Compress,
	}

	l := &Logger{
		out:    out,
		logger: log.New(out, "", log.LstdFlags),
	}
	l.logger.Println("=== Session Logging Started ===")
	return l
}

// AudioStats records the running totals of a stream.
func (l *Logger) AudioStats(bytes uint64, samplerate, channels int, endpoint string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Printf("[AudioStats] Bytes: %d, SampleRate: %d, Channels: %d, Endpoint: %s",
		bytes, samplerate, channels, endpoint)
}

// Packet records a single received packet and the time since the
// previous one.
func (l *Logger) Packet(timestamp uint64, size int, elapsed time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Printf("[Packet] Timestamp: %d, Size: %d, Elapsed(ms): %d",
		timestamp, size, elapsed.Milliseconds())
}

// Event records a free-form session event such as logon or logoff.
func (l *Logger) Event(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Printf("[Event] %s", fmt.Sprintf(format, args...))
}

// Close flushes and closes the underlying file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}
