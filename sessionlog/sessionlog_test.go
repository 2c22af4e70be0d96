package sessionlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTempLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.log")
	l := New(Path(path))
	t.Cleanup(func() { l.Close() })
	return l, path
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading session log: %v", err)
	}
	return string(data)
}

func TestAudioStatsFormat(t *testing.T) {
	l, path := newTempLogger(t)

	l.AudioStats(88200, 44100, 1, "relay.example.com:8080")

	content := readLog(t, path)
	want := "[AudioStats] Bytes: 88200, SampleRate: 44100, Channels: 1, Endpoint: relay.example.com:8080"
	if !strings.Contains(content, want) {
		t.Errorf("log line %q missing from:\n%s", want, content)
	}
}

func TestPacketFormat(t *testing.T) {
	l, path := newTempLogger(t)

	l.Packet(1234567890, 1024, 12*time.Millisecond)

	content := readLog(t, path)
	want := "[Packet] Timestamp: 1234567890, Size: 1024, Elapsed(ms): 12"
	if !strings.Contains(content, want) {
		t.Errorf("log line %q missing from:\n%s", want, content)
	}
}

func TestEventFormat(t *testing.T) {
	l, path := newTempLogger(t)

	l.Event("logged on to %s", "127.0.0.1:8080")

	content := readLog(t, path)
	if !strings.Contains(content, "[Event] logged on to 127.0.0.1:8080") {
		t.Errorf("event line missing from:\n%s", content)
	}
}

func TestLinesAccumulate(t *testing.T) {
	l, path := newTempLogger(t)

	l.AudioStats(100, 48000, 2, "a")
	l.Packet(1, 10, time.Millisecond)
	l.Packet(2, 20, 2*time.Millisecond)

	content := readLog(t, path)
	if got := strings.Count(strings.TrimSpace(content), "\n") + 1; got != 4 {
		t.Errorf("expected 4 log lines (banner plus 3 records), got %d:\n%s", got, content)
	}
}

func TestStartBanner(t *testing.T) {
	_, path := newTempLogger(t)

	if !strings.Contains(readLog(t, path), "=== Session Logging Started ===") {
		t.Error("start banner missing")
	}
}
