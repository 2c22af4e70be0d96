package events

import (
	"bufio"
	"os"
	"strings"

	"github.com/cskr/pubsub"
)

// CaptureKeyboard reads lines from stdin and publishes each non-empty
// line on the CliCommand topic. It returns when stdin closes.
func CaptureKeyboard(evPS *pubsub.PubSub) {

	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		evPS.Pub(line, CliCommand)
	}
}
