package events

import (
	"os"
	"os/signal"

	"github.com/cskr/pubsub"
)

// Event channel names used for event Pubsub

// endpoint
const (
	RelayConnStatus = "relayConnStatus" // bool
	RecordAudioOn   = "recordAudio"     // bool
	Underrun        = "underrun"        // bool
	Rebuffering     = "rebuffering"     // bool
	SetVolume       = "setVolume"       // float32
	Shutdown        = "shutdown"        // bool
	OsExit          = "osExit"          // bool
	CliCommand      = "cliCommand"      // string (one input line)
	VoxActive       = "voxActive"       // bool
)

// relay
const (
	ClientConnected    = "clientConnected"    // string (session id)
	ClientReady        = "clientReady"        // string (session id)
	ClientDisconnected = "clientDisconnected" // string (session id)
)

// WatchSystemEvents publishes an OsExit event when the process receives
// an interrupt signal.
func WatchSystemEvents(evPS *pubsub.PubSub) {

	// Channel to handle OS signals
	osSignals := make(chan os.Signal, 1)

	//subscribe to os.Interrupt (CTRL-C signal)
	signal.Notify(osSignals, os.Interrupt)

	osSignal := <-osSignals
	if osSignal == os.Interrupt {
		evPS.Pub(true, OsExit)
	}
}
