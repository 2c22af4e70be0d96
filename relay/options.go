package relay

import (
	"time"

	"github.com/cskr/pubsub"
)

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters for initializing a relay server.
type Options struct {
	Address       string
	SendQueueSize int
	WriteTimeout  time.Duration
	EventBus      *pubsub.PubSub
}

// Address is a functional option to set the listen address (host:port).
func Address(addr string) Option {
	return func(args *Options) {
		args.Address = addr
	}
}

// SendQueueSize is a functional option which sets the per-client
// outbound queue capacity in messages. A slow client overflows its own
// queue and loses packets, other clients are unaffected.
func SendQueueSize(n int) Option {
	return func(args *Options) {
		args.SendQueueSize = n
	}
}

// WriteTimeout is a functional option which sets the deadline for a
// single message write on a client socket.
func WriteTimeout(d time.Duration) Option {
	return func(args *Options) {
		args.WriteTimeout = d
	}
}

// EventBus is a functional option which sets the pubsub bus on which the
// relay publishes client lifecycle events.
func EventBus(bus *pubsub.PubSub) Option {
	return func(args *Options) {
		args.EventBus = bus
	}
}
