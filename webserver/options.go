package webserver

import (
	"time"

	"github.com/cskr/pubsub"
)

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters for initializing the status monitor.
type Options struct {
	Address      string
	PushInterval time.Duration
	EventBus     *pubsub.PubSub
}

// Address is a functional option to set the HTTP listen address
// (host:port) of the status monitor.
func Address(addr string) Option {
	return func(args *Options) {
		args.Address = addr
	}
}

// PushInterval is a functional option which sets how often the current
// relay status is pushed to connected websocket clients. Lifecycle
// events trigger an immediate push in addition to the periodic one.
func PushInterval(d time.Duration) Option {
	return func(args *Options) {
		args.PushInterval = d
	}
}

// EventBus is a functional option which sets the pubsub bus on which
// the relay publishes client lifecycle events. The monitor subscribes
// to them so websocket clients see connects and disconnects without
// waiting for the next periodic push.
func EventBus(bus *pubsub.PubSub) Option {
	return func(args *Options) {
		args.EventBus = bus
	}
}
