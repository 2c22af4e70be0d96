package transport

import (
	"time"

	"github.com/audsync/audsync/protocol"
)

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters for initializing a relay client.
type Options struct {
	Address              string
	QueueSize            int
	HeartbeatInterval    time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	StreamConfig         protocol.StreamConfig
	OnMessage            func(protocol.Message)
	OnStateChange        func(connected bool)
}

// Address is a functional option to set the relay server address
// (host:port).
func Address(addr string) Option {
	return func(args *Options) {
		args.Address = addr
	}
}

// QueueSize is a functional option which sets the capacity of the send
// queue in messages. When the queue is full, new audio frames are
// dropped.
func QueueSize(n int) Option {
	return func(args *Options) {
		args.QueueSize = n
	}
}

// HeartbeatInterval is a functional option which sets how often a
// heartbeat is sent while no audio is flowing.
func HeartbeatInterval(d time.Duration) Option {
	return func(args *Options) {
		args.HeartbeatInterval = d
	}
}

// ReconnectDelay is a functional option which sets the pause between
// reconnection attempts.
func ReconnectDelay(d time.Duration) Option {
	return func(args *Options) {
		args.ReconnectDelay = d
	}
}

// MaxReconnectAttempts is a functional option which bounds the number of
// reconnection attempts before the client gives up.
func MaxReconnectAttempts(n int) Option {
	return func(args *Options) {
		args.MaxReconnectAttempts = n
	}
}

// ReadTimeout is a functional option which sets the socket read deadline
// used by the receive loop. Short deadlines keep shutdown prompt.
func ReadTimeout(d time.Duration) Option {
	return func(args *Options) {
		args.ReadTimeout = d
	}
}

// WriteTimeout is a functional option which sets the deadline for a
// single message write on the socket.
func WriteTimeout(d time.Duration) Option {
	return func(args *Options) {
		args.WriteTimeout = d
	}
}

// StreamConfig is a functional option which sets the audio format
// announced to the relay during the handshake.
func StreamConfig(c protocol.StreamConfig) Option {
	return func(args *Options) {
		args.StreamConfig = c
	}
}

// OnMessage is a functional option to register the callback which is
// executed for every message received from the relay.
func OnMessage(cb func(protocol.Message)) Option {
	return func(args *Options) {
		args.OnMessage = cb
	}
}

// OnStateChange is a functional option to register a callback which is
// executed when the connection to the relay is established or lost.
func OnStateChange(cb func(connected bool)) Option {
	return func(args *Options) {
		args.OnStateChange = cb
	}
}
