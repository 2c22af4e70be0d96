package endpoint

import (
	"github.com/cskr/pubsub"

	"github.com/audsync/audsync/jitter"
	"github.com/audsync/audsync/sessionlog"
)

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters for initializing an endpoint.
type Options struct {
	RelayAddress    string
	HostAPI         string
	InputDevice     string
	OutputDevice    string
	Samplerate      float64
	Channels        int
	FramesPerBuffer int
	DisableFilter   bool
	EnableVox       bool
	VoxThreshold    float32
	JitterOpts      []jitter.Option
	EventBus        *pubsub.PubSub
	SessionLog      *sessionlog.Logger
}

// RelayAddress is a functional option to set the relay server address
// (host:port).
func RelayAddress(addr string) Option {
	return func(args *Options) {
		args.RelayAddress = addr
	}
}

// HostAPI is a functional option to set the portaudio host API used for
// both the capture and the playback device.
func HostAPI(api string) Option {
	return func(args *Options) {
		args.HostAPI = api
	}
}

// InputDevice is a functional option to select the capture device by
// name. "default" selects the system default.
func InputDevice(name string) Option {
	return func(args *Options) {
		args.InputDevice = name
	}
}

// OutputDevice is a functional option to select the playback device by
// name. "default" selects the system default.
func OutputDevice(name string) Option {
	return func(args *Options) {
		args.OutputDevice = name
	}
}

// Samplerate is a functional option to set the sampling rate of both
// pipeline legs in frames per second.
func Samplerate(s float64) Option {
	return func(args *Options) {
		args.Samplerate = s
	}
}

// Channels is a functional option to set the channel count of the
// stream sent to the relay.
func Channels(chs int) Option {
	return func(args *Options) {
		args.Channels = chs
	}
}

// FramesPerBuffer is a functional option to set the audio frame size.
// Smaller values mean less latency at the cost of more network packets.
func FramesPerBuffer(n int) Option {
	return func(args *Options) {
		args.FramesPerBuffer = n
	}
}

// DisableFilter is a functional option which bypasses the voice filter
// chain on both legs, sending and rendering the raw samples.
func DisableFilter() Option {
	return func(args *Options) {
		args.DisableFilter = true
	}
}

// EnableVox is a functional option which enables voice activated
// transmission: captured audio is only sent to the relay while the
// level stays above the vox threshold.
func EnableVox(threshold float32) Option {
	return func(args *Options) {
		args.EnableVox = true
		args.VoxThreshold = threshold
	}
}

// JitterOpts is a functional option forwarding tuning options to the
// receive jitter buffer.
func JitterOpts(opts ...jitter.Option) Option {
	return func(args *Options) {
		args.JitterOpts = opts
	}
}

// EventBus is a functional option which sets the pubsub bus on which
// the endpoint publishes connection status, underrun, vox and recording
// events.
func EventBus(bus *pubsub.PubSub) Option {
	return func(args *Options) {
		args.EventBus = bus
	}
}

// SessionLog is a functional option which sets the session logger
// recording stream totals and packet timing.
func SessionLog(l *sessionlog.Logger) Option {
	return func(args *Options) {
		args.SessionLog = l
	}
}
