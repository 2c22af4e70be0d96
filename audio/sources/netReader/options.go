package netReader

import (
	"github.com/audsync/audsync/audio"
	"github.com/audsync/audsync/jitter"
)

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters for initializing a network reader.
type Options struct {
	Samplerate      float64
	Channels        int
	FramesPerBuffer int
	JitterOpts      []jitter.Option
	Callback        audio.OnDataCb
}

// Samplerate is a functional option which sets the sample rate assumed
// for incoming audio until a peer announces its format.
func Samplerate(s float64) Option {
	return func(args *Options) {
		args.Samplerate = s
	}
}

// Channels is a functional option which sets the channel count assumed
// for incoming audio until a peer announces its format.
func Channels(chs int) Option {
	return func(args *Options) {
		args.Channels = chs
	}
}

// FramesPerBuffer is a functional option which sets the playout cadence
// in frames per pull.
func FramesPerBuffer(n int) Option {
	return func(args *Options) {
		args.FramesPerBuffer = n
	}
}

// JitterOpts is a functional option which passes configuration through
// to the underlying jitter buffer.
func JitterOpts(opts ...jitter.Option) Option {
	return func(args *Options) {
		args.JitterOpts = append(args.JitterOpts, opts...)
	}
}

// Callback is a functional option to set the callback which will be
// executed whenever a frame is ready for playout.
func Callback(cb audio.OnDataCb) Option {
	return func(args *Options) {
		args.Callback = cb
	}
}
