package scWriter

import "time"

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters for initializing a sound card writer.
type Options struct {
	HostAPI         string
	DeviceName      string
	Channels        int
	Samplerate      float64
	FramesPerBuffer int
	Latency         time.Duration
	RingBufferSize  int
	MaxQueue        time.Duration
	OnUnderrun      func()
}

// HostAPI is a functional option to enforce the usage of a particular
// audio host API
func HostAPI(hostAPI string) Option {
	return func(args *Options) {
		args.HostAPI = hostAPI
	}
}

// DeviceName is a functional option to specify the name of the
// Audio device
func DeviceName(name string) Option {
	return func(args *Options) {
		args.DeviceName = name
	}
}

// Channels is a functional option to set the amount of channels to be used
// with the audio device. Typically this is either Mono (1) or Stereo (2).
// Make sure that your audio device supports the specified amount of channels.
func Channels(chs int) Option {
	return func(args *Options) {
		args.Channels = chs
	}
}

// Samplerate is a functional option to set the sampling rate of the
// audio device. Make sure your audio device supports the specified sampling
// rate.
func Samplerate(s float64) Option {
	return func(args *Options) {
		args.Samplerate = s
	}
}

// FramesPerBuffer is a functional option which sets the amount of sample
// frames our audio device will request / provide when executing the
// callback.
func FramesPerBuffer(s int) Option {
	return func(args *Options) {
		args.FramesPerBuffer = s
	}
}

// Latency is a functional option to set the latency of the audio device.
func Latency(t time.Duration) Option {
	return func(args *Options) {
		args.Latency = t
	}
}

// RingBufferSize is a functional option to set the size (in frames) of
// the playback queue. Enqueued frames are stored here until the playback
// callback retrieves them.
func RingBufferSize(size int) Option {
	return func(args *Options) {
		args.RingBufferSize = size
	}
}

// MaxQueue is a functional option which bounds the amount of queued
// audio. When more audio is enqueued, the oldest frames are dropped to
// keep the playback latency bounded.
func MaxQueue(d time.Duration) Option {
	return func(args *Options) {
		args.MaxQueue = d
	}
}

// OnUnderrun is a functional option to register a callback which is
// executed every time the playback queue runs dry. The callback runs in
// the audio callback context and must not block.
func OnUnderrun(cb func()) Option {
	return func(args *Options) {
		args.OnUnderrun = cb
	}
}
