package jitter

import "time"

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters for initializing a jitter buffer.
type Options struct {
	MinPackets      int
	MaxPackets      int
	FrameDuration   time.Duration
	PacketTimeout   time.Duration
	JitterThreshold time.Duration
	MinDepth        time.Duration
	MaxDepth        time.Duration
}

// MinPackets is a functional option which sets the amount of packets that
// must be buffered before playout starts.
func MinPackets(n int) Option {
	return func(args *Options) {
		args.MinPackets = n
	}
}

// MaxPackets is a functional option which caps the amount of packets held
// in the buffer. When the cap is exceeded the oldest packet is evicted.
func MaxPackets(n int) Option {
	return func(args *Options) {
		args.MaxPackets = n
	}
}

// FrameDuration is a functional option which sets the playout duration of
// a single audio packet. It is used to convert the adaptive buffer depth
// from milliseconds into packets.
func FrameDuration(d time.Duration) Option {
	return func(args *Options) {
		args.FrameDuration = d
	}
}

// PacketTimeout is a functional option which sets how long the buffer
// waits for a missing packet before concealing the loss.
func PacketTimeout(d time.Duration) Option {
	return func(args *Options) {
		args.PacketTimeout = d
	}
}

// JitterThreshold is a functional option which sets the network jitter
// level above which the buffer depth is increased.
func JitterThreshold(d time.Duration) Option {
	return func(args *Options) {
		args.JitterThreshold = d
	}
}

// MinDepth is a functional option which sets the lower bound for the
// adaptive buffer depth.
func MinDepth(d time.Duration) Option {
	return func(args *Options) {
		args.MinDepth = d
	}
}

// MaxDepth is a functional option which sets the upper bound for the
// adaptive buffer depth.
func MaxDepth(d time.Duration) Option {
	return func(args *Options) {
		args.MaxDepth = d
	}
}
