package wavWriter

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters for initializing a wav writer.
type Options struct {
	Channels   int
	Samplerate float64
}

// Channels is a functional option to set the amount of channels to be
// written into the wav file.
func Channels(chs int) Option {
	return func(args *Options) {
		args.Channels = chs
	}
}

// Samplerate is a functional option to set the sampling rate of the
// recorded wav file.
func Samplerate(s float64) Option {
	return func(args *Options) {
		args.Samplerate = s
	}
}
