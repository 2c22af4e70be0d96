package voicefilter

// Option is the type for a function option
type Option func(*Options)

// Options contains the parameters of the voice filter chain.
type Options struct {
	GateThreshold  float32
	GateAttenuate  float32
	HighPassAlpha  float32
	LowPassAlpha   float32
	TargetRMS      float32
	MinGain        float32
	MaxGain        float32
	CompThreshold  float32
	CompRatio      float32
	EssDerivative  float32
	EssAmplitude   float32
	EssAttenuate   float32
	DisableDynamic bool
}

// GateThreshold is a functional option which sets the amplitude below
// which samples are treated as background noise.
func GateThreshold(t float32) Option {
	return func(args *Options) {
		args.GateThreshold = t
	}
}

// HighPassAlpha is a functional option which sets the coefficient of the
// single pole high pass filter removing low frequency rumble.
func HighPassAlpha(a float32) Option {
	return func(args *Options) {
		args.HighPassAlpha = a
	}
}

// LowPassAlpha is a functional option which sets the coefficient of the
// single pole low pass smoothing filter.
func LowPassAlpha(a float32) Option {
	return func(args *Options) {
		args.LowPassAlpha = a
	}
}

// TargetRMS is a functional option which sets the loudness level the
// normalizer aims for.
func TargetRMS(t float32) Option {
	return func(args *Options) {
		args.TargetRMS = t
	}
}

// CompThreshold is a functional option which sets the level above which
// the compressor reduces the signal.
func CompThreshold(t float32) Option {
	return func(args *Options) {
		args.CompThreshold = t
	}
}

// CompRatio is a functional option which sets the compression ratio
// applied above the compressor threshold.
func CompRatio(r float32) Option {
	return func(args *Options) {
		args.CompRatio = r
	}
}

// DisableDynamic is a functional option which bypasses the normalizer and
// the compressor. Gate, equalization and clipping protection stay active.
func DisableDynamic() Option {
	return func(args *Options) {
		args.DisableDynamic = true
	}
}
