// Package voicefilter provides an audio node which cleans up a voice
// stream: noise gating, rumble removal, loudness normalization, gentle
// compression, de-essing and clipping protection. Every instance carries
// its own filter state, so each stream gets an independent chain.
package voicefilter

import (
	"sync"

	"github.com/chewxy/math32"

	"github.com/audsync/audsync/audio"
)

const (
	softClipKnee  = 0.95
	softClipRange = 0.05
)

// VoiceFilter is an audio Node which runs incoming frames through the
// voice processing chain and forwards the result to the registered
// callback.
type VoiceFilter struct {
	sync.Mutex
	options Options
	cb      audio.OnDataCb

	// filter state, per instance
	hpPrevIn  float32
	hpPrevOut float32
	lpPrev    float32
	essPrev   float32
}

// New is the constructor for a VoiceFilter audio node.
func New(opts ...Option) *VoiceFilter {
	f := &VoiceFilter{
		options: Options{
			GateThreshold: 0.005,
			GateAttenuate: 0.05,
			HighPassAlpha: 0.98,
			LowPassAlpha:  0.3,
			TargetRMS:     0.2,
			MinGain:       0.3,
			MaxGain:       3.0,
			CompThreshold: 0.3,
			CompRatio:     4.0,
			EssDerivative: 0.1,
			EssAmplitude:  0.2,
			EssAttenuate:  0.7,
		},
	}

	for _, opt := range opts {
		opt(&f.options)
	}

	return f
}

// Write is the entry point into this audio node. The frame data is
// processed in place and then handed to the next node or sink.
func (f *VoiceFilter) Write(msg audio.Msg) error {
	f.Lock()
	cb := f.cb
	if len(msg.Data) > 0 {
		f.process(msg.Data)
	}
	f.Unlock()

	if cb != nil {
		cb(msg)
	}
	return nil
}

// SetCb sets the callback which will be called when a frame has been
// processed.
func (f *VoiceFilter) SetCb(cb audio.OnDataCb) {
	f.Lock()
	defer f.Unlock()
	f.cb = cb
}

func (f *VoiceFilter) process(data []float32) {
	o := f.options

	for i, x := range data {
		// noise gate
		if math32.Abs(x) < o.GateThreshold {
			x *= o.GateAttenuate
		}

		// single pole high pass against low frequency rumble
		hp := o.HighPassAlpha * (f.hpPrevOut + x - f.hpPrevIn)
		f.hpPrevIn = x
		f.hpPrevOut = hp
		x = hp

		// single pole low pass smoothing
		f.lpPrev += o.LowPassAlpha * (x - f.lpPrev)
		x = f.lpPrev

		data[i] = x
	}

	if !o.DisableDynamic {
		f.normalize(data)
		f.compress(data)
	}

	f.deEss(data)
	softClip(data)
}

// normalize scales the frame towards the target loudness. The gain is
// clamped so silence is not blown up into noise.
func (f *VoiceFilter) normalize(data []float32) {
	var sum float32
	for _, x := range data {
		sum += x * x
	}
	rms := math32.Sqrt(sum / float32(len(data)))
	if rms == 0 {
		return
	}

	gain := f.options.TargetRMS / rms
	if gain < f.options.MinGain {
		gain = f.options.MinGain
	} else if gain > f.options.MaxGain {
		gain = f.options.MaxGain
	}

	for i := range data {
		data[i] *= gain
	}
}

func (f *VoiceFilter) compress(data []float32) {
	threshold := f.options.CompThreshold
	ratio := f.options.CompRatio

	for i, x := range data {
		abs := math32.Abs(x)
		if abs <= threshold {
			continue
		}
		compressed := threshold + (abs-threshold)/ratio
		if x < 0 {
			compressed = -compressed
		}
		data[i] = compressed
	}
}

// deEss attenuates harsh sibilants, detected as a steep sample slope at
// high amplitude.
func (f *VoiceFilter) deEss(data []float32) {
	for i, x := range data {
		deriv := math32.Abs(x - f.essPrev)
		f.essPrev = x
		if deriv > f.options.EssDerivative && math32.Abs(x) > f.options.EssAmplitude {
			data[i] = x * f.options.EssAttenuate
		}
	}
}

// softClip keeps the output inside [-1, 1] with a tanh shaped knee above
// 0.95 instead of hard clipping.
func softClip(data []float32) {
	for i, x := range data {
		abs := math32.Abs(x)
		if abs <= softClipKnee {
			continue
		}
		clipped := softClipKnee + softClipRange*math32.Tanh((abs-softClipKnee)/softClipRange)
		if x < 0 {
			clipped = -clipped
		}
		data[i] = clipped
	}
}

// SoftClip applies the clipping protection curve in place. It is shared
// with the playback path, which applies it after the volume stage.
func SoftClip(data []float32) {
	softClip(data)
}
