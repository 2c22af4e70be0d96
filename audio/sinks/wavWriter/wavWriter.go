package wavWriter

import (
	"fmt"
	"math/rand"
	"os"
	"sync"

	"github.com/chewxy/math32"
	"github.com/dh1tw/gosamplerate"
	ga "github.com/go-audio/audio"
	wav "github.com/go-audio/wav"

	"github.com/audsync/audsync/audio"
)

// WavWriter implements the audio.Sink interface and is used to record
// audio frames into a 16 bit PCM wav file.
type WavWriter struct {
	sync.Mutex
	file      *os.File
	encoder   *wav.Encoder
	options   Options
	volume    float32
	recording bool
	src       src
}

// src contains a samplerate converter and its needed variables
type src struct {
	gosamplerate.Src
	samplerate float64
	ratio      float64
}

// NewWavWriter returns a wavWriter to which audio frames can be written.
// The audio data will be saved in the wav format.
func NewWavWriter(path string, opts ...Option) (*WavWriter, error) {

	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := &WavWriter{
		options: Options{
			Channels:   1,
			Samplerate: 44100,
		},
		volume: 1.0,
		file:   f,
	}

	for _, o := range opts {
		o(&w.options)
	}

	srConv, err := gosamplerate.New(gosamplerate.SRC_SINC_FASTEST,
		w.options.Channels, 65536)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("wavWriter samplerate converter: %v", err)
	}
	w.src = src{
		Src:        srConv,
		samplerate: w.options.Samplerate,
		ratio:      1,
	}

	w.encoder = wav.NewEncoder(f, int(w.options.Samplerate), 16,
		w.options.Channels, 1)

	return w, nil
}

// Start begins writing incoming audio frames to the wav file.
func (w *WavWriter) Start() error {
	w.Lock()
	defer w.Unlock()
	w.recording = true
	return nil
}

// Stop pauses recording. Frames written while stopped are discarded.
func (w *WavWriter) Stop() error {
	w.Lock()
	defer w.Unlock()
	w.recording = false
	return nil
}

// Close finalizes the wav header and closes the file.
func (w *WavWriter) Close() error {
	w.Lock()
	defer w.Unlock()
	w.recording = false
	err := w.encoder.Close()
	w.file.Close()
	return err
}

// SetVolume sets the volume for all incoming audio frames.
func (w *WavWriter) SetVolume(v float32) {
	w.Lock()
	defer w.Unlock()
	if v < 0 {
		w.volume = 0
	} else if v > 1 {
		w.volume = 1
	} else {
		w.volume = v
	}
}

// Volume returns the current volume.
func (w *WavWriter) Volume() float32 {
	w.Lock()
	defer w.Unlock()
	return w.volume
}

// Write appends an audio frame to the wav file. Channels and samplerate
// are adjusted if necessary.
func (w *WavWriter) Write(msg audio.Msg) error {

	w.Lock()
	defer w.Unlock()

	if !w.recording {
		return nil
	}

	var aData []float32
	var err error

	if msg.Channels != w.options.Channels {
		aData = audio.AdjustChannels(msg.Channels, w.options.Channels, msg.Data)
	} else {
		aData = msg.Data
	}

	if w.volume != 1 {
		audio.AdjustVolume(w.volume, aData)
	}

	if msg.Samplerate != w.options.Samplerate {
		if w.src.samplerate != msg.Samplerate {
			w.src.Reset()
			w.src.samplerate = msg.Samplerate
			w.src.ratio = w.options.Samplerate / msg.Samplerate
		}
		aData, err = w.src.Process(aData, w.src.ratio, false)
		if err != nil {
			return err
		}
	}

	buf := ga.IntBuffer{
		Format: &ga.Format{
			SampleRate:  int(w.options.Samplerate),
			NumChannels: w.options.Channels,
		},
		Data:           make([]int, 0, len(aData)),
		SourceBitDepth: 16,
	}

	for _, sample := range aData {
		buf.Data = append(buf.Data, int(quantize(sample)))
	}

	if err := w.encoder.Write(&buf); err != nil {
		return fmt.Errorf("wavWriter: %w", err)
	}

	return nil
}

// quantize converts a float32 sample to 16 bit PCM. Overdriven samples
// are folded back with a tanh curve and triangular dither is added to
// decorrelate the quantization error.
func quantize(sample float32) int16 {
	if sample > 1.0 || sample < -1.0 {
		sample = math32.Tanh(sample)
	}

	sample += (rand.Float32() - rand.Float32()) * 0.5 / 32768.0

	v := math32.Round(sample * 32767.0)
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	return int16(v)
}

// Flush is not implemented
func (w *WavWriter) Flush() {}
