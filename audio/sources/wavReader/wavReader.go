// Package wavReader provides an audio.Source which plays the content of
// a wav file into the pipeline at the cadence of the recorded stream.
package wavReader

import (
	"errors"
	"os"
	"sync"
	"time"

	ga "github.com/go-audio/audio"
	wav "github.com/go-audio/wav"

	"github.com/audsync/audsync/audio"
)

// WavReader implements the audio.Source interface and is used to read
// (play) audio frames from a wav file.
type WavReader struct {
	sync.RWMutex
	options Options
	buffer  []audio.Msg
	cb      audio.OnDataCb
	stop    chan struct{}
	wg      sync.WaitGroup
	playing bool
	onDone  func()
}

// NewWavReader reads a wav file from disk into memory and returns a
// WavReader object which implements the audio.Source interface.
func NewWavReader(file string, opts ...Option) (*WavReader, error) {

	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)

	if !dec.IsValidFile() {
		return nil, errors.New("wavReader: invalid wav file")
	}

	w := WavReader{
		options: Options{
			FramesPerBuffer: DefaultFramesPerBuffer,
		},
	}

	for _, o := range opts {
		o(&w.options)
	}

	format := dec.Format()
	buf := &ga.IntBuffer{
		Data:   make([]int, w.options.FramesPerBuffer*format.NumChannels),
		Format: format,
	}

	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
		if n != len(buf.Data) {
			buf.Data = buf.Data[:n]
		}

		samples := make([]float32, len(buf.Data))
		copy(samples, buf.AsFloat32Buffer().Data)

		w.buffer = append(w.buffer, audio.Msg{
			Data:       samples,
			Channels:   buf.Format.NumChannels,
			Samplerate: float64(buf.Format.SampleRate),
			Frames:     n / buf.Format.NumChannels,
		})
	}

	if len(w.buffer) == 0 {
		return nil, errors.New("wavReader: wav file contains no audio")
	}
	w.buffer[len(w.buffer)-1].EOF = true

	return &w, nil
}

// SetCb sets the callback which will be executed to provide audio
// frames.
func (w *WavReader) SetCb(cb audio.OnDataCb) {
	w.Lock()
	defer w.Unlock()
	w.cb = cb
}

// OnDone registers a callback executed once the whole file has been
// played.
func (w *WavReader) OnDone(cb func()) {
	w.Lock()
	defer w.Unlock()
	w.onDone = cb
}

// Start plays the file by providing audio frames through the set
// callback at the cadence of the recorded stream.
func (w *WavReader) Start() error {
	w.Lock()
	defer w.Unlock()

	if w.playing {
		return nil
	}
	w.playing = true
	w.stop = make(chan struct{})

	w.wg.Add(1)
	go w.playLoop()

	return nil
}

func (w *WavReader) playLoop() {
	defer w.wg.Done()

	first := w.buffer[0]
	interval := time.Duration(float64(first.Frames) /
		first.Samplerate * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for _, msg := range w.buffer {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.RLock()
			cb := w.cb
			w.RUnlock()
			if cb != nil {
				cb(msg)
			}
		}
	}

	w.Lock()
	w.playing = false
	done := w.onDone
	w.Unlock()
	if done != nil {
		done()
	}
}

// Stop cancels playback.
func (w *WavReader) Stop() error {
	w.Lock()
	defer w.Unlock()

	if !w.playing {
		return nil
	}
	w.playing = false
	close(w.stop)
	w.Unlock()
	w.wg.Wait()
	w.Lock()
	return nil
}

// Playing reports whether the file is currently being played.
func (w *WavReader) Playing() bool {
	w.RLock()
	defer w.RUnlock()
	return w.playing
}

// Close stops playback and releases the buffered file.
func (w *WavReader) Close() error {
	w.Stop()
	w.buffer = nil
	return nil
}
