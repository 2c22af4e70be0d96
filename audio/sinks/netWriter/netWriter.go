// Package netWriter provides an audio.Sink which streams captured audio
// frames to the relay server through a shared transport client. The
// sink never blocks: backpressure is handled by the client's bounded
// send queue, which drops frames when full.
package netWriter

import (
	"sync"

	"github.com/audsync/audsync/audio"
	"github.com/audsync/audsync/transport"
)

// NetWriter implements the audio.Sink interface for the network leg of
// the capture pipeline.
type NetWriter struct {
	sync.RWMutex
	client  *transport.Client
	volume  float32
	enabled bool
}

// NewNetWriter returns a network writer which streams audio frames
// through the given relay client.
func NewNetWriter(client *transport.Client) *NetWriter {
	return &NetWriter{
		client: client,
		volume: 1.0,
	}
}

// Start enables forwarding of audio frames to the relay.
func (w *NetWriter) Start() error {
	w.Lock()
	defer w.Unlock()
	w.enabled = true
	return nil
}

// Stop disables forwarding. Frames written while stopped are discarded
// silently, the relay connection stays up.
func (w *NetWriter) Stop() error {
	w.Lock()
	defer w.Unlock()
	w.enabled = false
	return nil
}

// Close disables the writer. The shared transport client is owned by the
// endpoint and not closed here.
func (w *NetWriter) Close() error {
	return w.Stop()
}

// Write hands an audio frame to the transport client. It never blocks;
// when the client is disconnected or its queue is full the frame is
// dropped and an error returned.
func (w *NetWriter) Write(msg audio.Msg) error {
	w.RLock()
	enabled := w.enabled
	vol := w.volume
	w.RUnlock()

	if !enabled {
		return nil
	}

	if vol != 1 {
		audio.AdjustVolume(vol, msg.Data)
	}

	return w.client.SendAudio(msg.Data)
}

// SetVolume sets the gain applied to outgoing audio frames.
func (w *NetWriter) SetVolume(v float32) {
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

// Volume returns the current outgoing gain.
func (w *NetWriter) Volume() float32 {
	w.RLock()
	defer w.RUnlock()
	return w.volume
}

// Flush is not implemented
func (w *NetWriter) Flush() {}
