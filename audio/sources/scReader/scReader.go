package scReader

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	pa "github.com/gordonklaus/portaudio"

	"github.com/audsync/audsync/audio"
	"github.com/audsync/audsync/audio/padevice"
)

// ScReader implements the audio.Source interface and is used to read
// (record) audio from a local sound card (e.g. microphone).
type ScReader struct {
	sync.RWMutex
	options    Options
	deviceInfo *pa.DeviceInfo
	stream     *pa.Stream
	cb         audio.OnDataCb
	overflows  uint64
}

// NewScReader returns a soundcard reader which streams audio
// asynchronously from a local audio device (e.g. a microphone).
func NewScReader(opts ...Option) (*ScReader, error) {

	r := &ScReader{
		options: Options{
			HostAPI:         "default",
			DeviceName:      "default",
			Channels:        1,
			Samplerate:      44100,
			FramesPerBuffer: 256,
			Latency:         time.Millisecond * 10,
		},
	}

	for _, option := range opts {
		option(&r.options)
	}
	r.cb = r.options.Callback

	hostAPI, err := padevice.HostAPI(r.options.HostAPI)
	if err != nil {
		return nil, err
	}

	r.deviceInfo, err = padevice.Input(hostAPI, r.options.DeviceName)
	if err != nil {
		return nil, err
	}

	streamDeviceParam := pa.StreamDeviceParameters{
		Device:   r.deviceInfo,
		Channels: r.options.Channels,
		Latency:  r.options.Latency,
	}

	streamParm := pa.StreamParameters{
		FramesPerBuffer: r.options.FramesPerBuffer,
		Input:           streamDeviceParam,
		SampleRate:      r.options.Samplerate,
	}

	stream, err := pa.OpenStream(streamParm, r.paReadCb)
	if err != nil {
		return nil,
			fmt.Errorf("unable to open recording audio stream on device %s: %s",
				r.deviceInfo.Name, err)
	}
	r.stream = stream

	log.Printf("input sound device: %s, HostAPI: %s\n", r.deviceInfo.Name, r.deviceInfo.HostApi.Name)
	return r, nil
}

// SetCb sets the callback which will be executed to provide audio buffers.
func (r *ScReader) SetCb(cb audio.OnDataCb) {
	r.Lock()
	defer r.Unlock()
	r.cb = cb
}

// paReadCb is executed by portaudio each time a new input buffer is
// available. The callback is invoked synchronously so frames reach the
// consumer in capture order; the consumer must not block.
func (r *ScReader) paReadCb(in []float32,
	iTime pa.StreamCallbackTimeInfo,
	iFlags pa.StreamCallbackFlags) {

	if iFlags == pa.InputOverflow {
		atomic.AddUint64(&r.overflows, 1)
		log.Println("InputOverflow")
		return // data lost, move on!
	}

	r.RLock()
	cb := r.cb
	r.RUnlock()

	if cb == nil {
		return
	}

	// a deep copy is necessary, since portaudio reuses the slice "in"
	buf := make([]float32, len(in))
	copy(buf, in)

	cb(audio.Msg{
		Data:       buf,
		Samplerate: r.options.Samplerate,
		Channels:   r.options.Channels,
		Frames:     len(buf) / r.options.Channels,
	})
}

// Start will start streaming audio from the local soundcard device. The
// audio buffers are delivered through the callback.
func (r *ScReader) Start() error {
	if r.stream == nil {
		return fmt.Errorf("portaudio stream not initialized")
	}
	return r.stream.Start()
}

// Stop stops streaming audio.
func (r *ScReader) Stop() error {
	if r.stream == nil {
		return fmt.Errorf("portaudio stream not initialized")
	}
	return r.stream.Stop()
}

// Close shuts down the soundcard reader.
func (r *ScReader) Close() error {
	if r.stream == nil {
		return fmt.Errorf("portaudio stream not initialized")
	}
	r.stream.Abort()
	r.stream.Stop()
	return nil
}

// Overflows returns the number of input buffers lost to device overflow.
func (r *ScReader) Overflows() uint64 {
	return atomic.LoadUint64(&r.overflows)
}
