package audio

// OnDataCb is the callback which is executed by an audio source to deliver
// an audio frame to the consumer.
type OnDataCb func(Msg)

// Source is the interface which is implemented by an audio source. This
// could be streaming data received from a network connection or a local
// audio source (e.g. microphone).
type Source interface {
	Start() error
	Stop() error
	Close() error
	SetCb(OnDataCb)
}

// Sink is the interface which is implemented by an audio sink. This could
// be an audio player, a network connection or a file for recording.
type Sink interface {
	Start() error
	Stop() error
	Close() error
	SetVolume(float32)
	Volume() float32
	Write(Msg) error
	Flush()
}

// Node is a processing element which can be placed between an audio
// source and an audio sink.
type Node interface {
	Write(Msg) error
	SetCb(OnDataCb)
}

// Msg contains an audio buffer with its metadata.
type Msg struct {
	Data       []float32
	Samplerate float64
	Channels   int
	Frames     int // Number of Frames in the buffer
	Sequence   uint32
	Timestamp  uint64 // sender clock, microseconds
	EOF        bool
}
