// Package protocol implements the framing used between endpoints and the
// relay server. All messages share a fixed 24 byte little endian header
// followed by an optional payload.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// MsgType identifies the kind of message carried in a frame.
type MsgType uint16

const (
	Connect MsgType = iota
	AudioData
	Heartbeat
	Config
	Disconnect
	ClientReady
)

func (t MsgType) String() string {
	switch t {
	case Connect:
		return "CONNECT"
	case AudioData:
		return "AUDIO_DATA"
	case Heartbeat:
		return "HEARTBEAT"
	case Config:
		return "CONFIG"
	case Disconnect:
		return "DISCONNECT"
	case ClientReady:
		return "CLIENT_READY"
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint16(t))
}

const (
	// Magic marks the start of every frame ("AUDS").
	Magic uint32 = 0x41554453

	// HeaderSize is the fixed length of the frame header in bytes.
	HeaderSize = 24

	// MaxMessageSize caps the total frame length. Anything larger
	// indicates a corrupt or hostile stream.
	MaxMessageSize = 10 * 1024 * 1024
)

var (
	ErrBadMagic   = errors.New("protocol: bad magic")
	ErrTooLarge   = errors.New("protocol: message exceeds size limit")
	ErrShortFrame = errors.New("protocol: declared length shorter than header")
)

// Message is a decoded frame. Payload is empty for control messages.
type Message struct {
	Type      MsgType
	Sequence  uint32
	Timestamp uint64 // sender clock, microseconds
	Payload   []byte
}

// Encode serializes the message into a freshly allocated byte slice.
func Encode(m Message) []byte {
	total := HeaderSize + len(m.Payload)
	buf := make([]byte, total)
	binary.LittleEndian.PutUint32(buf[0:4], Magic)
	binary.LittleEndian.PutUint16(buf[4:6], uint16(m.Type))
	// buf[6:8] reserved, zero
	binary.LittleEndian.PutUint32(buf[8:12], uint32(total))
	binary.LittleEndian.PutUint32(buf[12:16], m.Sequence)
	binary.LittleEndian.PutUint64(buf[16:24], m.Timestamp)
	copy(buf[HeaderSize:], m.Payload)
	return buf
}

// header is the decoded fixed part of a frame.
type header struct {
	msgType   MsgType
	length    uint32
	sequence  uint32
	timestamp uint64
}

func decodeHeader(buf []byte) (header, error) {
	var h header
	if binary.LittleEndian.Uint32(buf[0:4]) != Magic {
		return h, ErrBadMagic
	}
	h.msgType = MsgType(binary.LittleEndian.Uint16(buf[4:6]))
	h.length = binary.LittleEndian.Uint32(buf[8:12])
	h.sequence = binary.LittleEndian.Uint32(buf[12:16])
	h.timestamp = binary.LittleEndian.Uint64(buf[16:24])

	if h.length < HeaderSize {
		return h, ErrShortFrame
	}
	if h.length > MaxMessageSize {
		return h, ErrTooLarge
	}
	return h, nil
}

// ReadMessage reads exactly one frame from r. A failed read, a bad magic
// value or an implausible length leaves the stream in an undefined state;
// the caller must close the connection.
func ReadMessage(r io.Reader) (Message, error) {
	var hdrBuf [HeaderSize]byte
	if _, err := io.ReadFull(r, hdrBuf[:]); err != nil {
		return Message{}, err
	}

	h, err := decodeHeader(hdrBuf[:])
	if err != nil {
		return Message{}, err
	}

	m := Message{
		Type:      h.msgType,
		Sequence:  h.sequence,
		Timestamp: h.timestamp,
	}

	if payloadLen := int(h.length) - HeaderSize; payloadLen > 0 {
		m.Payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return Message{}, err
		}
	}

	return m, nil
}

// ReadRawMessage reads one frame from r and returns both the decoded
// message and the original frame bytes. The relay uses the raw bytes to
// forward audio without re-encoding it.
func ReadRawMessage(r io.Reader) (Message, []byte, error) {
	raw := make([]byte, HeaderSize, HeaderSize+4096)
	if _, err := io.ReadFull(r, raw); err != nil {
		return Message{}, nil, err
	}

	h, err := decodeHeader(raw)
	if err != nil {
		return Message{}, nil, err
	}

	m := Message{
		Type:      h.msgType,
		Sequence:  h.sequence,
		Timestamp: h.timestamp,
	}

	if payloadLen := int(h.length) - HeaderSize; payloadLen > 0 {
		raw = append(raw, make([]byte, payloadLen)...)
		if _, err := io.ReadFull(r, raw[HeaderSize:]); err != nil {
			return Message{}, nil, err
		}
		m.Payload = raw[HeaderSize:]
	}

	return m, raw, nil
}

// StreamConfig describes the audio format a client produces.
type StreamConfig struct {
	Samplerate      int32
	Channels        int32
	FramesPerBuffer int32
}

// EncodeConfig serializes a CONFIG payload.
func EncodeConfig(c StreamConfig) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(c.Samplerate))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(c.Channels))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(c.FramesPerBuffer))
	return buf
}

// DecodeConfig parses a CONFIG payload.
func DecodeConfig(payload []byte) (StreamConfig, error) {
	if len(payload) < 12 {
		return StreamConfig{}, fmt.Errorf("protocol: config payload too short (%d bytes)", len(payload))
	}
	return StreamConfig{
		Samplerate:      int32(binary.LittleEndian.Uint32(payload[0:4])),
		Channels:        int32(binary.LittleEndian.Uint32(payload[4:8])),
		FramesPerBuffer: int32(binary.LittleEndian.Uint32(payload[8:12])),
	}, nil
}

// EncodeSamples packs float32 samples into a little endian AUDIO_DATA
// payload.
func EncodeSamples(samples []float32) []byte {
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	return buf
}

// DecodeSamples unpacks an AUDIO_DATA payload into float32 samples. The
// payload length must be a multiple of four bytes.
func DecodeSamples(payload []byte) ([]float32, error) {
	if len(payload)%4 != 0 {
		return nil, fmt.Errorf("protocol: audio payload length %d not a multiple of 4", len(payload))
	}
	samples := make([]float32, len(payload)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[i*4:]))
	}
	return samples, nil
}
