package protocol

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	// HeaderSize is 4 bytes body length + 2 bytes event type.
	HeaderSize = 6

	// MaxFrameSize bounds a single frame body.
	MaxFrameSize = 1 << 20
)

var ErrFrameTooLarge = errors.New("frame body exceeds limit")

// Inbound event types.
const (
	EventHeartbeat       uint16 = 0
	EventAuth            uint16 = 1
	EventAuthAck         uint16 = 2
	EventSendDirect      uint16 = 10
	EventSendWithFile    uint16 = 11
	EventConfirmDelivery uint16 = 12
	EventMarkRead        uint16 = 13
	EventEdit            uint16 = 14
	EventDelete          uint16 = 15
	EventForward         uint16 = 16
	EventReact           uint16 = 17
	EventTyping          uint16 = 18
	EventStoppedTyping   uint16 = 19
)

// Outbound event types.
const (
	EventMessageReceived  uint16 = 30
	EventMessageSentAck   uint16 = 31
	EventMessageDelivered uint16 = 32
	EventMessageRead      uint16 = 33
	EventMessageEdited    uint16 = 34
	EventMessageDeleted   uint16 = 35
	EventReactionChanged  uint16 = 36
	EventUserOnline       uint16 = 37
	EventUserOffline      uint16 = 38
	EventTypingSignal     uint16 = 39
	EventStoppedSignal    uint16 = 40
	EventError            uint16 = 50
)

// EncodeFrame builds a wire frame: length, event type, body.
func EncodeFrame(eventType uint16, body []byte) []byte {
	frame := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(body)))
	binary.BigEndian.PutUint16(frame[4:6], eventType)
	copy(frame[HeaderSize:], body)
	return frame
}

// ReadFrame reads one frame off the stream.
func ReadFrame(r io.Reader) (eventType uint16, body []byte, err error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}

	length := binary.BigEndian.Uint32(header[:4])
	eventType = binary.BigEndian.Uint16(header[4:6])

	if length > MaxFrameSize {
		return 0, nil, ErrFrameTooLarge
	}

	body = make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}

	return eventType, body, nil
}
