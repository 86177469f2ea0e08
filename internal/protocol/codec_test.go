package protocol

import (
	"bytes"
	"io"
	"testing"
)

func TestEncodeDecodeFrame(t *testing.T) {
	body := []byte(`{"messageId":42}`)
	frame := EncodeFrame(EventSendDirect, body)

	if len(frame) != HeaderSize+len(body) {
		t.Fatalf("Expected frame length %d, got %d", HeaderSize+len(body), len(frame))
	}

	eventType, decoded, err := ReadFrame(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if eventType != EventSendDirect {
		t.Errorf("Expected event type %d, got %d", EventSendDirect, eventType)
	}
	if !bytes.Equal(decoded, body) {
		t.Errorf("Expected body %q, got %q", body, decoded)
	}
}

func TestEncodeFrame_EmptyBody(t *testing.T) {
	frame := EncodeFrame(EventHeartbeat, nil)

	if len(frame) != HeaderSize {
		t.Fatalf("Expected frame length %d, got %d", HeaderSize, len(frame))
	}

	eventType, body, err := ReadFrame(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if eventType != EventHeartbeat {
		t.Errorf("Expected event type %d, got %d", EventHeartbeat, eventType)
	}
	if len(body) != 0 {
		t.Errorf("Expected empty body, got %d bytes", len(body))
	}
}

func TestReadFrame_TooLarge(t *testing.T) {
	frame := EncodeFrame(EventSendDirect, nil)
	// forge a length beyond the limit
	frame[0] = 0xFF
	frame[1] = 0xFF
	frame[2] = 0xFF
	frame[3] = 0xFF

	_, _, err := ReadFrame(bytes.NewReader(frame))
	if err != ErrFrameTooLarge {
		t.Errorf("Expected ErrFrameTooLarge, got %v", err)
	}
}

func TestReadFrame_TruncatedHeader(t *testing.T) {
	_, _, err := ReadFrame(bytes.NewReader([]byte{0x00, 0x00}))
	if err == nil {
		t.Error("Expected error for truncated header")
	}
}

func TestReadFrame_TruncatedBody(t *testing.T) {
	frame := EncodeFrame(EventSendDirect, []byte("hello"))
	_, _, err := ReadFrame(bytes.NewReader(frame[:HeaderSize+2]))
	if err != io.ErrUnexpectedEOF {
		t.Errorf("Expected ErrUnexpectedEOF, got %v", err)
	}
}

func TestReadFrame_MultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(EncodeFrame(EventSendDirect, []byte("one")))
	buf.Write(EncodeFrame(EventMarkRead, []byte("two")))

	eventType, body, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("First ReadFrame failed: %v", err)
	}
	if eventType != EventSendDirect || string(body) != "one" {
		t.Errorf("Unexpected first frame: type=%d body=%q", eventType, body)
	}

	eventType, body, err = ReadFrame(&buf)
	if err != nil {
		t.Fatalf("Second ReadFrame failed: %v", err)
	}
	if eventType != EventMarkRead || string(body) != "two" {
		t.Errorf("Unexpected second frame: type=%d body=%q", eventType, body)
	}
}
