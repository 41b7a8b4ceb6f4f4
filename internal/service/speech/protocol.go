package speech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Binary framing of the Volcengine streaming TTS websocket. Every frame
// starts with a 4 byte header followed by optional sequence and event
// metadata, a big-endian payload size and the payload.

const protocolVersion = 0b0001

type messageType uint8

const (
	msgFullClientRequest  messageType = 0b0001
	msgFullServerResponse messageType = 0b1001
	msgAudioOnlyResponse  messageType = 0b1011
	msgError              messageType = 0b1111
)

type messageFlags uint8

const (
	flagNoSequence       messageFlags = 0b0000
	flagPositiveSequence messageFlags = 0b0001
	flagLastNoSequence   messageFlags = 0b0010
	flagNegativeSequence messageFlags = 0b0011
	flagWithEvent        messageFlags = 0b0100
)

type serialization uint8

const (
	serializationNone serialization = 0b0000
	serializationJSON serialization = 0b0001
)

type compression uint8

const (
	compressionNone compression = 0b0000
	compressionGzip compression = 0b0001
)

type eventType int32

const (
	eventStartConnection    eventType = 1
	eventFinishConnection   eventType = 2
	eventConnectionStarted  eventType = 50
	eventConnectionFailed   eventType = 51
	eventConnectionFinished eventType = 52
	eventSessionStarted     eventType = 150
	eventSessionFinished    eventType = 152
	eventSessionFailed      eventType = 153
)

var errShortHeader = errors.New("frame header too short")

type header struct {
	version       uint8
	size          uint8
	kind          messageType
	flags         messageFlags
	serialization serialization
	compression   compression
}

type frame struct {
	header    header
	sequence  int32
	event     eventType
	sessionID string
	connectID string
	errorCode uint32
	payload   []byte
}

func newClientRequest(payload []byte, comp compression) *frame {
	return &frame{
		header: header{
			version:       protocolVersion,
			size:          1,
			kind:          msgFullClientRequest,
			flags:         flagNoSequence,
			serialization: serializationJSON,
			compression:   comp,
		},
		payload: payload,
	}
}

func (h header) bytes() []byte {
	return []byte{
		h.version<<4 | h.size,
		uint8(h.kind)<<4 | uint8(h.flags),
		uint8(h.serialization)<<4 | uint8(h.compression),
		0,
	}
}

func parseHeader(data []byte) (header, error) {
	if len(data) < 4 {
		return header{}, fmt.Errorf("%w: %d bytes", errShortHeader, len(data))
	}
	h := header{
		version:       data[0] >> 4,
		size:          data[0] & 0x0F,
		kind:          messageType(data[1] >> 4),
		flags:         messageFlags(data[1] & 0x0F),
		serialization: serialization(data[2] >> 4),
		compression:   compression(data[2] & 0x0F),
	}
	if h.version != protocolVersion {
		return header{}, fmt.Errorf("unsupported protocol version %d", h.version)
	}
	return h, nil
}

func (f *frame) hasSequence() bool {
	switch f.header.flags & 0b0011 {
	case flagPositiveSequence, flagNegativeSequence:
		return true
	}
	return false
}

func (f *frame) hasEvent() bool {
	return f.header.flags&flagWithEvent == flagWithEvent
}

// last reports whether the server marked this frame as the final one.
func (f *frame) last() bool {
	switch f.header.flags & 0b0011 {
	case flagLastNoSequence, flagNegativeSequence:
		return true
	}
	return false
}

func (f *frame) encode() []byte {
	var buf bytes.Buffer
	buf.Write(f.header.bytes())

	if f.hasSequence() {
		_ = binary.Write(&buf, binary.BigEndian, f.sequence)
	}
	if f.hasEvent() {
		_ = binary.Write(&buf, binary.BigEndian, int32(f.event))
		if !skipsSessionID(f.event) {
			writeSized(&buf, f.sessionID)
		}
		if carriesConnectID(f.event) {
			writeSized(&buf, f.connectID)
		}
	}

	_ = binary.Write(&buf, binary.BigEndian, uint32(len(f.payload)))
	buf.Write(f.payload)
	return buf.Bytes()
}

func decodeFrame(r io.Reader) (*frame, error) {
	raw := make([]byte, 4)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	h, err := parseHeader(raw)
	if err != nil {
		return nil, err
	}
	if extra := int(h.size)*4 - 4; extra > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(extra)); err != nil {
			return nil, fmt.Errorf("read header extension: %w", err)
		}
	}

	f := &frame{header: h}
	if f.hasSequence() {
		if err := binary.Read(r, binary.BigEndian, &f.sequence); err != nil {
			return nil, fmt.Errorf("read sequence: %w", err)
		}
	}
	if f.hasEvent() {
		var ev int32
		if err := binary.Read(r, binary.BigEndian, &ev); err != nil {
			return nil, fmt.Errorf("read event: %w", err)
		}
		f.event = eventType(ev)
		if !skipsSessionID(f.event) {
			if f.sessionID, err = readSized(r); err != nil {
				return nil, fmt.Errorf("read session id: %w", err)
			}
		}
		if carriesConnectID(f.event) {
			if f.connectID, err = readSized(r); err != nil {
				return nil, fmt.Errorf("read connect id: %w", err)
			}
		}
	}
	if h.kind == msgError {
		if err := binary.Read(r, binary.BigEndian, &f.errorCode); err != nil {
			return nil, fmt.Errorf("read error code: %w", err)
		}
	}

	var size uint32
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return nil, fmt.Errorf("read payload size: %w", err)
	}
	if size > 0 {
		f.payload = make([]byte, size)
		if _, err := io.ReadFull(r, f.payload); err != nil {
			return nil, fmt.Errorf("read payload of %d bytes: %w", size, err)
		}
	}
	return f, nil
}

func writeSized(buf *bytes.Buffer, s string) {
	_ = binary.Write(buf, binary.BigEndian, uint32(len(s)))
	buf.WriteString(s)
}

func readSized(r io.Reader) (string, error) {
	var size uint32
	if err := binary.Read(r, binary.BigEndian, &size); err != nil {
		return "", err
	}
	if size == 0 {
		return "", nil
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func skipsSessionID(ev eventType) bool {
	switch ev {
	case eventStartConnection, eventFinishConnection,
		eventConnectionStarted, eventConnectionFailed, eventConnectionFinished:
		return true
	}
	return false
}

func carriesConnectID(ev eventType) bool {
	switch ev {
	case eventConnectionStarted, eventConnectionFailed, eventConnectionFinished:
		return true
	}
	return false
}
