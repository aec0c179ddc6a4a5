package protocol

import (
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ByteOrder is the wire byte order for every multi-byte field. It is fixed
// little-endian regardless of the host architecture.
var ByteOrder binary.ByteOrder = binary.LittleEndian

// MessageType tags the payload that follows a Header.
type MessageType uint8

const (
	Ready       MessageType = 1
	Start       MessageType = 2
	Ack         MessageType = 5
	Ping        MessageType = 6
	Pong        MessageType = 7
	GameState   MessageType = 8
	LobbyStatus MessageType = 10
	PlayerInput MessageType = 11
)

func (t MessageType) String() string {
	switch t {
	case Ready:
		return "READY"
	case Start:
		return "START"
	case Ack:
		return "ACK"
	case Ping:
		return "PING"
	case Pong:
		return "PONG"
	case GameState:
		return "GAME_STATE"
	case LobbyStatus:
		return "LOBBY_STATUS"
	case PlayerInput:
		return "PLAYER_INPUT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// FlagImportant marks a message that must be acknowledged and is
// retransmitted until it is.
const FlagImportant uint8 = 1 << 0

// Header layout, packed with no padding.
const (
	offsetType  = 0               // uint8
	offsetSeq   = offsetType + 1  // uint32
	offsetTime  = offsetSeq + 4   // uint32
	offsetFlags = offsetTime + 4  // uint8
	HeaderSize  = offsetFlags + 1 // 10 bytes
)

var (
	// ErrTruncated is returned when a datagram is shorter than the header
	// plus the fixed payload size of its declared type.
	ErrTruncated = errors.New("protocol: datagram truncated")
	// ErrUnknownType is returned for a header whose type is not in the enumeration.
	ErrUnknownType = errors.New("protocol: unknown message type")
)

// Header precedes every payload on the wire.
type Header struct {
	Type      MessageType
	Sequence  uint32 // sender-local, starts at 1
	Timestamp uint32 // ms since the sender's steady epoch
	Flags     uint8
}

// Important reports whether flag bit 0 is set.
func (h Header) Important() bool {
	return h.Flags&FlagImportant != 0
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	h.put(buf)
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return ErrTruncated
	}
	h.Type = MessageType(data[offsetType])
	h.Sequence = ByteOrder.Uint32(data[offsetSeq:])
	h.Timestamp = ByteOrder.Uint32(data[offsetTime:])
	h.Flags = data[offsetFlags]
	return nil
}

func (h Header) put(buf []byte) {
	buf[offsetType] = byte(h.Type)
	ByteOrder.PutUint32(buf[offsetSeq:], h.Sequence)
	ByteOrder.PutUint32(buf[offsetTime:], h.Timestamp)
	buf[offsetFlags] = h.Flags
}

var payloadSizes = map[MessageType]int{
	Ready:       0,
	Start:       0,
	Ack:         binary.Size(AckPayload{}),
	Ping:        binary.Size(PingPayload{}),
	Pong:        binary.Size(PingPayload{}),
	GameState:   binary.Size(GameStatePayload{}),
	LobbyStatus: binary.Size(LobbyStatusPayload{}),
	PlayerInput: binary.Size(PlayerInputPayload{}),
}

// PayloadSize returns the fixed payload size of t.
func PayloadSize(t MessageType) (int, bool) {
	n, ok := payloadSizes[t]
	return n, ok
}

// Encode lays out the header followed by the payload. A nil payload encodes
// a header-only message (Ready, Start).
func Encode(h Header, payload encoding.BinaryMarshaler) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = payload.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", h.Type, err)
		}
	}
	buf := make([]byte, HeaderSize+len(body))
	h.put(buf)
	copy(buf[HeaderSize:], body)
	return buf, nil
}

// Decode splits a datagram into its header and payload bytes. The payload
// slice aliases data.
func Decode(data []byte) (Header, []byte, error) {
	var h Header
	if err := h.UnmarshalBinary(data); err != nil {
		return h, nil, err
	}
	size, ok := PayloadSize(h.Type)
	if !ok {
		return h, nil, ErrUnknownType
	}
	if len(data) < HeaderSize+size {
		return h, nil, ErrTruncated
	}
	return h, data[HeaderSize : HeaderSize+size], nil
}

var epoch = time.Now()

// Timestamp returns milliseconds since the process-wide steady epoch,
// wrapped to 32 bits.
func Timestamp() uint32 {
	return uint32(time.Since(epoch).Milliseconds())
}
