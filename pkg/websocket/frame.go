package websocket

import (
	"encoding/binary"
	"io"

	"github.com/httpcore-go/httpcore/pkg/errors"
)

// frame is one decoded WebSocket frame (after any masking has been undone).
type frame struct {
	fin     bool
	opcode  Opcode
	payload []byte
}

// errFrameTooLarge marks a payload-length violation so the caller can close
// the connection with code 1009 (Message Too Big) per RFC 6455 §7.4.1,
// rather than a generic protocol-error close.
type errFrameTooLarge struct{ err error }

func (e *errFrameTooLarge) Error() string { return e.err.Error() }
func (e *errFrameTooLarge) Unwrap() error { return e.err }

// writeFrame writes a single frame to w. Client-to-server frames are always
// masked per RFC 6455 §5.1, and every caller in this package passes
// masked=true; masked=false writes the unmasked server-frame wire format.
func writeFrame(w io.Writer, op Opcode, payload []byte, masked bool) error {
	var header [14]byte
	header[0] = 0x80 | byte(op) // FIN=1, no fragmentation on write

	maskBit := byte(0)
	if masked {
		maskBit = 0x80
	}

	n := len(payload)
	var headerLen int
	switch {
	case n <= 125:
		header[1] = maskBit | byte(n)
		headerLen = 2
	case n <= 0xFFFF:
		header[1] = maskBit | 126
		binary.BigEndian.PutUint16(header[2:4], uint16(n))
		headerLen = 4
	default:
		header[1] = maskBit | 127
		binary.BigEndian.PutUint64(header[2:10], uint64(n))
		headerLen = 10
	}

	if _, err := w.Write(header[:headerLen]); err != nil {
		return errors.NewIOError("writing frame header", err)
	}

	if !masked {
		if n > 0 {
			if _, err := w.Write(payload); err != nil {
				return errors.NewIOError("writing frame payload", err)
			}
		}
		return nil
	}

	key := newMaskKey()
	if _, err := w.Write(key[:]); err != nil {
		return errors.NewIOError("writing frame mask key", err)
	}
	if n == 0 {
		return nil
	}
	masked_ := make([]byte, n)
	applyMask(masked_, payload, key)
	if _, err := w.Write(masked_); err != nil {
		return errors.NewIOError("writing masked payload", err)
	}
	return nil
}

func applyMask(dst, src []byte, key [4]byte) {
	for i := range src {
		dst[i] = src[i] ^ key[i%4]
	}
}

// readFrame reads one complete application message from r, transparently
// reassembling continuation fragments (RFC 6455 §5.4) up to maxSize bytes.
// Control frames interleaved between fragments are returned to the caller
// individually (the caller in websocket.go handles them before looping back
// for the next data fragment), except when a control frame arrives mid
// fragmented-message reassembly, in which case it is returned immediately
// and reassembly resumes on the next call.
func readFrame(r io.Reader, maxSize int64) (frame, error) {
	first, err := readRawFrame(r, maxSize)
	if err != nil {
		return frame{}, err
	}
	if first.opcode.isControl() || first.fin {
		return first, nil
	}

	// Fragmented data message: keep reading continuation frames.
	payload := first.payload
	msgOpcode := first.opcode
	for {
		next, err := readRawFrame(r, maxSize)
		if err != nil {
			return frame{}, err
		}
		if next.opcode.isControl() {
			// RFC 6455 allows control frames between fragments; surface it
			// and let the caller reply, then resume by reading again.
			return next, nil
		}
		if next.opcode != OpContinuation {
			return frame{}, errors.NewWebSocketError("recv", "expected continuation frame", nil)
		}
		payload = append(payload, next.payload...)
		if int64(len(payload)) > maxSize {
			return frame{}, &errFrameTooLarge{errors.NewWebSocketError("recv", "reassembled message exceeds max frame size", nil)}
		}
		if next.fin {
			return frame{fin: true, opcode: msgOpcode, payload: payload}, nil
		}
	}
}

func readRawFrame(r io.Reader, maxSize int64) (frame, error) {
	var head [2]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return frame{}, errors.NewWebSocketError("recv", "reading frame header", err)
	}

	fin := head[0]&0x80 != 0
	if head[0]&0x70 != 0 {
		return frame{}, errors.NewWebSocketError("recv", "reserved bits set without a negotiated extension", nil)
	}
	opcode := Opcode(head[0] & 0x0F)
	masked := head[1]&0x80 != 0
	if masked {
		return frame{}, errors.NewWebSocketError("recv", "server frame has MASK bit set", nil)
	}
	length := int64(head[1] & 0x7F)

	switch length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return frame{}, errors.NewWebSocketError("recv", "reading extended length", err)
		}
		length = int64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return frame{}, errors.NewWebSocketError("recv", "reading extended length", err)
		}
		length = int64(binary.BigEndian.Uint64(ext[:]))
		if length < 0 {
			return frame{}, errors.NewWebSocketError("recv", "invalid frame length", nil)
		}
	}

	if opcode.isControl() && length > 125 {
		return frame{}, errors.NewWebSocketError("recv", "control frame payload too large", nil)
	}
	if length > maxSize {
		return frame{}, &errFrameTooLarge{errors.NewWebSocketError("recv", "frame exceeds max frame size", nil)}
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return frame{}, errors.NewWebSocketError("recv", "reading frame payload", err)
		}
	}

	return frame{fin: fin, opcode: opcode, payload: payload}, nil
}
