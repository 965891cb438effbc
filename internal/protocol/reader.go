package protocol

import (
	"encoding/binary"

	"jx-relay/internal/cipher"
)

// Reader accumulates bytes from one direction of the connection and yields
// complete frames as they arrive. It implements a peek-before-consume
// pattern: the header is decrypted against a cloned cipher purely to learn
// the frame length, and the real cipher only advances once, over the whole
// frame, when it is fully present.
type Reader struct {
	cipher *cipher.Cipher
	buf    []byte
}

// NewReader creates a reader with no cipher installed; frames are passed
// through in cleartext until SetCipher is called (the handshake packet
// itself is always cleartext).
func NewReader() *Reader {
	return &Reader{}
}

// SetCipher installs (or clears, with nil) the ingress cipher for this leg.
// Called when the encryption-keys packet is observed, or when a redirect
// resets all four cipher slots.
func (r *Reader) SetCipher(c *cipher.Cipher) {
	r.cipher = c
}

// Feed appends newly read bytes from the socket.
func (r *Reader) Feed(data []byte) {
	r.buf = append(r.buf, data...)
}

// Next attempts to decode one frame from the accumulated buffer. It
// returns ok=false, consuming nothing, when fewer than the frame's
// declared length bytes are currently buffered — the caller retries on the
// next readiness event rather than blocking.
func (r *Reader) Next() (msg Message, ok bool) {
	if len(r.buf) < frameHeaderSize {
		return nil, false
	}

	header := append([]byte(nil), r.buf[:frameHeaderSize]...)
	if r.cipher != nil {
		r.cipher.Clone().Process(header)
	}
	length := int(binary.LittleEndian.Uint16(header[2:4]))
	if length < frameHeaderSize {
		// Malformed length; drop this byte and resync on the next call
		// rather than getting stuck forever.
		r.buf = r.buf[1:]
		return nil, false
	}
	if len(r.buf) < length {
		return nil, false
	}

	frame := append([]byte(nil), r.buf[:length]...)
	r.buf = r.buf[length:]
	if r.cipher != nil {
		r.cipher.Process(frame)
	}

	cmd, flag := frame[0], frame[1]
	body := frame[frameHeaderSize:]
	return Parse(cmd, flag, body), true
}
