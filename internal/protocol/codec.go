package protocol

import (
	"bytes"
	"encoding/binary"
)

// Parse dispatches a decrypted frame (cmd, flag, body — not including the
// 4-byte header) to the matching variant. It never errors: a recognized
// tag whose body is too short or otherwise malformed degrades to
// RawMessage, preserving the original bytes.
func Parse(cmd, flag byte, body []byte) Message {
	switch cmd {
	case CmdChat:
		if msg, ok := parseChat(flag, body); ok {
			return msg
		}
	case CmdEncryptionKeys1, CmdEncryptionKeys2:
		if msg, ok := parseEncryptionKeys(cmd, flag, body); ok {
			return msg
		}
	case CmdRedirect:
		if msg, ok := parseRedirect(flag, body); ok {
			return msg
		}
	case CmdGameCommand:
		return &GameCommandMessage{Flag: flag, Body: append([]byte(nil), body...)}
	case CmdPlayerInventory, CmdPlayerInfo:
		return &OpaqueMessage{Tag: cmd, Flag: flag, Body: append([]byte(nil), body...)}
	case CmdAllowDeny:
		return &AllowDenyMessage{Allow: flag != 0, Body: append([]byte(nil), body...)}
	}
	return &RawMessage{Tag: cmd, Flag: flag, Body: append([]byte(nil), body...)}
}

func parseChat(flag byte, body []byte) (*ChatMessage, bool) {
	if len(body) < 4 {
		return nil, false
	}
	senderID := binary.LittleEndian.Uint32(body[0:4])
	rest := body[4:]
	parts := bytes.SplitN(rest, []byte("\t"), 2)
	if len(parts) != 2 {
		return nil, false
	}
	name := string(bytes.TrimRight(parts[0], "\x00"))
	text := string(bytes.TrimRight(parts[1], "\x00"))
	return &ChatMessage{Flag: flag, SenderID: senderID, Name: name, Text: text}, true
}

func parseEncryptionKeys(cmd, flag byte, body []byte) (*EncryptionKeysMessage, bool) {
	const bannerLen = 0x40
	if len(body) < bannerLen+8 {
		return nil, false
	}
	msg := &EncryptionKeysMessage{OuterCmd: cmd, Flag0: flag}
	copy(msg.Banner[:], body[:bannerLen])
	msg.ServerSeed = binary.LittleEndian.Uint32(body[bannerLen : bannerLen+4])
	msg.ClientSeed = binary.LittleEndian.Uint32(body[bannerLen+4 : bannerLen+8])
	msg.Remainder = append([]byte(nil), body[bannerLen+8:]...)
	return msg, true
}

func parseRedirect(flag byte, body []byte) (*RedirectMessage, bool) {
	if len(body) < 8 {
		return nil, false
	}
	msg := &RedirectMessage{Flag: flag}
	copy(msg.IP[:], body[0:4])
	msg.Port = binary.LittleEndian.Uint16(body[4:6])
	return msg, true
}

// Serialize writes a message's canonical body, computes the frame length,
// and returns the full header+body frame. Bodies that are not naturally
// 4-byte aligned are zero-padded so the emitted frame is a whole number of
// 4-byte words.
func Serialize(msg Message) []byte {
	body := serializeBody(msg)
	for len(body)%4 != 0 {
		body = append(body, 0)
	}

	frame := make([]byte, frameHeaderSize+len(body))
	frame[0] = msg.Cmd()
	frame[1] = flagOf(msg)
	binary.LittleEndian.PutUint16(frame[2:4], uint16(len(frame)))
	copy(frame[frameHeaderSize:], body)
	return frame
}

func flagOf(msg Message) byte {
	switch m := msg.(type) {
	case *ChatMessage:
		return m.Flag
	case *EncryptionKeysMessage:
		return m.Flag0
	case *RedirectMessage:
		return m.Flag
	case *GameCommandMessage:
		return m.Flag
	case *OpaqueMessage:
		return m.Flag
	case *AllowDenyMessage:
		if m.Allow {
			return 1
		}
		return 0
	case *RawMessage:
		return m.Flag
	default:
		return 0
	}
}

func serializeBody(msg Message) []byte {
	switch m := msg.(type) {
	case *ChatMessage:
		buf := new(bytes.Buffer)
		var idBytes [4]byte
		binary.LittleEndian.PutUint32(idBytes[:], m.SenderID)
		buf.Write(idBytes[:])
		buf.WriteString(m.Name)
		buf.WriteByte('\t')
		buf.WriteString(m.Text)
		return buf.Bytes()
	case *EncryptionKeysMessage:
		buf := new(bytes.Buffer)
		buf.Write(m.Banner[:])
		var seedBytes [4]byte
		binary.LittleEndian.PutUint32(seedBytes[:], m.ServerSeed)
		buf.Write(seedBytes[:])
		binary.LittleEndian.PutUint32(seedBytes[:], m.ClientSeed)
		buf.Write(seedBytes[:])
		buf.Write(m.Remainder)
		return buf.Bytes()
	case *RedirectMessage:
		buf := make([]byte, 8)
		copy(buf[0:4], m.IP[:])
		binary.LittleEndian.PutUint16(buf[4:6], m.Port)
		// bytes 6:8 are the fixed zero padding field.
		return buf
	case *GameCommandMessage:
		return m.Body
	case *OpaqueMessage:
		return m.Body
	case *AllowDenyMessage:
		return m.Body
	case *RawMessage:
		return m.Body
	default:
		return nil
	}
}
