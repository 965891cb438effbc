// Package protocol implements the outer packet codec: framing, the
// decryption boundary, and parse/serialize for the recognized outer
// message tags.
package protocol

// Outer command tags.
const (
	CmdChat            byte = 0x06
	CmdEncryptionKeys1 byte = 0x02
	CmdEncryptionKeys2 byte = 0x17
	CmdRedirect        byte = 0x19
	CmdGameCommand     byte = 0x60
	CmdPlayerInventory byte = 0x61
	CmdAllowDeny       byte = 0x9A
	CmdPlayerInfo      byte = 0x9E

	frameHeaderSize = 4
)

// Message is the tagged variant produced by Parse and consumed by Serialize.
// Every concrete type below is one recognized outer packet shape.
type Message interface {
	// Cmd returns the outer tag this message serializes under.
	Cmd() byte
}

// ChatMessage carries a sender id plus tab-delimited name and text.
type ChatMessage struct {
	Flag     byte
	SenderID uint32
	Name     string
	Text     string
}

func (m *ChatMessage) Cmd() byte { return CmdChat }

// EncryptionKeysMessage is the handshake packet that seeds all four cipher
// legs. It is always transmitted in cleartext.
type EncryptionKeysMessage struct {
	// OuterCmd records which of the two aliased tags (0x02 or 0x17) this
	// instance round-trips as; both are treated identically per spec.
	OuterCmd   byte
	Flag0      byte
	Banner     [0x40]byte
	ServerSeed uint32
	ClientSeed uint32
	Remainder  []byte
}

func (m *EncryptionKeysMessage) Cmd() byte { return m.OuterCmd }

// RedirectMessage tells the client to reconnect elsewhere.
type RedirectMessage struct {
	Flag byte
	IP   [4]byte
	Port uint16
}

func (m *RedirectMessage) Cmd() byte { return CmdRedirect }

// GameCommandMessage carries an inner game-command payload (component C3)
// opaque to this codec; the body bytes are handed to the gamecommand
// package for further parsing.
type GameCommandMessage struct {
	Flag byte
	Body []byte
}

func (m *GameCommandMessage) Cmd() byte { return CmdGameCommand }

// OpaqueMessage is used for tags the pipeline wants to reach into by name
// (inventory, player info) but whose body this codec does not decompose:
// retained as opaque bytes but tagged.
type OpaqueMessage struct {
	Tag  byte
	Flag byte
	Body []byte
}

func (m *OpaqueMessage) Cmd() byte { return m.Tag }

// AllowDenyMessage conveys an access decision in its flag byte.
type AllowDenyMessage struct {
	Allow bool
	Body  []byte
}

func (m *AllowDenyMessage) Cmd() byte { return CmdAllowDeny }

// RawMessage preserves an unrecognized tag's bytes verbatim, and is also
// the degrade-to target for any recognized tag whose body turns out to be
// malformed: the codec never errors on content.
type RawMessage struct {
	Tag  byte
	Flag byte
	Body []byte
}

func (m *RawMessage) Cmd() byte { return m.Tag }
