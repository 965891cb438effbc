// Package session holds the single mutable record owned by the event loop:
// socket handles, the four per-direction ciphers, and the player state the
// filter pipeline reads and updates.
package session

import (
	"fmt"
	"net"

	"jx-relay/internal/cipher"
)

// Position is the player's last-known world coordinates.
type Position struct {
	X, Y, Z float32
}

// State is the proxy's only piece of shared mutable state. It is owned
// exclusively by the event-loop goroutine; no field is ever accessed
// concurrently, so no locking is required (spec section 5).
type State struct {
	ClientConn net.Conn
	ServerConn net.Conn
	Listener   net.Listener

	// The four cipher legs: client ingress, client egress, server ingress,
	// server egress. All four are installed together on handshake and
	// cleared together on redirect — see AllCiphersPresent.
	ClientIngress *cipher.Cipher
	ClientEgress  *cipher.Cipher
	ServerIngress *cipher.Cipher
	ServerEgress  *cipher.Cipher

	Position Position
	Floor    uint32

	Inventory   []InventorySlot
	itemDropSeq uint32
}

// initialItemDropID matches the upstream client's own starting counter
// value, so synthesized drops don't collide with the client's early ids.
const initialItemDropID = 0x11223344

// InventorySlot is one item observed in a PlayerInventory packet.
type InventorySlot struct {
	Slot  int
	Row1  uint32 // the item's encoded row1, used to recognize its family/type
	Stack uint8
}

// New returns an empty session with no sockets or ciphers installed.
func New() *State {
	return &State{itemDropSeq: initialItemDropID}
}

// AllCiphersPresent reports whether every cipher leg is installed. Spec
// section 7 treats some-but-not-all as a programming error the caller
// should assert against.
func (s *State) AllCiphersPresent() bool {
	return s.ClientIngress != nil && s.ClientEgress != nil &&
		s.ServerIngress != nil && s.ServerEgress != nil
}

// NoCiphersPresent reports whether every cipher leg is cleared.
func (s *State) NoCiphersPresent() bool {
	return s.ClientIngress == nil && s.ClientEgress == nil &&
		s.ServerIngress == nil && s.ServerEgress == nil
}

// AssertCipherInvariant panics if the four cipher legs are in a mixed
// present/absent state, which the spec calls a programming error rather
// than a recoverable runtime condition.
func (s *State) AssertCipherInvariant() {
	if !s.AllCiphersPresent() && !s.NoCiphersPresent() {
		panic(fmt.Sprintf("session: cipher invariant broken: client(%v,%v) server(%v,%v)",
			s.ClientIngress != nil, s.ClientEgress != nil,
			s.ServerIngress != nil, s.ServerEgress != nil))
	}
}

// InstallCiphers seeds all four legs from a client seed and a server seed,
// as observed in the handshake's encryption-keys packet.
func (s *State) InstallCiphers(clientSeed, serverSeed uint32) {
	s.ClientIngress = cipher.New(clientSeed)
	s.ServerEgress = cipher.New(clientSeed)
	s.ServerIngress = cipher.New(serverSeed)
	s.ClientEgress = cipher.New(serverSeed)
}

// ClearCiphers drops all four legs, e.g. on redirect handoff.
func (s *State) ClearCiphers() {
	s.ClientIngress = nil
	s.ClientEgress = nil
	s.ServerIngress = nil
	s.ServerEgress = nil
}

// NextItemDropID draws the next value from the session-scoped item-drop
// counter; both the client-bound and server-bound copies of a synthesized
// drop must share one draw (spec section 4.7).
func (s *State) NextItemDropID() uint32 {
	s.itemDropSeq++
	return s.itemDropSeq
}

// UpdatePosition records a new position, used by the position tracker.
func (s *State) UpdatePosition(p Position) {
	s.Position = p
}

// UpdateFloor records a new floor/area id.
func (s *State) UpdateFloor(floor uint32) {
	s.Floor = floor
}

// SetInventory replaces the tracked inventory snapshot.
func (s *State) SetInventory(slots []InventorySlot) {
	s.Inventory = slots
}

// StackOf returns the current stack count for a slot's item, or 0 if the
// slot holds nothing tracked (unknown encodings are skipped per spec
// section 4.5, so their absence here is expected, not an error).
func (s *State) StackOf(slot int) uint8 {
	for _, inv := range s.Inventory {
		if inv.Slot == slot {
			return inv.Stack
		}
	}
	return 0
}
