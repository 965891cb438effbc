// Package cipher implements the stream cipher used on every message after
// handshake. It reproduces the target server's keystream generator exactly;
// it exists for wire compatibility, not for security.
package cipher

import "encoding/binary"

const tableSize = 521

// Cipher holds one direction's keystream state. Four independent instances
// back one session (client->proxy, proxy->client, server->proxy, proxy->server).
type Cipher struct {
	table  [tableSize]uint32
	cursor int
}

// New builds a cipher instance from a 32-bit seed, running the full key
// schedule against a 521-word table.
func New(seed uint32) *Cipher {
	c := &Cipher{}
	c.init(seed)
	return c
}

func (c *Cipher) init(seed uint32) {
	running := seed
	for round := 0; round < 17; round++ {
		var basekey uint32
		for i := 0; i < 32; i++ {
			running = running*0x5D588B65 + 1
			basekey >>= 1
			if running&0x80000000 != 0 {
				basekey |= 0x80000000
			}
		}
		c.table[round] = basekey
	}

	// Cursor backs up to 16 and table[16] is re-derived from the words just
	// produced, closing the short initial loop before the long fill below.
	c.table[16] = (c.table[0] >> 9) ^ (c.table[16] << 23) ^ c.table[15]

	// The unshifted reference is the immediately preceding word, not a
	// fixed 17-word lag: the two shifted terms walk 17 and 16 words behind
	// the word being produced.
	for i := 17; i < tableSize; i++ {
		c.table[i] = c.table[i-1] ^
			((c.table[i-17] << 23) & 0xFF800000) ^
			((c.table[i-16] >> 9) & 0x007FFFFF)
	}

	c.mix()
	c.mix()
	c.mix()
	c.cursor = tableSize - 1
}

// mix refreshes the table in place; it is re-run whenever the cursor wraps.
func (c *Cipher) mix() {
	c.cursor = 0
	for i := 489; i < tableSize; i++ {
		c.table[i-489] ^= c.table[i]
	}
	for i := 32; i < tableSize; i++ {
		c.table[i] ^= c.table[i-32]
	}
}

func (c *Cipher) nextWord() uint32 {
	c.cursor++
	if c.cursor == tableSize {
		c.mix()
		c.cursor = 0
	}
	return c.table[c.cursor]
}

// Clone returns an independent copy of the cipher's current state. The
// packet reader uses this to peek a frame's length from its (still
// encrypted) header without advancing the real keystream, then replays the
// decryption for real once the whole frame has arrived.
func (c *Cipher) Clone() *Cipher {
	cp := *c
	return &cp
}

// Process XORs the keystream onto buf in place. buf should be a multiple of
// 4 bytes; a trailing partial group, if present, is XORed against the low
// bytes of one additional keyword. The operation is involutive: decrypting
// ciphertext produced by an independent instance seeded the same way
// recovers the original bytes.
func (c *Cipher) Process(buf []byte) {
	n := len(buf)
	aligned := n - n%4
	var kb [4]byte

	i := 0
	for i < aligned {
		binary.LittleEndian.PutUint32(kb[:], c.nextWord())
		buf[i] ^= kb[0]
		buf[i+1] ^= kb[1]
		buf[i+2] ^= kb[2]
		buf[i+3] ^= kb[3]
		i += 4
	}

	if i < n {
		binary.LittleEndian.PutUint32(kb[:], c.nextWord())
		for j := 0; i+j < n; j++ {
			buf[i+j] ^= kb[j]
		}
	}
}
