package shadercache

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Key identifies a compiled program: the compiler and the source of each stage.
type Key [blake2b.Size256]byte

// KeyFor hashes compiler and the stage sources in order. Sources are
// length-prefixed so ("ab", "c") and ("a", "bc") differ.
func KeyFor(compiler string, sources ...string) Key {
	h, err := blake2b.New256(nil)
	if err != nil {
		// Only fails for oversized keys; nil is always valid.
		panic(err)
	}
	var n [8]byte
	write := func(s string) {
		binary.LittleEndian.PutUint64(n[:], uint64(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	write(compiler)
	for _, s := range sources {
		write(s)
	}
	var k Key
	h.Sum(k[:0])
	return k
}

// String returns the key as hex.
func (k Key) String() string { return hex.EncodeToString(k[:]) }

// ParseKey parses a hex key.
func ParseKey(s string) (Key, error) {
	var k Key
	b, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("shadercache: parse key: %w", err)
	}
	if len(b) != len(k) {
		return k, fmt.Errorf("shadercache: parse key: %d bytes, want %d", len(b), len(k))
	}
	copy(k[:], b)
	return k, nil
}

// shard picks a cache shard for k.
func (k Key) shard() uint64 { return binary.LittleEndian.Uint64(k[:8]) }
