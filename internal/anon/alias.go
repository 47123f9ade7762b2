// Package anon derives the pseudonyms authors are shown under. A user keeps
// one alias inside a thread and gets an unrelated one in every other thread.
package anon

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

var adjectives = []string{
	"amber", "brisk", "calm", "dusky", "eager", "faint", "gentle", "hollow",
	"idle", "jade", "keen", "lunar", "misty", "nimble", "olive", "pale",
	"quiet", "russet", "silver", "tawny", "umber", "velvet", "wistful", "young",
}

var animals = []string{
	"badger", "crane", "dormouse", "egret", "fox", "gecko", "heron", "ibis",
	"jackal", "kestrel", "lynx", "marten", "newt", "otter", "plover", "quail",
	"raven", "stoat", "tern", "urchin", "vole", "wren", "yak", "zebu",
}

// Namer computes aliases with a server secret so they cannot be reversed
// into user ids by enumerating threads.
type Namer struct {
	key []byte
}

// NewNamer keys a Namer with secret. Secrets longer than a blake2b key are
// hashed down first.
func NewNamer(secret string) *Namer {
	key := []byte(secret)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	return &Namer{key: key}
}

// Alias returns the name userID appears under in the thread rooted at postID.
func (n *Namer) Alias(postID, userID uint) string {
	h, err := blake2b.New256(n.key)
	if err != nil {
		// Only reachable with an oversized key, which NewNamer prevents.
		panic(err)
	}
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(postID))
	binary.BigEndian.PutUint64(buf[8:], uint64(userID))
	_, _ = h.Write(buf[:])
	sum := h.Sum(nil)

	adj := adjectives[int(sum[0])%len(adjectives)]
	animal := animals[int(sum[1])%len(animals)]
	suffix := binary.BigEndian.Uint16(sum[2:4]) % 100
	return fmt.Sprintf("%s-%s-%02d", adj, animal, suffix)
}
