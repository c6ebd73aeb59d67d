package registry

import "github.com/hostwatch/agent/internal/event"

const wordBits = 64

// bitmap is a fixed-size bitset, one bit per event.Type, used to
// answer "is this event type interesting?" in O(1) without a map
// lookup on the kernel-event hot path.
type bitmap struct {
	words []uint64
}

func newBitmap(size event.Type) bitmap {
	return bitmap{words: make([]uint64, (int(size)+wordBits-1)/wordBits)}
}

func (b bitmap) set(t event.Type) {
	if t < 0 {
		return
	}
	idx := int(t) / wordBits
	if idx >= len(b.words) {
		return
	}
	b.words[idx] |= 1 << (uint(t) % wordBits)
}

func (b bitmap) test(t event.Type) bool {
	if t < 0 {
		return false
	}
	idx := int(t) / wordBits
	if idx >= len(b.words) {
		return false
	}
	return b.words[idx]&(1<<(uint(t)%wordBits)) != 0
}

// or returns the bitwise union of b and other, sized to the larger of
// the two (in practice both are always built from the same
// event.MaxEventTypes, so they're always the same size).
func (b bitmap) or(other bitmap) bitmap {
	n := len(b.words)
	if len(other.words) > n {
		n = len(other.words)
	}
	out := bitmap{words: make([]uint64, n)}
	copy(out.words, b.words)
	for i, w := range other.words {
		out.words[i] |= w
	}
	return out
}
