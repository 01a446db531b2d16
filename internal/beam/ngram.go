package beam

import "encoding/binary"

// ngramCounter detects repeated n-grams. Its map and key buffer are reused
// between calls.
type ngramCounter struct {
	seen map[string]struct{}
	key  []byte
}

// repeats reports whether seq contains any n-gram of size 1..maxN more than
// once.
func (c *ngramCounter) repeats(seq []int, maxN int) bool {
	if c.seen == nil {
		c.seen = make(map[string]struct{})
	}
	for n := 1; n <= maxN && n <= len(seq); n++ {
		clear(c.seen)
		for i := 0; i+n <= len(seq); i++ {
			c.key = c.key[:0]
			for _, tok := range seq[i : i+n] {
				c.key = binary.AppendVarint(c.key, int64(tok))
			}
			if _, ok := c.seen[string(c.key)]; ok {
				return true
			}
			c.seen[string(c.key)] = struct{}{}
		}
	}
	return false
}
