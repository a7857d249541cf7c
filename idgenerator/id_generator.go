// Package idgenerator hands out session identifiers.
package idgenerator

import "sync/atomic"

// IdGenerator generates increasing uint32 IDs in a concurrency-safe manner.
// Zero is never returned, so it can stand for "no ID"; on wraparound the
// counter skips it.
type IdGenerator struct {
	id atomic.Uint32
}

// NewIdGenerator creates an IdGenerator whose first Id is startValue+1
// (or 1 when that would be zero).
//
// Parameters:
//   - startValue: The value to initialize the counter to
//
// Returns:
//   - A new IdGenerator instance
func NewIdGenerator(startValue uint32) *IdGenerator {
	gen := &IdGenerator{}
	gen.id.Store(startValue)
	return gen
}

// Id returns the next ID.
func (g *IdGenerator) Id() uint32 {
	for {
		if id := g.id.Add(1); id != 0 {
			return id
		}
	}
}
