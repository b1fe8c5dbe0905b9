// Copyright 2024 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpcore

import (
	"math"
	"math/rand"
	"sync/atomic"
	"time"
)

// IDGenerator hands out request-ids and msgIDs. Implementations must be safe
// for concurrent use.
type IDGenerator interface {
	NextRequestID() int32
	NextMessageID() int32
}

// counterIDGenerator increments two independent counters, wrapping within
// the positive int32 range.
type counterIDGenerator struct {
	requestID atomic.Uint32
	msgID     atomic.Uint32
}

// NewRandomIDGenerator returns a generator whose counters start at random
// points, so restarts do not reuse recent ids.
func NewRandomIDGenerator() IDGenerator {
	rng := rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec
	g := &counterIDGenerator{}
	g.requestID.Store(uint32(rng.Int31()))
	g.msgID.Store(uint32(rng.Int31()))
	return g
}

// NewSequentialIDGenerator returns a deterministic generator; the first ids
// handed out are start+1. Intended for tests.
func NewSequentialIDGenerator(start int32) IDGenerator {
	g := &counterIDGenerator{}
	g.requestID.Store(uint32(start)) //nolint:gosec
	g.msgID.Store(uint32(start))     //nolint:gosec
	return g
}

func (g *counterIDGenerator) NextRequestID() int32 {
	return next31(&g.requestID)
}

func (g *counterIDGenerator) NextMessageID() int32 {
	return next31(&g.msgID)
}

// next31 keeps ids in 1..2^31-1; msgID must be non-negative and zero is
// avoided since Reports may carry it.
func next31(c *atomic.Uint32) int32 {
	for {
		v := c.Add(1) & math.MaxInt32
		if v != 0 {
			return int32(v)
		}
	}
}
