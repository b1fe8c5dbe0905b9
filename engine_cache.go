// Copyright 2023 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package snmpcore

import (
	"sync"
)

// EngineCache maps agent addresses to the engine parameters discovered for
// them, so later exchanges can skip discovery.
type EngineCache struct {
	table  map[string]EngineParams
	Logger Logger
	mu     sync.RWMutex
}

func NewEngineCache(logger Logger) *EngineCache {
	return &EngineCache{
		table:  make(map[string]EngineParams),
		Logger: logger,
	}
}

// Add stores e for key, replacing what was there.
func (c *EngineCache) Add(key string, e EngineParams) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.table[key] = e
	c.Logger.Printf("Added engine %s for key: %s", e, key)
}

func (c *EngineCache) Get(key string) (EngineParams, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.table[key]
	return e, ok
}

// Delete forgets key, eg after the agent reports an unknown engine id.
func (c *EngineCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.table, key)
}

// ApplyTo copies the parameters cached for key into sp and, when it names
// none, the context engine ID of scope. It reports whether key was cached.
func (c *EngineCache) ApplyTo(key string, sp *UsmSecurityParameters, scope *Scope) bool {
	e, ok := c.Get(key)
	if !ok {
		return false
	}
	sp.SetEngine(e)
	if scope != nil && scope.ContextEngineID == "" {
		scope.ContextEngineID = e.EngineID
	}
	return true
}
