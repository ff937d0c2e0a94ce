/*
   xipki - Certificate Authority state store
   Copyright (C) 2024  The xipki authors

   This program is free software: you can redistribute it and/or modify
   it under the terms of the GNU Affero General Public License as published by
   the Free Software Foundation, version 3.

   This program is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
   GNU Affero General Public License for more details.

   You should have received a copy of the GNU Affero General Public License
   along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package idgen allocates 63-bit ids that are unique across processes
// sharing one database, without coordination through the database
// itself. An id packs a millisecond timestamp, a per-process shard and
// a sequence: 41 bits time, 10 bits shard, 12 bits sequence.
package idgen

import (
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	// offsetMillis is 2021-01-01T00:00:00Z; ids stay positive until
	// roughly 2090.
	offsetMillis = 1609459200000

	shardBits    = 10
	sequenceBits = 12

	maxShard    = 1<<shardBits - 1
	maxSequence = 1<<sequenceBits - 1
)

// ShardEnv names the environment variable the shard id is read from.
// Unset or unparsable means shard 0.
const ShardEnv = "XIPKI_SHARD_ID"

// ShardFromEnv reads the shard id from the environment.
func ShardFromEnv() int {
	v := os.Getenv(ShardEnv)
	if v == "" {
		return 0
	}
	shard, err := strconv.Atoi(v)
	if err != nil || shard < 0 || shard > maxShard {
		return 0
	}
	return shard
}

// Generator allocates ids. Safe for concurrent use.
type Generator struct {
	shard int64

	mu     sync.Mutex
	lastMs int64
	seq    int64
}

// New returns a Generator for the given shard. Processes writing to
// the same database must use distinct shards.
func New(shard int) (*Generator, error) {
	if shard < 0 || shard > maxShard {
		return nil, errors.Errorf("shard %d out of range [0, %d]", shard, maxShard)
	}
	return &Generator{shard: int64(shard)}, nil
}

// NextID returns the next id. Ids from one Generator are strictly
// increasing. When the sequence for the current millisecond is
// exhausted, or the clock has moved backwards, NextID waits for the
// clock to advance.
func (g *Generator) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := nowMillis()
	if now < g.lastMs {
		now = g.waitUntil(g.lastMs)
	}
	if now == g.lastMs {
		g.seq++
		if g.seq > maxSequence {
			now = g.waitUntil(g.lastMs + 1)
			g.seq = 0
		}
	} else {
		g.seq = 0
	}
	g.lastMs = now

	id := (now-offsetMillis)<<(shardBits+sequenceBits) |
		g.shard<<sequenceBits | g.seq
	return id, nil
}

func (g *Generator) waitUntil(ms int64) int64 {
	for {
		now := nowMillis()
		if now >= ms {
			return now
		}
		time.Sleep(time.Duration(ms-now) * time.Millisecond)
	}
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
