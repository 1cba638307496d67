// Package idem memoizes transactional AIC responses by (agentId, txId) so
// retries observe the same final state as a single call. A claim is held
// while the first request executes, so a concurrent retry of the same
// txId can never run the intent twice. The cache is process-wide and
// sharded by agent id.
package idem

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 16

// Record is one memoized response.
type Record struct {
	TxID      string
	AgentID   string
	Digest    string
	Result    json.RawMessage
	CreatedMs int64
}

// State is the outcome of Acquire.
type State int

const (
	// StateRun means the caller owns the claim and must finish with Store
	// on success or Release on failure.
	StateRun State = iota
	// StateReplay means a finished record exists; return its bytes
	// verbatim.
	StateReplay
	// StateConflict means the txId was seen with a different body digest.
	StateConflict
	// StateInFlight means another request holds the claim right now.
	StateInFlight
)

type shard struct {
	mu       sync.Mutex
	records  map[string]*Record // agentID+"/"+txID
	inflight map[string]string  // same key → body digest
}

// Cache holds records for a fixed TTL; expired entries behave as absent.
type Cache struct {
	shards [shardCount]*shard
	ttl    time.Duration
	now    func() time.Time
}

// NewCache builds a cache with the given TTL (default 10 minutes).
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	c := &Cache{ttl: ttl, now: time.Now}
	for i := range c.shards {
		c.shards[i] = &shard{
			records:  make(map[string]*Record),
			inflight: make(map[string]string),
		}
	}
	return c
}

// Digest hashes a request body for conflict detection.
func Digest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func (c *Cache) shardFor(agentID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(agentID))
	return c.shards[h.Sum32()%shardCount]
}

// Acquire claims (agentId, txId) for execution. Exactly one concurrent
// caller gets StateRun; everyone else replays the finished record, fails
// on a digest mismatch, or is told the original is still in flight.
// Expired records are treated as fresh and evicted.
func (c *Cache) Acquire(agentID, txID, digest string) (*Record, State) {
	sh := c.shardFor(agentID)
	key := agentID + "/" + txID
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if r, ok := sh.records[key]; ok {
		if c.now().UnixMilli()-r.CreatedMs > c.ttl.Milliseconds() {
			delete(sh.records, key)
		} else if r.Digest != digest {
			return nil, StateConflict
		} else {
			return r, StateReplay
		}
	}
	if d, held := sh.inflight[key]; held {
		if d != digest {
			return nil, StateConflict
		}
		return nil, StateInFlight
	}
	sh.inflight[key] = digest
	return nil, StateRun
}

// Release abandons a claim without memoizing anything, so the client may
// retry the same txId after a failure.
func (c *Cache) Release(agentID, txID string) {
	sh := c.shardFor(agentID)
	sh.mu.Lock()
	delete(sh.inflight, agentID+"/"+txID)
	sh.mu.Unlock()
}

// Store memoizes the response and drops the in-flight claim. It also
// prunes the shard's expired entries while it holds the lock.
func (c *Cache) Store(agentID, txID, digest string, result json.RawMessage) {
	sh := c.shardFor(agentID)
	key := agentID + "/" + txID
	nowMs := c.now().UnixMilli()
	sh.mu.Lock()
	defer sh.mu.Unlock()
	for k, r := range sh.records {
		if nowMs-r.CreatedMs > c.ttl.Milliseconds() {
			delete(sh.records, k)
		}
	}
	delete(sh.inflight, key)
	sh.records[key] = &Record{
		TxID:      txID,
		AgentID:   agentID,
		Digest:    digest,
		Result:    result,
		CreatedMs: nowMs,
	}
}
