// Package session tracks agent registrations and bearer tokens. The store
// is process-wide and sharded by agent id so hot paths never contend on a
// single lock.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"hash/fnv"
	"sync"
	"time"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrBadToken  = errors.New("session token mismatch")
	ErrWrongRoom = errors.New("session bound to another room")
)

const shardCount = 16

// Session binds an agent to a room for the lifetime of its token. Name is
// kept so a reconnect can respawn the entity under its registered name.
type Session struct {
	AgentID         string
	RoomID          string
	EntityID        string
	Name            string
	Token           string
	LastHeartbeatMs int64
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session // agentID → session
}

// Store is the sharded session map.
type Store struct {
	shards [shardCount]*shard
	now    func() time.Time
}

func NewStore() *Store {
	s := &Store{now: time.Now}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]*Session)}
	}
	return s
}

func (s *Store) shardFor(agentID string) *shard {
	h := fnv.New32a()
	h.Write([]byte(agentID))
	return s.shards[h.Sum32()%shardCount]
}

// NewToken returns an opaque bearer token: 16 random bytes, hex-encoded.
func NewToken() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err) // crypto/rand failure is unrecoverable
	}
	return "tok_" + hex.EncodeToString(b[:])
}

// Put stores a session, replacing any prior one for the agent.
func (s *Store) Put(sess *Session) {
	sh := s.shardFor(sess.AgentID)
	sh.mu.Lock()
	sh.sessions[sess.AgentID] = sess
	sh.mu.Unlock()
}

// Get returns a copy of the agent's session.
func (s *Store) Get(agentID string) (Session, bool) {
	sh := s.shardFor(agentID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	sess, ok := sh.sessions[agentID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// Authenticate validates a bearer token against the stored (agent, room)
// binding.
func (s *Store) Authenticate(agentID, roomID, token string) error {
	sh := s.shardFor(agentID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	sess, ok := sh.sessions[agentID]
	if !ok {
		return ErrNotFound
	}
	if sess.Token != token {
		return ErrBadToken
	}
	if sess.RoomID != roomID {
		return ErrWrongRoom
	}
	return nil
}

// Touch advances the heartbeat clock. Called on explicit heartbeat and on
// every successfully authenticated request.
func (s *Store) Touch(agentID string) {
	sh := s.shardFor(agentID)
	sh.mu.Lock()
	if sess, ok := sh.sessions[agentID]; ok {
		sess.LastHeartbeatMs = s.now().UnixMilli()
	}
	sh.mu.Unlock()
}

// Remove drops the agent's session.
func (s *Store) Remove(agentID string) {
	sh := s.shardFor(agentID)
	sh.mu.Lock()
	delete(sh.sessions, agentID)
	sh.mu.Unlock()
}

// Sweep drops sessions idle longer than maxIdle and reports how many
// went. An entity timing out of its room keeps its session so the agent
// can reconnect and respawn; this sweep is what finally ends it.
func (s *Store) Sweep(maxIdle time.Duration) int {
	cutoff := s.now().UnixMilli() - maxIdle.Milliseconds()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, sess := range sh.sessions {
			if sess.LastHeartbeatMs < cutoff {
				delete(sh.sessions, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// LastHeartbeatMs returns the agent's last heartbeat, or 0.
func (s *Store) LastHeartbeatMs(agentID string) int64 {
	sh := s.shardFor(agentID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	if sess, ok := sh.sessions[agentID]; ok {
		return sess.LastHeartbeatMs
	}
	return 0
}
