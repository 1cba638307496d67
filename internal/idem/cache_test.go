package idem

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayReturnsStoredBytes(t *testing.T) {
	c := NewCache(time.Minute)
	body := []byte(`{"dest":{"tx":5,"ty":5}}`)
	digest := Digest(body)

	rec, state := c.Acquire("agt_a", "tx_11111111", digest)
	assert.Nil(t, rec)
	assert.Equal(t, StateRun, state)

	stored := json.RawMessage(`{"ok":true,"result":{"outcome":"accepted"}}`)
	c.Store("agt_a", "tx_11111111", digest, stored)

	rec, state = c.Acquire("agt_a", "tx_11111111", digest)
	require.NotNil(t, rec)
	assert.Equal(t, StateReplay, state)
	assert.Equal(t, stored, rec.Result, "replay must be byte-identical")
}

func TestConflictOnDifferentBody(t *testing.T) {
	c := NewCache(time.Minute)
	c.Store("agt_a", "tx_11111111", Digest([]byte(`{"a":1}`)), json.RawMessage(`{}`))

	rec, state := c.Acquire("agt_a", "tx_11111111", Digest([]byte(`{"a":2}`)))
	assert.Nil(t, rec)
	assert.Equal(t, StateConflict, state, "same txId with a different body is a conflict")
}

func TestAcquireGuardsInFlight(t *testing.T) {
	c := NewCache(time.Minute)
	digest := Digest([]byte(`x`))

	_, state := c.Acquire("agt_a", "tx_11111111", digest)
	require.Equal(t, StateRun, state)

	// A concurrent duplicate neither runs nor replays until the holder
	// finishes.
	_, state = c.Acquire("agt_a", "tx_11111111", digest)
	assert.Equal(t, StateInFlight, state)

	// A different body against a held claim is a conflict.
	_, state = c.Acquire("agt_a", "tx_11111111", Digest([]byte(`y`)))
	assert.Equal(t, StateConflict, state)

	// Release frees the claim after a failed attempt.
	c.Release("agt_a", "tx_11111111")
	_, state = c.Acquire("agt_a", "tx_11111111", digest)
	assert.Equal(t, StateRun, state)

	// Store finishes the claim and later acquires replay.
	c.Store("agt_a", "tx_11111111", digest, json.RawMessage(`{}`))
	rec, state := c.Acquire("agt_a", "tx_11111111", digest)
	assert.Equal(t, StateReplay, state)
	assert.NotNil(t, rec)
}

func TestKeysScopedPerAgent(t *testing.T) {
	c := NewCache(time.Minute)
	c.Store("agt_a", "tx_11111111", Digest([]byte(`x`)), json.RawMessage(`{}`))

	rec, state := c.Acquire("agt_b", "tx_11111111", Digest([]byte(`y`)))
	assert.Nil(t, rec)
	assert.Equal(t, StateRun, state, "another agent's txId namespace is independent")
}

func TestExpiredRecordTreatedAsFresh(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	digest := Digest([]byte(`x`))
	c.Store("agt_a", "tx_11111111", digest, json.RawMessage(`{}`))

	// Even a different body is no conflict once the record expired.
	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	rec, state := c.Acquire("agt_a", "tx_11111111", Digest([]byte(`y`)))
	assert.Nil(t, rec)
	assert.Equal(t, StateRun, state)
}

func TestStorePrunesExpired(t *testing.T) {
	c := NewCache(time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	c.Store("agt_a", "tx_11111111", Digest([]byte(`x`)), json.RawMessage(`{}`))

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	c.Store("agt_a", "tx_22222222", Digest([]byte(`y`)), json.RawMessage(`{}`))

	rec, state := c.Acquire("agt_a", "tx_22222222", Digest([]byte(`y`)))
	assert.NotNil(t, rec)
	assert.Equal(t, StateReplay, state)
	rec, state = c.Acquire("agt_a", "tx_11111111", Digest([]byte(`x`)))
	assert.Nil(t, rec)
	assert.Equal(t, StateRun, state)
}

func TestDigestStable(t *testing.T) {
	assert.Equal(t, Digest([]byte(`abc`)), Digest([]byte(`abc`)))
	assert.NotEqual(t, Digest([]byte(`abc`)), Digest([]byte(`abd`)))
	assert.Len(t, Digest(nil), 64)
}
