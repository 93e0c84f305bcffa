package client

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lensbridge/camlink/logx"
	"github.com/lensbridge/camlink/protocol"
)

func TestPendingRegisterAssignsIncreasingIDs(t *testing.T) {
	r := newPendingRegistry(logx.NewNilLogger())

	a := r.register("ping")
	b := r.register("list-devices")
	c := r.register("ping")

	assert.Equal(t, int64(1), a.id)
	assert.Equal(t, int64(2), b.id)
	assert.Equal(t, int64(3), c.id)
	assert.Equal(t, 3, r.size())
}

func TestPendingResolveOutOfOrder(t *testing.T) {
	r := newPendingRegistry(logx.NewNilLogger())

	a := r.register("get-device-status")
	b := r.register("list-recordings")
	c := r.register("ping")

	// Responses arrive C, A, B; each must reach its own caller.
	require.True(t, r.resolve(c.id, &protocol.Response{ID: c.id, Result: "c"}))
	require.True(t, r.resolve(a.id, &protocol.Response{ID: a.id, Result: "a"}))
	require.True(t, r.resolve(b.id, &protocol.Response{ID: b.id, Result: "b"}))

	assert.Equal(t, "a", (<-a.done).resp.Result)
	assert.Equal(t, "b", (<-b.done).resp.Result)
	assert.Equal(t, "c", (<-c.done).resp.Result)
	assert.Equal(t, 0, r.size())
}

func TestPendingResolveUnknownIDIsDropped(t *testing.T) {
	r := newPendingRegistry(logx.NewNilLogger())

	assert.False(t, r.resolve(99, &protocol.Response{ID: 99}))

	// A removed call's late response is also dropped.
	pc := r.register("ping")
	r.remove(pc.id)
	assert.False(t, r.resolve(pc.id, &protocol.Response{ID: pc.id}))
	assert.Empty(t, pc.done)
}

func TestPendingRemoveLeavesOthersIntact(t *testing.T) {
	r := newPendingRegistry(logx.NewNilLogger())

	a := r.register("ping")
	b := r.register("ping")
	r.remove(a.id)

	assert.False(t, r.has(a.id))
	assert.True(t, r.has(b.id))
	assert.Equal(t, 1, r.size())
}

func TestPendingFailAll(t *testing.T) {
	r := newPendingRegistry(logx.NewNilLogger())

	a := r.register("ping")
	b := r.register("list-devices")

	cause := errors.New("connection lost")
	r.failAll(cause)

	for _, pc := range []*pendingCall{a, b} {
		res := <-pc.done
		assert.Nil(t, res.resp)
		assert.Equal(t, cause, res.err)
	}
	assert.Equal(t, 0, r.size())

	// Registry stays usable after a wipe.
	c := r.register("ping")
	assert.Equal(t, int64(3), c.id)
}
