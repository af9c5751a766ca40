package session

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeConn(t *testing.T) net.Conn {
	t.Helper()
	local, remote := net.Pipe()
	t.Cleanup(func() {
		local.Close()
		remote.Close()
	})
	return local
}

func TestAddAndGet(t *testing.T) {
	r := NewRegistry()
	conn := pipeConn(t)

	r.Add("c1", conn, 50001, nil)

	assert.True(t, r.Has("c1"))
	assert.True(t, r.HasPeer(50001))

	s, ok := r.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "c1", s.ClientID)
	assert.Equal(t, uint16(50001), s.Peer)
	assert.Same(t, conn, s.Conn)
}

func TestClientIDByPeer(t *testing.T) {
	r := NewRegistry()
	r.Add("c1", pipeConn(t), 50001, nil)

	clientID, err := r.ClientIDByPeer(50001)
	require.NoError(t, err)
	assert.Equal(t, "c1", clientID)

	_, err = r.ClientIDByPeer(50002)
	assert.Error(t, err)
}

func TestDeleteClearsPeerIndex(t *testing.T) {
	r := NewRegistry()
	r.Add("c1", pipeConn(t), 50001, nil)

	r.Delete("c1")

	_, ok := r.Get("c1")
	assert.False(t, ok)
	assert.False(t, r.HasPeer(50001))
}

func TestReplaceConnSwapsPeerIndexAtomically(t *testing.T) {
	r := NewRegistry()
	lwt := &LastWill{Topic: "status/c1", Payload: []byte("down")}
	r.Add("c1", pipeConn(t), 50001, lwt)

	newConn := pipeConn(t)
	require.NoError(t, r.ReplaceConn("c1", newConn, 50002))

	assert.False(t, r.HasPeer(50001))
	assert.True(t, r.HasPeer(50002))

	s, ok := r.Get("c1")
	require.True(t, ok)
	assert.Same(t, newConn, s.Conn)
	assert.Equal(t, lwt, s.LastWill, "last will survives a reconnect")
}

func TestReplaceConnUnknownClient(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.ReplaceConn("ghost", pipeConn(t), 50001))
}

func TestOldPeer(t *testing.T) {
	r := NewRegistry()
	r.Add("c1", pipeConn(t), 50001, nil)

	peer, err := r.OldPeer("c1")
	require.NoError(t, err)
	assert.Equal(t, uint16(50001), peer)

	_, err = r.OldPeer("ghost")
	assert.Error(t, err)
}
