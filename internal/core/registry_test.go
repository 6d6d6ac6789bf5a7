package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterDefaults(t *testing.T) {
	r := NewRegistry()
	c := NewClient("conn-1", "alice", "")

	ident := r.Register("alice", "", c)
	assert.Equal(t, "alice", ident.DisplayName)
	assert.True(t, ident.Online)
	assert.False(t, ident.InCall)
	assert.False(t, ident.ConnectedAt.IsZero())
	assert.True(t, r.IsCurrent(c))
	assert.Equal(t, 1, r.Len())
}

func TestRegistryReRegisterKeepsOrderAndResetsFlags(t *testing.T) {
	r := NewRegistry()
	r.Register("a", "A", NewClient("1", "a", "A"))
	r.Register("b", "B", NewClient("2", "b", "B"))
	r.SetBusy("a", true)

	old, _ := r.Get("a")
	next := NewClient("3", "a", "A2")
	r.Register("a", "A2", next)

	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, PresenceEntry{ID: "a", DisplayName: "A2", Online: true, InCall: false}, snap[0])
	assert.Equal(t, "b", snap[1].ID)
	assert.False(t, r.IsCurrent(old.Conn))
	assert.True(t, r.IsCurrent(next))
}

func TestRegistryUnregister(t *testing.T) {
	r := NewRegistry()
	r.Register("a", "A", nil)
	r.Register("b", "B", nil)
	r.Register("c", "C", nil)

	r.Unregister("b")
	r.Unregister("ghost")

	_, ok := r.Get("b")
	assert.False(t, ok)
	snap := r.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].ID)
	assert.Equal(t, "c", snap[1].ID)
}

func TestRegistryRename(t *testing.T) {
	r := NewRegistry()
	r.Register("a", "A", nil)
	r.Register("b", "B", nil)

	assert.True(t, r.Rename("a", "a", "Alice"))
	assert.False(t, r.Rename("a", "a", "Alice"), "unchanged name")
	assert.False(t, r.Rename("a", "a", ""), "empty name")
	assert.False(t, r.Rename("a", "b", "Hijacked"), "renaming someone else")
	assert.False(t, r.Rename("ghost", "ghost", "Ghost"))

	a, _ := r.Get("a")
	b, _ := r.Get("b")
	assert.Equal(t, "Alice", a.DisplayName)
	assert.Equal(t, "B", b.DisplayName)
}

func TestRegistrySetBusy(t *testing.T) {
	r := NewRegistry()
	r.Register("a", "A", nil)

	assert.True(t, r.SetBusy("a", true))
	assert.False(t, r.SetBusy("ghost", true))

	snap := r.Snapshot()
	assert.True(t, snap[0].InCall)
}

func TestRegistryIsCurrentNil(t *testing.T) {
	assert.False(t, NewRegistry().IsCurrent(nil))
}

func TestRegistrySetPage(t *testing.T) {
	r := NewRegistry()
	c := NewClient("c1", "a", "A")
	r.Register("a", "A", c)

	assert.True(t, r.SetPage("a", "/docs"))
	assert.False(t, r.SetPage("a", "/docs"), "unchanged page")
	assert.False(t, r.SetPage("ghost", "/docs"))
	assert.Equal(t, "/docs", r.Snapshot()[0].Page)

	r.Register("a", "A", NewClient("c2", "a", "A"))
	assert.Empty(t, r.Snapshot()[0].Page, "new connection starts without a page")
}
