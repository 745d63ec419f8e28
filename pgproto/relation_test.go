package pgproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachePutAndGet(t *testing.T) {
	c := NewCache()
	c.Put(RelationInfo{OID: 1, Namespace: "public", Name: "widgets"}, []string{"id"})

	entry, err := c.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "widgets", entry.Name)
	assert.True(t, entry.IsPrimaryKeyColumn("id"))
	assert.False(t, entry.IsPrimaryKeyColumn("label"))
}

func TestCacheGetUnknownOID(t *testing.T) {
	c := NewCache()
	_, err := c.Get(99)
	require.Error(t, err)
}

func TestHasCompleteIdentity(t *testing.T) {
	entry := &RelationEntry{PrimaryKey: []string{"id", "tenant_id"}}

	assert.True(t, entry.HasCompleteIdentity(map[string]any{"id": 1, "tenant_id": 2}))
	assert.False(t, entry.HasCompleteIdentity(map[string]any{"id": 1}))
	assert.False(t, entry.HasCompleteIdentity(map[string]any{"id": 1, "tenant_id": nil}))
}
