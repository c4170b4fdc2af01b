package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClientSet() *Clients {
	return NewClients([]*Client{
		NewClient("migrator", "tok-a", "org", "proj"),
		NewClient("alice", "tok-b", "org", "proj"),
	})
}

func TestClientsDefaultIsFirstCredential(t *testing.T) {
	cs := newClientSet()
	require.NotNil(t, cs.Default())
	assert.Equal(t, "migrator", cs.Default().Login)
}

func TestClientsForFallsBackToDefault(t *testing.T) {
	cs := newClientSet()

	assert.Equal(t, "alice", cs.For("alice").Login)
	assert.Equal(t, "migrator", cs.For("ghost").Login)
	assert.Equal(t, "migrator", cs.For("").Login)
}

func TestClientsHasIdentity(t *testing.T) {
	cs := newClientSet()

	assert.True(t, cs.HasIdentity("alice"))
	assert.True(t, cs.HasIdentity("migrator"))
	assert.False(t, cs.HasIdentity("ghost"))
}
