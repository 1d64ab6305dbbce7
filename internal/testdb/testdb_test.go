package testdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IsolatedDatabases(t *testing.T) {
	a := New(t)
	b := New(t)
	require.NotEqual(t, a.Path, b.Path)

	_, err := a.DB.Exec(`CREATE TABLE widget (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)

	assert.True(t, a.TableExists(t, "widget"))
	assert.False(t, b.TableExists(t, "widget"))
}
