package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	r, err := New(Member{Name: "Ben"}, Member{Name: "Ana", Role: RoleAdmin})
	require.NoError(t, err)

	assert.Equal(t, []string{"Ana", "Ben"}, r.Names())
	assert.True(t, r.Contains("Ben"))
	assert.False(t, r.Contains("Cy"))
	assert.True(t, r.IsAdmin("Ana"))
	assert.False(t, r.IsAdmin("Ben"))
	assert.False(t, r.IsAdmin("Cy"))
}

func TestNew_Rejects(t *testing.T) {
	_, err := New(Member{Name: ""})
	assert.Error(t, err)

	_, err = New(Member{Name: "Ana"}, Member{Name: "Ana"})
	assert.ErrorContains(t, err, "duplicate")

	_, err = New(Member{Name: "Ana", Role: "owner"})
	assert.ErrorContains(t, err, "invalid role")
}
