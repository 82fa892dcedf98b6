package devserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("b")
	r.Register("a")

	prev, ok := r.Rename("a", "zeta")
	assert.True(t, ok)
	assert.Empty(t, prev)
	prev, _ = r.Rename("a", "alpha")
	assert.Equal(t, "zeta", prev)

	_, ok = r.Rename("missing", "x")
	assert.False(t, ok)

	assert.Equal(t, "alpha", r.Name("a"))
	assert.Equal(t, []Controller{{ID: "b"}, {ID: "a", Name: "alpha"}}, r.List())

	r.Remove("a")
	assert.Equal(t, []Controller{{ID: "b"}}, r.List())
	assert.Empty(t, r.Name("a"))
}
