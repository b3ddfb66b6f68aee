package uuid

import (
	"testing"

	googleuuid "github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	a := New()
	b := New()

	require.True(t, IsValid(a))
	assert.NotEqual(t, a, b)

	parsed, err := googleuuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, googleuuid.Version(7), parsed.Version())
}

func TestParse(t *testing.T) {
	got, err := Parse("0190F5A4-7B1C-7D2E-8F00-123456789ABC")
	require.NoError(t, err)
	assert.Equal(t, "0190f5a4-7b1c-7d2e-8f00-123456789abc", got)

	_, err = Parse("not-a-uuid")
	assert.Error(t, err)
	assert.False(t, IsValid(""))
}
