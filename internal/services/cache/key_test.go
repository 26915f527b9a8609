package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey_Deterministic(t *testing.T) {
	first := Key("filtered permit text", "environmental_permit", "Environment Agency", "v1")
	second := Key("filtered permit text", "environmental_permit", "Environment Agency", "v1")

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestKey_SensitiveToEveryInput(t *testing.T) {
	base := Key("text", "environmental_permit", "Environment Agency", "v1")

	assert.NotEqual(t, base, Key("other text", "environmental_permit", "Environment Agency", "v1"))
	assert.NotEqual(t, base, Key("text", "trade_effluent_consent", "Environment Agency", "v1"))
	assert.NotEqual(t, base, Key("text", "environmental_permit", "SEPA", "v1"))
	assert.NotEqual(t, base, Key("text", "environmental_permit", "Environment Agency", "v2"),
		"rule library version change must invalidate cached entries")
}

func TestKey_FieldBoundariesAreUnambiguous(t *testing.T) {
	// Concatenation ambiguity between adjacent fields must not collide.
	assert.NotEqual(t,
		Key("ab", "c", "", ""),
		Key("a", "bc", "", ""))
}
