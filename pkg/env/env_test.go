package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstOf(t *testing.T) {
	t.Setenv("SWISSLUCA_TEST_A", "  ")
	t.Setenv("SWISSLUCA_TEST_B", "second")

	assert.Equal(t, "second", FirstOf("fallback", "SWISSLUCA_TEST_A", "SWISSLUCA_TEST_B"))
	assert.Equal(t, "fallback", FirstOf("fallback", "SWISSLUCA_TEST_MISSING"))
	assert.Equal(t, "fallback", FirstOf("fallback"))
}
