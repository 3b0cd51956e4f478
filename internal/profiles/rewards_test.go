package profiles

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRewards(t *testing.T) {
	assert.Equal(t, 10, Rewards(decimal.Zero))
	assert.Equal(t, 14, Rewards(decimal.RequireFromString("4.90")))
	assert.Equal(t, 10, Rewards(decimal.RequireFromString("-3.00")))
}

func TestLevel(t *testing.T) {
	assert.Equal(t, 1, Level(0))
	assert.Equal(t, 1, Level(99))
	assert.Equal(t, 2, Level(100))
	assert.Equal(t, 4, Level(342))
}
