package utilization

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentageZeroRequested(t *testing.T) {
	for _, elapsed := range []int64{0, 1, 3600, 1 << 40} {
		value, tier := Percentage(elapsed, 0)
		assert.Equal(t, 0.0, value)
		assert.Equal(t, Low, tier)
	}
}

func TestPercentageClamped(t *testing.T) {
	value, tier := Percentage(7200, 3600)
	assert.Equal(t, 100.0, value)
	assert.Equal(t, High, tier)
}

func TestPercentageRounding(t *testing.T) {
	value, tier := Percentage(1, 3)
	assert.Equal(t, 33.33, value)
	assert.Equal(t, Low, tier)

	value, _ = Percentage(2, 3)
	assert.Equal(t, 66.67, value)
}

func TestTierBoundaries(t *testing.T) {
	assert.Equal(t, Low, TierOf(0))
	assert.Equal(t, Low, TierOf(49.99))
	assert.Equal(t, Medium, TierOf(50))
	assert.Equal(t, Medium, TierOf(74.99))
	assert.Equal(t, High, TierOf(75))
	assert.Equal(t, High, TierOf(100))
}

func TestPercentageTierMatchesTierOf(t *testing.T) {
	_, tier := Percentage(4999, 10000)
	assert.Equal(t, Low, tier)
	_, tier = Percentage(5000, 10000)
	assert.Equal(t, Medium, tier)
	_, tier = Percentage(7499, 10000)
	assert.Equal(t, Medium, tier)
	_, tier = Percentage(7500, 10000)
	assert.Equal(t, High, tier)
}

func TestFromText(t *testing.T) {
	value, tier := FromText("0:30:00", "1:00:00")
	assert.Equal(t, 50.0, value)
	assert.Equal(t, Medium, tier)

	value, tier = FromText("garbage", "1:00:00")
	assert.Equal(t, 0.0, value)
	assert.Equal(t, Low, tier)

	value, _ = FromText("0:30:00", "")
	assert.Equal(t, 0.0, value)
}

func TestTierString(t *testing.T) {
	assert.Equal(t, "low", Low.String())
	assert.Equal(t, "medium", Medium.String())
	assert.Equal(t, "high", High.String())
}
