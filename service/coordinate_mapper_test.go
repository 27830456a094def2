package service

import (
	"testing"

	"github.com/TIANLI0/TipGuide/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinateMapperConversionFactor(t *testing.T) {
	cm := NewCoordinateMapper(&testConfig().Pipeline.Mapping)

	conv, err := cm.ConversionFactor(1000)
	require.NoError(t, err)
	assert.InDelta(t, 0.15, conv, 1e-12)

	_, err = cm.ConversionFactor(0)
	assert.Error(t, err)
	_, err = cm.ConversionFactor(-5)
	assert.Error(t, err)
}

func TestCoordinateMapperMap(t *testing.T) {
	cm := NewCoordinateMapper(&testConfig().Pipeline.Mapping)

	g := cm.Map(model.PixelPoint{Row: 650, Col: 100}, 0.15)
	assert.InDelta(t, 0.12275, g.X, 1e-12)
	assert.InDelta(t, 0.1855, g.Y, 1e-12)
	assert.InDelta(t, 0.1695, g.Z, 1e-12)

	origin := cm.Map(model.PixelPoint{}, 0.15)
	assert.Equal(t, model.GoalPosition{X: 0.10775, Y: 0.088, Z: 0.1695}, origin)
}

func TestCoordinateMapperLinear(t *testing.T) {
	cm := NewCoordinateMapper(&testConfig().Pipeline.Mapping)
	conv := 150.0 / 997

	a := cm.Map(model.PixelPoint{Row: 10, Col: 20}, conv)
	b := cm.Map(model.PixelPoint{Row: 110, Col: 220}, conv)

	assert.InDelta(t, 200*conv/1000, b.X-a.X, 1e-12)
	assert.InDelta(t, 100*conv/1000, b.Y-a.Y, 1e-12)
	assert.Equal(t, a.Z, b.Z)
}

func TestCoordinateMapperRangeSpansPlateWidth(t *testing.T) {
	cm := NewCoordinateMapper(&testConfig().Pipeline.Mapping)

	for _, rangeY := range []int{1, 250, 997, 1000, 3000} {
		conv, err := cm.ConversionFactor(rangeY)
		require.NoError(t, err)

		a := cm.Map(model.PixelPoint{Row: 0, Col: 0}, conv)
		b := cm.Map(model.PixelPoint{Row: rangeY, Col: rangeY}, conv)
		assert.InDelta(t, 0.150, b.X-a.X, 1e-12, "range_y %d", rangeY)
		assert.InDelta(t, 0.150, b.Y-a.Y, 1e-12, "range_y %d", rangeY)
	}
}
