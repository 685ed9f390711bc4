package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kirychukyurii/dr-orchestrator/internal/model"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		delta                  float64
	}{
		{name: "same point", lat1: 53.90, lon1: 27.56, lat2: 53.90, lon2: 27.56, want: 0, delta: 1e-9},
		{name: "minsk to moscow", lat1: 53.90, lon1: 27.56, lat2: 55.76, lon2: 37.62, want: 676, delta: 10},
		{name: "london to new york", lat1: 51.5074, lon1: -0.1278, lat2: 40.7128, lon2: -74.0060, want: 5570, delta: 20},
		{name: "quarter meridian", lat1: 0, lon1: 0, lat2: 90, lon2: 0, want: EarthRadiusKm * 3.141592653589793 / 2, delta: 1e-6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.want, got, tt.delta)
		})
	}
}

func TestDistance_Symmetric(t *testing.T) {
	a := model.Coordinates{Latitude: 52.44, Longitude: 30.99}
	b := model.Coordinates{Latitude: 55.76, Longitude: 37.62}

	assert.InDelta(t, Distance(a, b), Distance(b, a), 1e-9)
}
