package geo

import (
	"math"
	"sort"
)

// EarthRadiusKm is the mean Earth radius used by DistanceKm.
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate pair in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinates fall inside the WGS84 ranges.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// DistanceKm returns the Haversine great-circle distance between a and b.
func DistanceKm(a, b Point) float64 {
	if a == b {
		return 0
	}
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Located is implemented by anything that can be placed on the map.
type Located interface {
	Location() Point
}

// SortByDistance orders items by distance from origin, nearest first, and
// returns the distance of each item in the resulting order.
func SortByDistance[T Located](origin Point, items []T) []float64 {
	distances := make([]float64, len(items))
	for i, item := range items {
		distances[i] = DistanceKm(origin, item.Location())
	}
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return distances[idx[i]] < distances[idx[j]]
	})

	sortedItems := make([]T, len(items))
	sortedDistances := make([]float64, len(items))
	for pos, original := range idx {
		sortedItems[pos] = items[original]
		sortedDistances[pos] = distances[original]
	}
	copy(items, sortedItems)
	return sortedDistances
}
