package domain

import (
	"math"
	"strconv"
	"strings"
)

// Bounds represents a geographic bounding box in degrees.
type Bounds struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Contains reports whether (lat, lng) lies inside the box, edges included.
// A box with West > East is taken literally and contains nothing.
func (b Bounds) Contains(lat, lng float64) bool {
	return lng >= b.West && lng <= b.East && lat >= b.South && lat <= b.North
}

// ParseBBox parses "west,south,east,north". ok is false for wrong arity or
// any value that is not a finite number; callers ignore the filter then.
func ParseBBox(raw string) (Bounds, bool) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return Bounds{}, false
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Bounds{}, false
		}
		v[i] = f
	}
	return Bounds{West: v[0], South: v[1], East: v[2], North: v[3]}, true
}

// ValidCoordinates reports whether lat/lng are inside WGS 84 ranges.
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
