package domain

import (
	"context"
	"fmt"
)

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DefaultLocation is used whenever a venue cannot be geocoded (central Kampala).
var DefaultLocation = Coordinate{Lat: 0.3476, Lon: 32.5825}

// String formats the coordinate as "lat,lon", the waypoint form providers expect.
func (c Coordinate) String() string {
	return fmt.Sprintf("%g,%g", c.Lat, c.Lon)
}

// IsZero reports whether both components are zero.
func (c Coordinate) IsZero() bool {
	return c.Lat == 0 && c.Lon == 0
}

// FlowSegment is the live road-flow reading nearest a coordinate.
// Speeds share the provider's unit.
type FlowSegment struct {
	CurrentSpeed       float64
	FreeFlowSpeed      float64
	CurrentTravelTime  int
	FreeFlowTravelTime int
	Confidence         float64
	RoadClosure        bool
}

// Ratio returns CurrentSpeed/FreeFlowSpeed and false when free-flow speed is unusable.
func (f FlowSegment) Ratio() (float64, bool) {
	if f.FreeFlowSpeed <= 0 {
		return 0, false
	}
	return f.CurrentSpeed / f.FreeFlowSpeed, true
}

// Route is a calculated route across an ordered list of waypoints.
type Route struct {
	LengthMeters      int
	TravelTimeSeconds int
	TrafficDelay      int
	Legs              []RouteLeg
	Guidance          []Instruction
}

// RouteLeg is the part of a route between two consecutive waypoints.
type RouteLeg struct {
	LengthMeters      int
	TravelTimeSeconds int
	Points            []Coordinate
}

// Instruction is one turn-by-turn guidance step.
type Instruction struct {
	Message      string
	Maneuver     string
	Street       string
	OffsetMeters int
	Point        Coordinate
}

// GeocodeResult is the top match for a forward geocoding query.
type GeocodeResult struct {
	Location Coordinate
	Address  string
}

// GeoProvider is an external mapping provider. Every method fails soft:
// a missing API key, transport failure, bad status or empty result returns
// ok=false and never an error.
type GeoProvider interface {
	TrafficFlow(ctx context.Context, at Coordinate) (FlowSegment, bool)
	CalculateRoute(ctx context.Context, waypoints []Coordinate) (Route, bool)
	Geocode(ctx context.Context, query string) (GeocodeResult, bool)
}

// NoopGeoProvider reports every lookup as unavailable.
type NoopGeoProvider struct{}

func (NoopGeoProvider) TrafficFlow(context.Context, Coordinate) (FlowSegment, bool) {
	return FlowSegment{}, false
}

func (NoopGeoProvider) CalculateRoute(context.Context, []Coordinate) (Route, bool) {
	return Route{}, false
}

func (NoopGeoProvider) Geocode(context.Context, string) (GeocodeResult, bool) {
	return GeocodeResult{}, false
}
