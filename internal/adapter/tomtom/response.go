package tomtom

import "github.com/couchcryptid/rally-traffic-etl/internal/domain"

// TomTom API response types. Every field is optional on the wire; pointer
// fields distinguish absent from zero.

type flowResponse struct {
	FlowSegmentData *flowSegmentData `json:"flowSegmentData"`
}

type flowSegmentData struct {
	FRC                string   `json:"frc"`
	CurrentSpeed       *float64 `json:"currentSpeed"`
	FreeFlowSpeed      *float64 `json:"freeFlowSpeed"`
	CurrentTravelTime  *int     `json:"currentTravelTime"`
	FreeFlowTravelTime *int     `json:"freeFlowTravelTime"`
	Confidence         *float64 `json:"confidence"`
	RoadClosure        bool     `json:"roadClosure"`
}

func (r flowResponse) toDomain() (domain.FlowSegment, bool) {
	d := r.FlowSegmentData
	if d == nil || d.CurrentSpeed == nil || d.FreeFlowSpeed == nil {
		return domain.FlowSegment{}, false
	}
	return domain.FlowSegment{
		CurrentSpeed:       *d.CurrentSpeed,
		FreeFlowSpeed:      *d.FreeFlowSpeed,
		CurrentTravelTime:  deref(d.CurrentTravelTime),
		FreeFlowTravelTime: deref(d.FreeFlowTravelTime),
		Confidence:         deref(d.Confidence),
		RoadClosure:        d.RoadClosure,
	}, true
}

type routeResponse struct {
	Routes []route `json:"routes"`
}

type route struct {
	Summary  routeSummary `json:"summary"`
	Legs     []routeLeg   `json:"legs"`
	Guidance *guidance    `json:"guidance"`
}

type routeSummary struct {
	LengthInMeters        int `json:"lengthInMeters"`
	TravelTimeInSeconds   int `json:"travelTimeInSeconds"`
	TrafficDelayInSeconds int `json:"trafficDelayInSeconds"`
}

type routeLeg struct {
	Summary routeSummary `json:"summary"`
	Points  []point      `json:"points"`
}

type point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type guidance struct {
	Instructions []instruction `json:"instructions"`
}

type instruction struct {
	Message             string `json:"message"`
	Maneuver            string `json:"maneuver"`
	Street              string `json:"street"`
	RouteOffsetInMeters int    `json:"routeOffsetInMeters"`
	Point               *point `json:"point"`
}

func (r routeResponse) toDomain() (domain.Route, bool) {
	if len(r.Routes) == 0 {
		return domain.Route{}, false
	}
	src := r.Routes[0]
	out := domain.Route{
		LengthMeters:      src.Summary.LengthInMeters,
		TravelTimeSeconds: src.Summary.TravelTimeInSeconds,
		TrafficDelay:      src.Summary.TrafficDelayInSeconds,
		Legs:              make([]domain.RouteLeg, 0, len(src.Legs)),
	}
	for _, leg := range src.Legs {
		pts := make([]domain.Coordinate, len(leg.Points))
		for i, p := range leg.Points {
			pts[i] = p.coordinate()
		}
		out.Legs = append(out.Legs, domain.RouteLeg{
			LengthMeters:      leg.Summary.LengthInMeters,
			TravelTimeSeconds: leg.Summary.TravelTimeInSeconds,
			Points:            pts,
		})
	}
	if src.Guidance != nil {
		for _, ins := range src.Guidance.Instructions {
			step := domain.Instruction{
				Message:      ins.Message,
				Maneuver:     ins.Maneuver,
				Street:       ins.Street,
				OffsetMeters: ins.RouteOffsetInMeters,
			}
			if ins.Point != nil {
				step.Point = ins.Point.coordinate()
			}
			out.Guidance = append(out.Guidance, step)
		}
	}
	return out, true
}

func (p point) coordinate() domain.Coordinate {
	return domain.Coordinate{Lat: p.Latitude, Lon: p.Longitude}
}

type geocodeResponse struct {
	Results []geocodeResult `json:"results"`
}

type geocodeResult struct {
	Position *position `json:"position"`
	Address  *address  `json:"address"`
}

type position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type address struct {
	FreeformAddress string `json:"freeformAddress"`
}

func (r geocodeResponse) toDomain() (domain.GeocodeResult, bool) {
	if len(r.Results) == 0 || r.Results[0].Position == nil {
		return domain.GeocodeResult{}, false
	}
	top := r.Results[0]
	result := domain.GeocodeResult{
		Location: domain.Coordinate{Lat: top.Position.Lat, Lon: top.Position.Lon},
	}
	if top.Address != nil {
		result.Address = top.Address.FreeformAddress
	}
	return result, true
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
