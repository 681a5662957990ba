package domain

import (
	"fmt"
	"strings"
)

// JamLevel is an ordered congestion severity.
type JamLevel string

const (
	JamLow      JamLevel = "low"
	JamModerate JamLevel = "moderate"
	JamHeavy    JamLevel = "heavy"
	JamCritical JamLevel = "critical"
)

// Flow ratio thresholds and the delay assigned to each band.
const (
	criticalRatio = 0.50
	heavyRatio    = 0.75

	DelayCritical = 60
	DelayHeavy    = 45
	DelayModerate = 30
)

// DefaultAffectedRoads is stored on every prediction until road names are resolved.
var DefaultAffectedRoads = []string{"Main Road", "Access Lane"}

var jamRank = map[JamLevel]int{
	JamLow:      0,
	JamModerate: 1,
	JamHeavy:    2,
	JamCritical: 3,
}

// ParseJamLevel parses a stored jam level.
func ParseJamLevel(s string) (JamLevel, error) {
	l := JamLevel(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := jamRank[l]; !ok {
		return "", fmt.Errorf("unknown jam level %q", s)
	}
	return l, nil
}

// Rank orders jam levels from low (0) to critical (3). Unknown levels rank -1.
func (l JamLevel) Rank() int {
	if r, ok := jamRank[l]; ok {
		return r
	}
	return -1
}

// Worse reports whether l is more severe than other.
func (l JamLevel) Worse(other JamLevel) bool {
	return l.Rank() > other.Rank()
}

// ClassifyFlow maps a flow reading to a jam level and delay in minutes.
// A nil or unusable reading is moderate.
func ClassifyFlow(flow *FlowSegment) (JamLevel, int) {
	if flow == nil {
		return JamModerate, DelayModerate
	}
	ratio, ok := flow.Ratio()
	if !ok {
		return JamModerate, DelayModerate
	}
	switch {
	case ratio < criticalRatio:
		return JamCritical, DelayCritical
	case ratio < heavyRatio:
		return JamHeavy, DelayHeavy
	default:
		return JamModerate, DelayModerate
	}
}

// PredictionDescription renders the human-readable forecast text.
func PredictionDescription(level JamLevel, delayMinutes int) string {
	return fmt.Sprintf("Expected %s congestion due to campaign rally. Plan for +%d mins travel time.", level, delayMinutes)
}
