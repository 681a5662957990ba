package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyFlow(t *testing.T) {
	tests := []struct {
		name      string
		flow      *FlowSegment
		wantLevel JamLevel
		wantDelay int
	}{
		{"ratio 0.40", &FlowSegment{CurrentSpeed: 20, FreeFlowSpeed: 50}, JamCritical, 60},
		{"ratio exactly 0.50", &FlowSegment{CurrentSpeed: 25, FreeFlowSpeed: 50}, JamHeavy, 45},
		{"ratio 0.60", &FlowSegment{CurrentSpeed: 30, FreeFlowSpeed: 50}, JamHeavy, 45},
		{"ratio exactly 0.75", &FlowSegment{CurrentSpeed: 30, FreeFlowSpeed: 40}, JamModerate, 30},
		{"free flowing", &FlowSegment{CurrentSpeed: 60, FreeFlowSpeed: 60}, JamModerate, 30},
		{"stopped", &FlowSegment{CurrentSpeed: 0, FreeFlowSpeed: 60}, JamCritical, 60},
		{"unavailable", nil, JamModerate, 30},
		{"zero free flow", &FlowSegment{CurrentSpeed: 10, FreeFlowSpeed: 0}, JamModerate, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, delay := ClassifyFlow(tt.flow)
			assert.Equal(t, tt.wantLevel, level)
			assert.Equal(t, tt.wantDelay, delay)
		})
	}
}

func TestJamLevelOrdering(t *testing.T) {
	assert.True(t, JamCritical.Worse(JamHeavy))
	assert.True(t, JamHeavy.Worse(JamModerate))
	assert.True(t, JamModerate.Worse(JamLow))
	assert.False(t, JamLow.Worse(JamLow))
	assert.Equal(t, -1, JamLevel("gridlock").Rank())
}

func TestParseJamLevel(t *testing.T) {
	l, err := ParseJamLevel(" Heavy ")
	require.NoError(t, err)
	assert.Equal(t, JamHeavy, l)

	_, err = ParseJamLevel("gridlock")
	assert.Error(t, err)
}

func TestPredictionDescription(t *testing.T) {
	assert.Equal(t,
		"Expected critical congestion due to campaign rally. Plan for +60 mins travel time.",
		PredictionDescription(JamCritical, 60))
}
