package segmenter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareVideoStateRejectsBadDimensions(t *testing.T) {
	s := NewSimulator()
	_, err := s.PrepareVideoState(context.Background(), "/frames", 0, 10, 10)
	assert.Error(t, err)
}

func TestAddPromptsDrawsDiscAroundPositivePoint(t *testing.T) {
	s := &Simulator{Radius: 2}
	state, err := s.PrepareVideoState(context.Background(), "/frames", 5, 10, 10)
	require.NoError(t, err)

	values, err := s.AddPrompts(context.Background(), state, 0, 1, []PointPrompt{{X: 5, Y: 5, Label: 1}})
	require.NoError(t, err)

	center := values[5*10+5]
	corner := values[0]
	assert.Equal(t, float32(1), center)
	assert.Equal(t, float32(-1), corner)
}

func TestAddPromptsRejectsOutOfRangeFrame(t *testing.T) {
	s := NewSimulator()
	state, _ := s.PrepareVideoState(context.Background(), "/frames", 3, 10, 10)
	_, err := s.AddPrompts(context.Background(), state, 3, 1, []PointPrompt{{X: 1, Y: 1, Label: 1}})
	assert.Error(t, err)
}

func TestAddBoxPromptFillsBox(t *testing.T) {
	s := NewSimulator()
	state, _ := s.PrepareVideoState(context.Background(), "/frames", 3, 10, 10)
	values, err := s.AddBoxPrompt(context.Background(), state, 0, 1, BoxPrompt{X1: 2, Y1: 2, X2: 5, Y2: 5})
	require.NoError(t, err)

	assert.Equal(t, float32(1), values[3*10+3])
	assert.Equal(t, float32(-1), values[0])
}

func TestStreamPropagationHoldsSeedShapeAndStopsOnCancel(t *testing.T) {
	s := NewSimulator()
	state, _ := s.PrepareVideoState(context.Background(), "/frames", 5, 4, 4)
	seedValues, _ := s.AddPrompts(context.Background(), state, 2, 1, []PointPrompt{{X: 1, Y: 1, Label: 1}})

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := s.StreamPropagation(ctx, state)
	require.NoError(t, err)
	defer stream.Close()

	frame0, ok, err := stream.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, frame0.FrameIdx)
	require.Len(t, frame0.Objects, 1)
	assert.Equal(t, seedValues, frame0.Objects[0].Values, "before any seed, the nearest-after seed's shape is used")

	cancel()
	_, ok, err = stream.Next()
	require.NoError(t, err)
	assert.False(t, ok, "a cancelled context must stop the stream")
}

func TestResetClearsSeeds(t *testing.T) {
	s := NewSimulator()
	state, _ := s.PrepareVideoState(context.Background(), "/frames", 3, 4, 4)
	s.AddPrompts(context.Background(), state, 0, 1, []PointPrompt{{X: 1, Y: 1, Label: 1}})

	require.NoError(t, s.Reset(context.Background(), state))

	stream, err := s.StreamPropagation(context.Background(), state)
	require.NoError(t, err)
	defer stream.Close()

	frame, ok, err := stream.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, frame.Objects)
}

func TestNearestSeedFallsBackToEmptyMask(t *testing.T) {
	values := nearestSeed(map[int][]float32{}, 5, 9)
	require.Len(t, values, 9)
	for _, v := range values {
		assert.Equal(t, float32(0), v)
	}
}
