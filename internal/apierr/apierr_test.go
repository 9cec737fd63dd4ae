package apierr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCarriesKindAndMessage(t *testing.T) {
	err := New(NotFound, "session %s not found", "abc")
	assert.Equal(t, NotFound, KindOf(err))
	assert.Equal(t, "session abc not found", err.Error())
}

func TestWrapIncludesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(Internal, cause, "failed to materialize frames")
	assert.Equal(t, Internal, KindOf(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("plain error")))
}

func TestKindOfWrappedErrors(t *testing.T) {
	inner := New(VideoUnreadable, "bad video")
	outer := errors.New("context: " + inner.Error())
	// A plain errors.New wrap (not %w) does not preserve Kind.
	assert.Equal(t, Internal, KindOf(outer))

	// An *Error built with Wrap reports its own Kind, not the Kind of the
	// *Error it wraps.
	wrapped := Wrap(SegmenterFailed, inner, "segmenter step failed")
	assert.Equal(t, SegmenterFailed, KindOf(wrapped))
}
