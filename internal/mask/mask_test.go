package mask

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskSetAtEmpty(t *testing.T) {
	m := New(4, 3)
	assert.True(t, m.Empty())

	m.Set(1, 1)
	assert.False(t, m.Empty())
	assert.True(t, m.At(1, 1))
	assert.False(t, m.At(0, 0))
}

func TestMaskClone(t *testing.T) {
	m := New(2, 2)
	m.Set(0, 0)

	cp := m.Clone()
	cp.Set(1, 1)

	assert.False(t, m.At(1, 1), "clone mutation must not affect the original")
	assert.True(t, cp.At(0, 0))
}

func TestFromFloat32Threshold(t *testing.T) {
	values := []float32{-1, 0, 0.5, 3}
	m := FromFloat32(2, 2, values, nil)

	assert.False(t, m.At(0, 0))
	assert.False(t, m.At(1, 0))
	assert.True(t, m.At(0, 1))
	assert.True(t, m.At(1, 1))
}

func TestFromFloat32SanitizesNonFinite(t *testing.T) {
	var nan float32 = float32(0)
	nan = nan / nan // NaN without importing math in the test

	values := []float32{1, nan, 1, 1}
	var warned string
	m := FromFloat32(2, 2, values, func(w string) { warned = w })

	assert.True(t, m.Empty(), "a single non-finite value must collapse the whole mask to empty")
	assert.NotEmpty(t, warned)
}

func TestFromFloat32WrongLength(t *testing.T) {
	var warned string
	m := FromFloat32(3, 3, []float32{1, 2}, func(w string) { warned = w })
	assert.True(t, m.Empty())
	assert.NotEmpty(t, warned)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := New(5, 5)
	m.Set(2, 2)
	m.Set(4, 0)

	b64, err := m.EncodePNGBase64()
	require.NoError(t, err)

	decoded, err := DecodePNGBase64(b64)
	require.NoError(t, err)

	assert.Equal(t, 5, decoded.Width)
	assert.Equal(t, 5, decoded.Height)
	assert.True(t, decoded.At(2, 2))
	assert.True(t, decoded.At(4, 0))
	assert.False(t, decoded.At(0, 0))
}

func TestDecodePNGBase64InvalidBase64(t *testing.T) {
	_, err := DecodePNGBase64("not-base64!!!")
	assert.Error(t, err)
}

func TestNormalizeThresholdsAndResizes(t *testing.T) {
	m := New(2, 2)
	m.Pix = []byte{0, 100, 130, 255}

	out := m.Normalize(2, 2)
	assert.Equal(t, byte(0), out.Pix[0])
	assert.Equal(t, byte(0), out.Pix[1], "100 is below the 128 threshold")
	assert.Equal(t, byte(255), out.Pix[2])
	assert.Equal(t, byte(255), out.Pix[3])
}

func TestNormalizeResizesToTargetDimensions(t *testing.T) {
	m := New(2, 2)
	m.Set(0, 0)
	m.Set(1, 1)

	out := m.Normalize(4, 4)
	assert.Equal(t, 4, out.Width)
	assert.Equal(t, 4, out.Height)
	for _, v := range out.Pix {
		assert.Contains(t, []byte{0, 255}, v)
	}
}
