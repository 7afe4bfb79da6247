package setup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	w, h, err := parseSize("3024x1964")
	require.NoError(t, err)
	assert.Equal(t, 3024.0, w)
	assert.Equal(t, 1964.0, h)

	_, _, err = parseSize("3024")
	assert.Error(t, err)

	_, _, err = parseSize("0x100")
	assert.Error(t, err)

	_, _, err = parseSize("ax100")
	assert.Error(t, err)
}

func TestParseFrame(t *testing.T) {
	x, y, w, h, err := parseFrame("232,-720,2560x720")
	require.NoError(t, err)
	assert.Equal(t, 232.0, x)
	assert.Equal(t, -720.0, y)
	assert.Equal(t, 2560.0, w)
	assert.Equal(t, 720.0, h)

	_, _, _, _, err = parseFrame("232,-720")
	assert.Error(t, err)

	_, _, _, _, err = parseFrame("a,b,2560x720")
	assert.Error(t, err)
}
