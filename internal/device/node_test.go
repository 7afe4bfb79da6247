package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNode(t *testing.T) {
	id, ok := ParseNode("/dev/input/event7")
	assert.True(t, ok)
	assert.Equal(t, ID(7), id)

	id, ok = ParseNode("/dev/input/event13")
	assert.True(t, ok)
	assert.Equal(t, ID(13), id)

	_, ok = ParseNode("/dev/input/mouse0")
	assert.False(t, ok)

	_, ok = ParseNode("/dev/input/eventX")
	assert.False(t, ok)
}
