package tap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/touchmapd/touchmapd/internal/device"
)

func TestEvdevBackend_SuppressHoldsOneGrab(t *testing.T) {
	var grabs, releases []device.ID

	b := NewEvdevBackend(nil)
	for _, id := range []device.ID{1, 2} {
		b.devices[id] = &capturedDevice{
			id:      id,
			grab:    func() error { grabs = append(grabs, id); return nil },
			release: func() error { releases = append(releases, id); return nil },
		}
	}

	require.NoError(t, b.Suppress(1))
	assert.Equal(t, []device.ID{1}, grabs)

	// Re-suppressing the held device is a no-op.
	require.NoError(t, b.Suppress(1))
	assert.Equal(t, []device.ID{1}, grabs)
	assert.Empty(t, releases)

	// Moving the grab releases the previous device first.
	require.NoError(t, b.Suppress(2))
	assert.Equal(t, []device.ID{1, 2}, grabs)
	assert.Equal(t, []device.ID{1}, releases)

	require.NoError(t, b.Unsuppress())
	assert.Equal(t, []device.ID{1, 2}, releases)

	// No grab held: a further release is a no-op.
	require.NoError(t, b.Unsuppress())
	assert.Equal(t, []device.ID{1, 2}, releases)
}

func TestEvdevBackend_SuppressUnknownDevice(t *testing.T) {
	b := NewEvdevBackend(nil)
	assert.Error(t, b.Suppress(9))
}
