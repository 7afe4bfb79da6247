package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentity_LearnSequence(t *testing.T) {
	id := NewIdentity(nil)

	// Sequence of events from devices {7, 7, 3, 7} starting in learning.
	assert.Equal(t, CandidateForLearning, id.Classify(7, true))
	id.Learn(7)

	assert.Equal(t, KnownTouchDevice, id.Classify(7, false))
	assert.Equal(t, OtherDevice, id.Classify(3, false))
	assert.Equal(t, KnownTouchDevice, id.Classify(7, false))

	learned, ok := id.Learned()
	assert.True(t, ok)
	assert.Equal(t, ID(7), learned)
}

func TestIdentity_FirstLearnWins(t *testing.T) {
	id := NewIdentity(nil)
	id.Learn(7)
	id.Learn(3)

	learned, ok := id.Learned()
	assert.True(t, ok)
	assert.Equal(t, ID(7), learned)
}

func TestIdentity_Excluded(t *testing.T) {
	id := NewIdentity([]ID{4})

	assert.Equal(t, OtherDevice, id.Classify(4, true))
	assert.Equal(t, CandidateForLearning, id.Classify(7, true))
}

func TestIdentity_NotLearning(t *testing.T) {
	id := NewIdentity(nil)
	assert.Equal(t, Unknown, id.Classify(7, false))
}

func TestIdentity_Reset(t *testing.T) {
	id := NewIdentity(nil)
	id.Learn(7)
	id.Reset()

	_, ok := id.Learned()
	assert.False(t, ok)
	assert.Equal(t, CandidateForLearning, id.Classify(3, true))
}
