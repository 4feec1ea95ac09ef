package reconcile

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randID(t *testing.T) [32]byte {
	t.Helper()
	var id [32]byte
	_, err := rand.Read(id[:])
	require.NoError(t, err)
	return id
}

func TestDecodeSmallDifference(t *testing.T) {
	self := NewSketch(Small)
	other := NewSketch(Small)

	shared := make([][32]byte, 20)
	for i := range shared {
		shared[i] = randID(t)
		self.Insert(shared[i])
		other.Insert(shared[i])
	}

	onlySelf := randID(t)
	onlyOther := randID(t)
	self.Insert(onlySelf)
	other.Insert(onlyOther)

	diff, err := self.Subtract(other)
	require.NoError(t, err)

	inSelf, inOther, _, err := diff.Decode()
	require.NoError(t, err)
	require.Len(t, inSelf, 1)
	assert.Equal(t, onlySelf, inSelf[0])
	require.Len(t, inOther, 1)
	assert.Equal(t, onlyOther, inOther[0])
}

// TestTinyOverflow is the S5 end-to-end scenario: 50 ids in a 16-cell
// Tiny sketch, subtracted against empty, must fail to decode.
func TestTinyOverflow(t *testing.T) {
	self := NewSketch(Tiny)
	other := NewSketch(Tiny)

	for i := 0; i < 50; i++ {
		self.Insert(randID(t))
	}

	diff, err := self.Subtract(other)
	require.NoError(t, err)

	_, _, _, err = diff.Decode()
	assert.ErrorIs(t, err, ErrDecodingFailed)
}

func TestSubtractRequiresEqualSize(t *testing.T) {
	a := NewSketch(Small)
	b := NewSketch(Medium)
	_, err := a.Subtract(b)
	assert.ErrorIs(t, err, ErrInvalidSketch)
}

func TestDecodeIsDeterministic(t *testing.T) {
	self := NewSketch(Small)
	other := NewSketch(Small)
	ids := make([][32]byte, 10)
	for i := range ids {
		ids[i] = randID(t)
		self.Insert(ids[i])
	}

	diff1, _ := self.Subtract(other)
	diff2, _ := self.Subtract(other)
	s1, o1, _, err1 := diff1.Decode()
	s2, o2, _, err2 := diff2.Decode()
	assert.Equal(t, err1, err2)
	assert.Len(t, s2, len(s1))
	assert.Len(t, o2, len(o1))
}

func TestPowChallengeSolveAndVerify(t *testing.T) {
	now := time.Now()
	c, err := NewChallenge(0, 100, 8, now)
	require.NoError(t, err)

	solution := Solve(c)
	assert.NoError(t, Verify(c, solution, now.Add(time.Second)))
}

func TestPowChallengeExpires(t *testing.T) {
	now := time.Now()
	c, err := NewChallenge(0, 100, 4, now)
	require.NoError(t, err)

	solution := Solve(c)
	err = Verify(c, solution, now.Add(61*time.Second))
	assert.ErrorIs(t, err, ErrChallengeExpired)
}

func TestMedianDifficultyFallback(t *testing.T) {
	assert.Equal(t, DefaultDifficulty, MedianDifficulty(nil))
	assert.Equal(t, 8, MedianDifficulty([]int{4, 8, 12}))
}
