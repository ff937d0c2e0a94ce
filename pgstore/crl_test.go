package pgstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetentionCutoff(t *testing.T) {
	// Fewer bases than the retention count: nothing to delete.
	_, _, ok := retentionCutoff([]int64{3, 1, 2}, 3)
	assert.False(t, ok)
	_, _, ok = retentionCutoff(nil, 5)
	assert.False(t, ok)

	// Five bases, keep two: delete the three oldest, bound just above
	// the newest of them.
	upto, deleted, ok := retentionCutoff([]int64{5, 1, 4, 2, 3}, 2)
	assert.True(t, ok)
	assert.Equal(t, 3, deleted)
	assert.Equal(t, int64(4), upto)
}

func TestRetentionCutoffGaps(t *testing.T) {
	upto, deleted, ok := retentionCutoff([]int64{10, 20, 40, 80}, 1)
	assert.True(t, ok)
	assert.Equal(t, 3, deleted)
	assert.Equal(t, int64(41), upto)
}

func TestRetentionCutoffDoesNotMutateInput(t *testing.T) {
	numbers := []int64{5, 1, 3}
	retentionCutoff(numbers, 1)
	assert.Equal(t, []int64{5, 1, 3}, numbers)
}
