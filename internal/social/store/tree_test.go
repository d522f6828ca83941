package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flat(id int64, parentID *int64) Comment {
	return Comment{ID: id, ShowID: 7, ParentID: parentID}
}

func TestBuildForest_NestsReplies(t *testing.T) {
	p1, p2 := int64(1), int64(2)
	forest := BuildForest([]Comment{
		flat(1, nil),
		flat(2, &p1),
		flat(3, &p1),
		flat(4, &p2),
		flat(5, nil),
	})

	require.Len(t, forest, 2)
	assert.Equal(t, int64(1), forest[0].ID)
	assert.Equal(t, int64(5), forest[1].ID)

	require.Len(t, forest[0].Replies, 2)
	assert.Equal(t, int64(2), forest[0].Replies[0].ID)
	assert.Equal(t, int64(3), forest[0].Replies[1].ID)

	require.Len(t, forest[0].Replies[0].Replies, 1)
	assert.Equal(t, int64(4), forest[0].Replies[0].Replies[0].ID)
}

func TestBuildForest_OrphanOnAnotherPageBecomesRoot(t *testing.T) {
	offPage := int64(99)
	forest := BuildForest([]Comment{
		flat(10, nil),
		flat(11, &offPage),
	})

	require.Len(t, forest, 2)
	assert.Equal(t, int64(10), forest[0].ID)
	assert.Equal(t, int64(11), forest[1].ID)
	assert.Empty(t, forest[1].Replies)
}

func TestBuildForest_PreservesInputOrder(t *testing.T) {
	p := int64(3)
	forest := BuildForest([]Comment{
		flat(5, nil),
		flat(3, nil),
		flat(8, &p),
		flat(1, nil),
		flat(6, &p),
	})

	ids := make([]int64, len(forest))
	for i, n := range forest {
		ids[i] = n.ID
	}
	assert.Equal(t, []int64{5, 3, 1}, ids)

	require.Len(t, forest[1].Replies, 2)
	assert.Equal(t, int64(8), forest[1].Replies[0].ID)
	assert.Equal(t, int64(6), forest[1].Replies[1].ID)
}

func TestBuildForest_Empty(t *testing.T) {
	assert.Empty(t, BuildForest(nil))
	assert.Empty(t, BuildForest([]Comment{}))
}

func TestBuildForest_SelfParentDoesNotLoop(t *testing.T) {
	self := int64(1)
	forest := BuildForest([]Comment{flat(1, &self)})
	require.Len(t, forest, 1)
	assert.Empty(t, forest[0].Replies)
}
