package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testItem is a simple struct for testing the generic queue
type testItem struct {
	ID   int
	Name string
}

func ids(items []testItem) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestQueue_New(t *testing.T) {
	q := New[testItem](0)
	require.NotNil(t, q)
	assert.True(t, q.Empty())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_PushAndGetAndEmpty(t *testing.T) {
	q := New[testItem](0)

	q.Push(testItem{ID: 1, Name: "first"})
	q.Push(testItem{ID: 2}, testItem{ID: 3})
	assert.Equal(t, 3, q.Len())

	result := q.GetAndEmpty()
	assert.Equal(t, []int{1, 2, 3}, ids(result))
	assert.Equal(t, "first", result[0].Name)
	assert.True(t, q.Empty())
}

func TestQueue_RequeueKeepsOrder(t *testing.T) {
	q := New[testItem](0)
	q.Push(testItem{ID: 1}, testItem{ID: 2})
	batch := q.GetAndEmpty()

	q.Push(testItem{ID: 3})
	q.Requeue(batch)
	assert.Equal(t, []int{1, 2, 3}, ids(q.GetAndEmpty()))

	q.Requeue(nil)
	assert.True(t, q.Empty())
}

func TestQueue_LimitDropsOldest(t *testing.T) {
	q := New[testItem](3)
	q.Push(testItem{ID: 1}, testItem{ID: 2}, testItem{ID: 3})
	q.Push(testItem{ID: 4}, testItem{ID: 5})

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, uint64(2), q.Dropped())
	assert.Equal(t, []int{3, 4, 5}, ids(q.GetAndEmpty()))

	q.Push(testItem{ID: 6}, testItem{ID: 7})
	q.Requeue([]testItem{{ID: 4}, {ID: 5}})
	assert.Equal(t, uint64(3), q.Dropped())
	assert.Equal(t, []int{5, 6, 7}, ids(q.GetAndEmpty()))
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[testItem](0)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			q.Push(testItem{ID: id})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 100, q.Len())

	results := make(chan []testItem, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- q.GetAndEmpty()
		}()
	}
	wg.Wait()
	close(results)

	total := 0
	for r := range results {
		total += len(r)
	}
	assert.Equal(t, 100, total)
}

func TestQueue_Generics(t *testing.T) {
	q := New[string](0)
	q.Push("a", "b")
	assert.Equal(t, []string{"a", "b"}, q.GetAndEmpty())
}
