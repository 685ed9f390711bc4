package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRing_AppendBelowCapacity(t *testing.T) {
	r := NewRing[int](3)
	r.Append(1)
	r.Append(2)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 3, r.Cap())
	assert.Equal(t, []int{1, 2}, r.Items())
}

func TestRing_EvictsOldestFirst(t *testing.T) {
	r := NewRing[int](3)
	for i := 1; i <= 5; i++ {
		r.Append(i)
	}

	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []int{3, 4, 5}, r.Items())
}

func TestRing_KeepsMostRecentThousand(t *testing.T) {
	r := NewRing[int](0)
	for i := 0; i < 2500; i++ {
		r.Append(i)
	}

	items := r.Items()
	assert.Len(t, items, DefaultCapacity)
	assert.Equal(t, 1500, items[0])
	assert.Equal(t, 2499, items[len(items)-1])
	for i := 1; i < len(items); i++ {
		assert.Equal(t, items[i-1]+1, items[i])
	}
}

func TestRing_Last(t *testing.T) {
	r := NewRing[string](4)
	for _, s := range []string{"a", "b", "c", "d", "e"} {
		r.Append(s)
	}

	tests := []struct {
		name string
		n    int
		want []string
	}{
		{name: "two newest", n: 2, want: []string{"d", "e"}},
		{name: "zero means all", n: 0, want: []string{"b", "c", "d", "e"}},
		{name: "more than size", n: 10, want: []string{"b", "c", "d", "e"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Last(tt.n))
		})
	}
}

func TestRing_Filter(t *testing.T) {
	r := NewRing[int](10)
	for i := 0; i < 10; i++ {
		r.Append(i)
	}

	even := func(v int) bool { return v%2 == 0 }
	assert.Equal(t, []int{0, 2, 4, 6, 8}, r.Filter(even, 0))
	assert.Equal(t, []int{6, 8}, r.Filter(even, 2))
}

func TestRing_Empty(t *testing.T) {
	r := NewRing[int](2)
	assert.Empty(t, r.Items())
	assert.Empty(t, r.Last(5))
}
