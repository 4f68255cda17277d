package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResponseCache(t *testing.T) {
	t.Run("Should expire entries after the TTL", func(t *testing.T) {
		now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
		c := newResponseCache(4, time.Minute)
		c.now = func() time.Time { return now }

		c.Put("/models/", []byte("[]"), []Tag{TagModels})
		_, ok := c.Get("/models/")
		assert.True(t, ok)

		now = now.Add(time.Minute)
		_, ok = c.Get("/models/")
		assert.False(t, ok)
		assert.Equal(t, 0, c.Len())
	})

	t.Run("Should evict the least recently used entry", func(t *testing.T) {
		c := newResponseCache(2, time.Minute)
		c.Put("a", []byte("1"), nil)
		c.Put("b", []byte("2"), nil)
		c.Get("a")
		c.Put("c", []byte("3"), nil)

		_, okA := c.Get("a")
		_, okB := c.Get("b")
		assert.True(t, okA)
		assert.False(t, okB)
	})

	t.Run("Should invalidate by tag type and id", func(t *testing.T) {
		c := newResponseCache(8, time.Minute)
		c.Put("list", nil, []Tag{TagProcessedList})
		c.Put("count", nil, []Tag{TagProcessedCount})
		c.Put("model-1", nil, []Tag{{Type: "Models", ID: "1"}})
		c.Put("model-2", nil, []Tag{{Type: "Models", ID: "2"}})

		assert.Equal(t, 1, c.Invalidate(TagProcessedCount))
		_, ok := c.Get("list")
		assert.True(t, ok)

		assert.Equal(t, 2, c.Invalidate(TagModels))
		assert.Equal(t, 1, c.Len())
	})

	t.Run("Should store nothing when the TTL is zero", func(t *testing.T) {
		c := newResponseCache(8, 0)
		c.Put("a", []byte("1"), nil)
		assert.Equal(t, 0, c.Len())
	})
}

func TestListParams(t *testing.T) {
	t.Run("Should omit unset filters", func(t *testing.T) {
		assert.Empty(t, ListParams{}.Values().Encode())
	})

	t.Run("Should keep explicit zero and false values", func(t *testing.T) {
		p := ListParams{Hour: Int(0), IsWeekend: Bool(false), OrderDesc: Bool(true), Limit: 50}
		v := p.Values()
		assert.Equal(t, "0", v.Get("hour"))
		assert.Equal(t, "false", v.Get("is_weekend"))
		assert.Equal(t, "true", v.Get("order_desc"))
		assert.Equal(t, "50", v.Get("limit"))
	})

	t.Run("Should leave paging out of count filters", func(t *testing.T) {
		p := ListParams{DtFrom: "2025-04-01", Limit: 50, Offset: 100, OrderDesc: Bool(true)}
		assert.Equal(t, "dt_from=2025-04-01", p.filterValues().Encode())
	})
}

func TestDecoding(t *testing.T) {
	t.Run("Should read counts as numbers or objects", func(t *testing.T) {
		var a, b Count
		assert.NoError(t, a.UnmarshalJSON([]byte(`42`)))
		assert.NoError(t, b.UnmarshalJSON([]byte(`{"total":7}`)))
		assert.Equal(t, Count(42), a)
		assert.Equal(t, Count(7), b)
	})

	t.Run("Should parse naive backend timestamps in the local zone", func(t *testing.T) {
		ts, err := ParseTimestamp("2025-04-01T13:00:00")
		assert.NoError(t, err)
		assert.Equal(t, 13, ts.Hour())
		assert.Equal(t, time.Local, ts.Location())
	})
}
