package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firewatch/burn-severity-pipeline/internal/compute"
	"github.com/firewatch/burn-severity-pipeline/internal/imagery"
)

func scene(id string, day string, cloud float64) compute.Scene {
	at, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}
	return compute.Scene{ID: id, AcquisitionTime: at, CloudPercent: cloud}
}

func testSet(scenes ...compute.Scene) *Set {
	return &Set{Scenes: scenes, Collection: imagery.NewCollection("test")}
}

func TestFilterDate(t *testing.T) {
	set := testSet(
		scene("a", "2024-01-05", 10),
		scene("b", "2024-01-15", 20),
		scene("c", "2024-02-01", 5),
	)

	start, _ := time.Parse("2006-01-02", "2024-01-01")
	end, _ := time.Parse("2006-01-02", "2024-02-01")
	narrowed := set.FilterDate(start, end)

	t.Run("keeps only scenes in the half-open window", func(t *testing.T) {
		require.Equal(t, 2, narrowed.Len())
		assert.Equal(t, "a", narrowed.Scenes[0].ID)
		assert.Equal(t, "b", narrowed.Scenes[1].ID)
	})

	t.Run("end boundary is exclusive", func(t *testing.T) {
		for _, sc := range narrowed.Scenes {
			assert.NotEqual(t, "c", sc.ID)
		}
	})

	t.Run("original set is untouched", func(t *testing.T) {
		assert.Equal(t, 3, set.Len())
	})

	t.Run("collection description is narrowed in lockstep", func(t *testing.T) {
		root := narrowed.Collection.Graph()
		assert.Equal(t, "filterDate", root.Op)
		assert.Equal(t, "2024-01-01", root.Args["start"])
		assert.Equal(t, "2024-02-01", root.Args["end"])
	})

	t.Run("empty result", func(t *testing.T) {
		s2, _ := time.Parse("2006-01-02", "2025-01-01")
		e2, _ := time.Parse("2006-01-02", "2025-02-01")
		assert.True(t, set.FilterDate(s2, e2).Empty())
	})
}

func TestLeast(t *testing.T) {
	t.Run("lowest cloud percentage wins", func(t *testing.T) {
		set := testSet(
			scene("a", "2024-01-05", 30),
			scene("b", "2024-01-10", 5),
			scene("c", "2024-01-15", 12),
		)
		best, ok := set.Least(100)
		require.True(t, ok)
		assert.Equal(t, "b", best.ID)
	})

	t.Run("threshold excludes cloudy scenes", func(t *testing.T) {
		set := testSet(
			scene("a", "2024-01-05", 80),
			scene("b", "2024-01-10", 95),
		)
		_, ok := set.Least(50)
		assert.False(t, ok)
	})

	t.Run("equal cloud breaks on earlier acquisition", func(t *testing.T) {
		set := testSet(
			scene("late", "2024-01-20", 10),
			scene("early", "2024-01-05", 10),
		)
		best, ok := set.Least(100)
		require.True(t, ok)
		assert.Equal(t, "early", best.ID)
	})

	t.Run("equal cloud and time break on scene ID", func(t *testing.T) {
		set := testSet(
			scene("zzz", "2024-01-05", 10),
			scene("aaa", "2024-01-05", 10),
		)
		best, ok := set.Least(100)
		require.True(t, ok)
		assert.Equal(t, "aaa", best.ID)
	})

	t.Run("empty set", func(t *testing.T) {
		_, ok := testSet().Least(100)
		assert.False(t, ok)
	})
}
