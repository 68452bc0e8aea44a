package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarconsole/internal/models"
)

var base = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func at(minutes int, items ...models.ServiceItem) models.StatusEntry {
	return models.StatusEntry{Timestamp: base.Add(time.Duration(minutes) * time.Minute), Items: items}
}

func svc(id, name string, status models.ServiceStatus) models.ServiceItem {
	return models.ServiceItem{ID: id, Name: name, Status: status, CurrentVersion: "1.0." + id}
}

func TestBuildServiceTimelines_Buckets(t *testing.T) {
	entries := []models.StatusEntry{
		at(0, svc("1", "orders", models.StatusRunning)),
		at(1, svc("1", "orders", models.StatusRunning)),
		at(10, svc("1", "orders", models.StatusStopped)),
		at(11, svc("1", "orders", models.StatusRunning)),
	}

	got := BuildServiceTimelines(entries, nil, base, base.Add(30*time.Minute), 3)
	require.Len(t, got, 1)
	timeline := got[0].Timeline
	require.Len(t, timeline, 3)

	assert.Equal(t, "state-success", timeline[0].ClassName)
	assert.Nil(t, timeline[0].Details)

	assert.Equal(t, "state-error", timeline[1].ClassName)
	require.Len(t, timeline[1].Details, 1)
	assert.Equal(t, models.StatusStopped, timeline[1].Details[0].Status)
	assert.Equal(t, "1.0.1", timeline[1].Details[0].Version)

	assert.Equal(t, "state-success", timeline[2].ClassName)
	assert.Equal(t, base.Add(30*time.Minute), timeline[2].End)
}

func TestBuildServiceTimelines_CarriesStateIntoQuietBuckets(t *testing.T) {
	// An hour of steady running followed by a stop leaves two recorded changes.
	entries := []models.StatusEntry{
		at(0, svc("1", "orders", models.StatusRunning)),
		at(59, svc("1", "orders", models.StatusStopped)),
	}

	got := BuildServiceTimelines(entries, nil, base, base.Add(time.Hour), 12)
	require.Len(t, got, 1)
	timeline := got[0].Timeline
	require.Len(t, timeline, 12)
	for i := 0; i < 11; i++ {
		assert.Equal(t, "state-success", timeline[i].ClassName, "bucket %d", i)
	}
	assert.Equal(t, "state-error", timeline[11].ClassName)
}

func TestBuildServiceTimelines_MissingBeforeFirstAndAfterRemoval(t *testing.T) {
	entries := []models.StatusEntry{
		at(10, svc("1", "orders", models.StatusStopped), svc("2", "billing", models.StatusRunning)),
		at(20, svc("2", "billing", models.StatusRunning)),
	}

	got := BuildServiceTimelines(entries, nil, base, base.Add(40*time.Minute), 4)
	require.Len(t, got, 2)
	orders := got[1].Timeline
	assert.Equal(t, "orders", got[1].ServiceName)
	assert.Equal(t, []string{"state-missing", "state-error", "state-missing", "state-missing"}, classes(orders))
	require.Len(t, orders[1].Details, 1)
	assert.Equal(t, base.Add(10*time.Minute), orders[1].Details[0].Timestamp)

	billing := got[0].Timeline
	assert.Equal(t, []string{"state-missing", "state-success", "state-success", "state-success"}, classes(billing))
}

func TestBuildServiceTimelines_StoppedStateKeepsDetailInLaterBuckets(t *testing.T) {
	entries := []models.StatusEntry{at(0, svc("1", "orders", models.StatusStopped))}

	got := BuildServiceTimelines(entries, nil, base, base.Add(30*time.Minute), 3)
	require.Len(t, got, 1)
	for _, point := range got[0].Timeline {
		assert.Equal(t, "state-error", point.ClassName)
		require.Len(t, point.Details, 1)
		assert.Equal(t, base, point.Details[0].Timestamp)
	}
}

func classes(points []models.TimelinePoint) []string {
	out := make([]string, 0, len(points))
	for _, p := range points {
		out = append(out, p.ClassName)
	}
	return out
}

func TestBuildServiceTimelines_CapsDetails(t *testing.T) {
	var entries []models.StatusEntry
	for i := 0; i < 10; i++ {
		entries = append(entries, at(i, svc("1", "orders", models.StatusStopped)))
	}

	got := BuildServiceTimelines(entries, nil, base, base.Add(10*time.Minute), 1)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Timeline[0].Details, maxDetailsPerPoint)
}

func TestBuildServiceTimelines_SortsByNameAndIncludesLatest(t *testing.T) {
	entries := []models.StatusEntry{at(0, svc("2", "Zeta", models.StatusRunning))}
	latest := at(1, svc("2", "Zeta", models.StatusRunning), svc("3", "alpha", models.StatusStopped))

	got := BuildServiceTimelines(entries, &latest, base, base.Add(time.Minute), 0)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].ServiceName)
	assert.Len(t, got[0].Timeline, DefaultTimelinePoints)
	assert.Equal(t, "state-missing", got[0].Timeline[0].ClassName)
	assert.Equal(t, "Zeta", got[1].ServiceName)
}

func TestBuildServiceTimelines_NoServices(t *testing.T) {
	assert.Nil(t, BuildServiceTimelines(nil, nil, base, base, 5))
}
