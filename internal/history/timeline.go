package history

import (
	"sort"
	"strings"
	"time"

	"jarconsole/internal/models"
)

const (
	// DefaultTimelinePoints controls how many dots we generate per service.
	DefaultTimelinePoints = 80
	maxDetailsPerPoint    = 4
)

// sample is one service's state as of a recorded listing. Absent marks a
// listing the service was missing from.
type sample struct {
	Timestamp time.Time
	Status    models.ServiceStatus
	Version   string
	Absent    bool
}

// BuildServiceTimelines converts a history series into compact per-service timelines.
// History only holds listings that changed, so each state stays in force until
// the next listing; buckets with no listing of their own inherit it. Services
// only present in latest still get a row so they show up as missing data.
func BuildServiceTimelines(
	entries []models.StatusEntry,
	latest *models.StatusEntry,
	start, end time.Time,
	points int,
) []models.ServiceTimeline {
	if points <= 0 {
		points = DefaultTimelinePoints
	}
	if !end.After(start) {
		end = start.Add(time.Minute)
	}

	nameMap := make(map[string]string)
	registerName := func(id, name string) {
		if id == "" {
			return
		}
		if name == "" {
			name = id
		}
		if _, ok := nameMap[id]; !ok || nameMap[id] == id {
			nameMap[id] = name
		}
	}

	ordered := make([]models.StatusEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	historyMap := make(map[string][]sample)
	for _, entry := range ordered {
		seen := make(map[string]bool, len(entry.Items))
		for _, item := range entry.Items {
			if item.ID == "" {
				continue
			}
			registerName(item.ID, item.Name)
			seen[item.ID] = true
			historyMap[item.ID] = append(historyMap[item.ID], sample{
				Timestamp: entry.Timestamp,
				Status:    item.Status,
				Version:   item.CurrentVersion,
			})
		}
		for id, samples := range historyMap {
			if !seen[id] && !samples[len(samples)-1].Absent {
				historyMap[id] = append(samples, sample{Timestamp: entry.Timestamp, Absent: true})
			}
		}
	}
	if latest != nil {
		for _, item := range latest.Items {
			registerName(item.ID, item.Name)
		}
	}

	if len(nameMap) == 0 {
		return nil
	}
	ids := make([]string, 0, len(nameMap))
	for id := range nameMap {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := strings.ToLower(nameMap[ids[i]]), strings.ToLower(nameMap[ids[j]])
		if a == b {
			return ids[i] < ids[j]
		}
		return a < b
	})

	result := make([]models.ServiceTimeline, 0, len(ids))
	for _, id := range ids {
		result = append(result, models.ServiceTimeline{
			ServiceID:   id,
			ServiceName: nameMap[id],
			Timeline:    buildTimeline(historyMap[id], start, end, points),
		})
	}
	return result
}

func buildTimeline(samples []sample, start, end time.Time, points int) []models.TimelinePoint {
	output := make([]models.TimelinePoint, 0, points)

	bucketDuration := end.Sub(start) / time.Duration(points)
	if bucketDuration <= 0 {
		bucketDuration = time.Minute
	}

	var carried *sample
	cursor := 0
	for cursor < len(samples) && samples[cursor].Timestamp.Before(start) {
		carried = &samples[cursor]
		cursor++
	}

	for i := 0; i < points; i++ {
		bucketStart := start.Add(time.Duration(i) * bucketDuration)
		bucketEnd := bucketStart.Add(bucketDuration)
		if i == points-1 {
			bucketEnd = end
		}

		var inBucket []sample
		inBucket, cursor = collectBucketSamples(samples, bucketEnd, cursor)

		prior := carried
		if len(inBucket) > 0 && !inBucket[0].Timestamp.After(bucketStart) {
			// Replaced at the bucket's first instant.
			prior = nil
		}
		class, label, details := evaluateBucket(prior, inBucket)
		output = append(output, models.TimelinePoint{
			ClassName: class,
			Label:     label,
			Start:     bucketStart,
			End:       bucketEnd,
			Details:   details,
		})
		if len(inBucket) > 0 {
			carried = &inBucket[len(inBucket)-1]
		}
	}
	return output
}

func collectBucketSamples(samples []sample, end time.Time, cursor int) ([]sample, int) {
	j := cursor
	for j < len(samples) && samples[j].Timestamp.Before(end) {
		j++
	}
	return samples[cursor:j], j
}

// evaluateBucket classes a bucket from the state carried into it plus the
// changes recorded inside it.
func evaluateBucket(carried *sample, changes []sample) (className, label string, details []models.TimelineDetail) {
	states := make([]sample, 0, len(changes)+1)
	if carried != nil {
		states = append(states, *carried)
	}
	states = append(states, changes...)

	known := false
	for _, s := range states {
		if s.Absent {
			continue
		}
		known = true
		if s.Status == models.StatusRunning {
			continue
		}
		if len(details) < maxDetailsPerPoint {
			details = append(details, models.TimelineDetail{
				Timestamp: s.Timestamp,
				Status:    s.Status,
				Version:   s.Version,
			})
		}
	}
	switch {
	case len(details) > 0:
		return "state-error", "Stopped", details
	case known:
		return "state-success", "Running", nil
	default:
		return "state-missing", "No data", nil
	}
}
