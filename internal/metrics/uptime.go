package metrics

import (
	"math"
	"sort"
	"time"

	"jarconsole/internal/models"
)

// ServiceUptime summarises how long a JAR service was seen running.
type ServiceUptime struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	RunningPercent float64              `json:"running_percent"`
	Changes        int                  `json:"changes"`
	RunningSeconds float64              `json:"running_seconds"`
	StoppedSeconds float64              `json:"stopped_seconds"`
	LastStatus     models.ServiceStatus `json:"last_status,omitempty"`
	LastChanged    string               `json:"last_changed,omitempty"`
}

// ComputeServiceUptime weighs each recorded listing by how long it stayed
// current. History only holds listings that differ from their predecessor, so
// a listing is in force from its timestamp until the next one, and the newest
// one until end. A service missing from a listing accrues no time while absent.
func ComputeServiceUptime(entries []models.StatusEntry, end time.Time) []ServiceUptime {
	type acc struct {
		name       string
		running    time.Duration
		stopped    time.Duration
		changes    int
		lastStatus models.ServiceStatus
		lastChange time.Time
		present    bool
	}

	sorted := make([]models.StatusEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	state := make(map[string]*acc)
	for i, entry := range sorted {
		until := end
		if i+1 < len(sorted) {
			until = sorted[i+1].Timestamp
		}
		span := until.Sub(entry.Timestamp)
		if span < 0 {
			span = 0
		}

		seen := make(map[string]bool, len(entry.Items))
		for _, item := range entry.Items {
			if item.ID == "" {
				continue
			}
			a := state[item.ID]
			if a == nil {
				a = &acc{}
				state[item.ID] = a
			}
			if item.Name != "" {
				a.name = item.Name
			}
			if !a.present || a.lastStatus != item.Status {
				a.changes++
				a.lastStatus = item.Status
				a.lastChange = entry.Timestamp
			}
			seen[item.ID] = true
			if item.Running() {
				a.running += span
			} else {
				a.stopped += span
			}
		}
		for id, a := range state {
			a.present = seen[id]
		}
	}
	if len(state) == 0 {
		return nil
	}

	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make([]ServiceUptime, 0, len(keys))
	for _, id := range keys {
		data := state[id]
		percent := 0.0
		if total := data.running + data.stopped; total > 0 {
			percent = float64(data.running) / float64(total) * 100
		}
		result := ServiceUptime{
			ID:             id,
			Name:           data.name,
			RunningPercent: round2(percent),
			Changes:        data.changes,
			RunningSeconds: round2(data.running.Seconds()),
			StoppedSeconds: round2(data.stopped.Seconds()),
			LastStatus:     data.lastStatus,
		}
		if !data.lastChange.IsZero() {
			result.LastChanged = data.lastChange.UTC().Format(time.RFC3339)
		}
		results = append(results, result)
	}
	return results
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
