package aggregate

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/11-rizwan/health-mirror-stage-3/pkg/types"
)

// Record is one stored session summary.
type Record struct {
	Payload   json.RawMessage
	CreatedAt time.Time
}

// summary is the lenient view of a stored payload.
type summary struct {
	emotion       string
	score         types.Score
	fatigueEvents int
}

var errNotInteger = errors.New("fatigueEvents is not an integer")

// parse decodes a payload. Only structural problems are errors; field
// values that merely disqualify the record are reported by valid.
func parse(payload []byte) (summary, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return summary{}, err
	}
	if fields == nil {
		return summary{}, errors.New("payload is null")
	}

	var s summary
	if raw, ok := fields["dominantEmotion"]; ok {
		_ = json.Unmarshal(raw, &s.emotion) // a non-string leaves it empty
	}
	if raw, ok := fields["avgScore"]; ok {
		_ = json.Unmarshal(raw, &s.score)
	}
	if raw, ok := fields["fatigueEvents"]; ok {
		var n types.Score
		_ = json.Unmarshal(raw, &n)
		if !n.Valid {
			return summary{}, errNotInteger
		}
		s.fatigueEvents = n.Value
	}
	return s, nil
}

func (s summary) valid() bool {
	return types.IsEmotion(s.emotion) && s.score.Valid
}

type dayTotal struct {
	sum, count int
}

// Build aggregates records into a dashboard, bucketing by day and hour in loc.
func Build(records []Record, loc *time.Location) types.Dashboard {
	if loc == nil {
		loc = time.UTC
	}
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	out := types.Dashboard{
		EmotionCounts: make(map[string]int),
		FatigueByHour: make(map[int]int, 24),
	}
	for h := 0; h < 24; h++ {
		out.FatigueByHour[h] = 0
	}
	days := make(map[string]*dayTotal)

	for _, r := range sorted {
		s, err := parse(r.Payload)
		if err != nil {
			slog.Warn("aggregate: skipping malformed session record",
				"created_at", r.CreatedAt, "err", err)
			continue
		}
		if !s.valid() {
			continue
		}

		out.TotalSessions++
		out.EmotionCounts[s.emotion]++
		out.TotalFatigueEvents += s.fatigueEvents

		local := r.CreatedAt.In(loc)
		key := local.Format(time.DateOnly)
		d, ok := days[key]
		if !ok {
			d = &dayTotal{}
			days[key] = d
		}
		d.sum += s.score.Value
		d.count++

		if s.fatigueEvents > 0 {
			out.FatigueByHour[local.Hour()] += s.fatigueEvents
		}
	}

	// encoding/json writes map keys sorted, and ISO dates sort by day.
	out.AverageScoreTrend = make(map[string]int, len(days))
	for date, d := range days {
		out.AverageScoreTrend[date] = int(math.RoundToEven(float64(d.sum) / float64(d.count)))
	}
	return out
}
