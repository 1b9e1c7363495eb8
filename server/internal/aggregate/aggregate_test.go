package aggregate

import (
	"encoding/json"
	"testing"
	"time"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func rec(payload, ts string) Record {
	return Record{Payload: json.RawMessage(payload), CreatedAt: at(ts)}
}

func TestBuild_Empty(t *testing.T) {
	d := Build(nil, time.UTC)
	if d.TotalSessions != 0 {
		t.Errorf("totalSessions: got %d, want 0", d.TotalSessions)
	}
	if len(d.FatigueByHour) != 24 {
		t.Fatalf("fatigueByHour: got %d keys, want 24", len(d.FatigueByHour))
	}
	for h := 0; h < 24; h++ {
		if v, ok := d.FatigueByHour[h]; !ok || v != 0 {
			t.Errorf("hour %d: got %d (present=%v), want 0", h, v, ok)
		}
	}
	if d.AverageScoreTrend == nil || len(d.AverageScoreTrend) != 0 {
		t.Errorf("averageScoreTrend: got %v, want empty object", d.AverageScoreTrend)
	}

	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var wire map[string]json.RawMessage
	json.Unmarshal(b, &wire) //nolint:errcheck
	if string(wire["averageScoreTrend"]) != "{}" {
		t.Errorf("averageScoreTrend on the wire: got %s, want {}", wire["averageScoreTrend"])
	}
}

func TestBuild_SameDayAverage(t *testing.T) {
	d := Build([]Record{
		rec(`{"dominantEmotion":"Happy","avgScore":80,"fatigueEvents":0}`, "2024-03-01T09:00:00Z"),
		rec(`{"dominantEmotion":"Neutral","avgScore":90,"fatigueEvents":0}`, "2024-03-01T17:30:00Z"),
	}, time.UTC)

	if len(d.AverageScoreTrend) != 1 || d.AverageScoreTrend["2024-03-01"] != 85 {
		t.Errorf("trend: got %v, want map[2024-03-01:85]", d.AverageScoreTrend)
	}
	if d.TotalSessions != 2 {
		t.Errorf("totalSessions: got %d, want 2", d.TotalSessions)
	}
}

func TestBuild_FatigueHour(t *testing.T) {
	d := Build([]Record{
		rec(`{"dominantEmotion":"Sad","avgScore":60,"fatigueEvents":3}`, "2024-03-01T14:05:00Z"),
	}, time.UTC)

	if d.FatigueByHour[14] != 3 {
		t.Errorf("hour 14: got %d, want 3", d.FatigueByHour[14])
	}
	if d.TotalFatigueEvents != 3 {
		t.Errorf("totalFatigueEvents: got %d, want 3", d.TotalFatigueEvents)
	}
	for h, v := range d.FatigueByHour {
		if h != 14 && v != 0 {
			t.Errorf("hour %d: got %d, want 0", h, v)
		}
	}
}

func TestBuild_SkipsMalformedAndInvalid(t *testing.T) {
	valid := []Record{
		rec(`{"dominantEmotion":"Happy","avgScore":95,"fatigueEvents":1}`, "2024-03-02T08:00:00Z"),
		rec(`{"dominantEmotion":"Angry","avgScore":40}`, "2024-03-02T10:00:00Z"),
		rec(`{"dominantEmotion":"Surprise","avgScore":100,"fatigueEvents":0}`, "2024-03-03T10:00:00Z"),
	}
	noise := []Record{
		rec(`{not json`, "2024-03-02T09:00:00Z"),
		rec(`[1,2,3]`, "2024-03-02T09:00:00Z"),
		rec(`null`, "2024-03-02T09:00:00Z"),
		rec(`{"dominantEmotion":"Happy","avgScore":90,"fatigueEvents":"two"}`, "2024-03-02T09:00:00Z"),
		rec(`{"dominantEmotion":"N/A","avgScore":90}`, "2024-03-02T09:00:00Z"),
		rec(`{"dominantEmotion":"Analyzing...","avgScore":90}`, "2024-03-02T09:00:00Z"),
		rec(`{"dominantEmotion":"Looking for user...","avgScore":90}`, "2024-03-02T09:00:00Z"),
		rec(`{"dominantEmotion":"Model Error","avgScore":0}`, "2024-03-02T09:00:00Z"),
		rec(`{"dominantEmotion":"Happy","avgScore":"N/A"}`, "2024-03-02T09:00:00Z"),
		rec(`{"dominantEmotion":"Happy","avgScore":88.5}`, "2024-03-02T09:00:00Z"),
		rec(`{"dominantEmotion":"","avgScore":90}`, "2024-03-02T09:00:00Z"),
		rec(`{"avgScore":90}`, "2024-03-02T09:00:00Z"),
	}

	d := Build(append(noise, valid...), time.UTC)
	if d.TotalSessions != len(valid) {
		t.Errorf("totalSessions: got %d, want %d", d.TotalSessions, len(valid))
	}
	wantCounts := map[string]int{"Happy": 1, "Angry": 1, "Surprise": 1}
	for k, v := range wantCounts {
		if d.EmotionCounts[k] != v {
			t.Errorf("emotionCounts[%s]: got %d, want %d", k, d.EmotionCounts[k], v)
		}
	}
	if len(d.EmotionCounts) != len(wantCounts) {
		t.Errorf("emotionCounts: got %v", d.EmotionCounts)
	}
	if d.TotalFatigueEvents != 1 {
		t.Errorf("totalFatigueEvents: got %d, want 1", d.TotalFatigueEvents)
	}

	want := map[string]int{
		"2024-03-02": 68, // (95 + 40) / 2 = 67.5 rounds to even
		"2024-03-03": 100,
	}
	if len(d.AverageScoreTrend) != len(want) {
		t.Fatalf("trend: got %v, want %v", d.AverageScoreTrend, want)
	}
	for date, v := range want {
		if got, ok := d.AverageScoreTrend[date]; !ok || got != v {
			t.Errorf("trend[%s]: got %d (present=%v), want %d", date, got, ok, v)
		}
	}
}

func TestBuild_TrendIsDateKeyedObjectInOrder(t *testing.T) {
	d := Build([]Record{
		rec(`{"dominantEmotion":"Happy","avgScore":70}`, "2024-05-03T10:00:00Z"),
		rec(`{"dominantEmotion":"Happy","avgScore":80}`, "2024-05-01T10:00:00Z"),
		rec(`{"dominantEmotion":"Happy","avgScore":90}`, "2024-05-02T10:00:00Z"),
	}, time.UTC)

	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var wire map[string]json.RawMessage
	if err := json.Unmarshal(b, &wire); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	const want = `{"2024-05-01":80,"2024-05-02":90,"2024-05-03":70}`
	if got := string(wire["averageScoreTrend"]); got != want {
		t.Errorf("averageScoreTrend on the wire: got %s, want %s", got, want)
	}

	var trend map[string]int
	if err := json.Unmarshal(wire["averageScoreTrend"], &trend); err != nil {
		t.Errorf("decode as object: %v", err)
	}
}

func TestBuild_BucketsInLocation(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	d := Build([]Record{
		// 22:30 UTC is 01:30 the next day at UTC+3.
		rec(`{"dominantEmotion":"Fear","avgScore":50,"fatigueEvents":2}`, "2024-06-01T22:30:00Z"),
	}, loc)

	if d.FatigueByHour[1] != 2 {
		t.Errorf("hour 1: got %d, want 2", d.FatigueByHour[1])
	}
	if _, ok := d.AverageScoreTrend["2024-06-02"]; !ok || len(d.AverageScoreTrend) != 1 {
		t.Errorf("trend: got %v, want only 2024-06-02", d.AverageScoreTrend)
	}
}
