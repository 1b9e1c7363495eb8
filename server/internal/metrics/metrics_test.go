package metrics

import (
	"bytes"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/common/expfmt"
)

func render(t *testing.T, m *Metrics) string {
	t.Helper()
	families, err := m.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			t.Fatalf("MetricFamilyToText: %v", err)
		}
	}
	return buf.String()
}

func TestMetrics_Counters(t *testing.T) {
	m := New(func() float64 { return 3 })
	m.Frame("face")
	m.Frame("face")
	m.Frame("no_face")
	m.Inference(20*time.Millisecond, nil)
	m.Inference(30*time.Millisecond, errors.New("boom"))
	m.SessionOpened()
	m.SummarySaved(nil)
	m.AlertFired("drowsy")

	text := render(t, m)
	for _, want := range []string{
		`healthmirror_frames_total{outcome="face"} 2`,
		`healthmirror_frames_total{outcome="no_face"} 1`,
		`healthmirror_emotion_inference_seconds_count 2`,
		`healthmirror_emotion_inference_errors_total 1`,
		`healthmirror_sessions_opened_total 1`,
		`healthmirror_summaries_saved_total{result="ok"} 1`,
		`healthmirror_alerts_fired_total{rule="drowsy"} 1`,
		`healthmirror_live_sessions 3`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("exposition missing %q\n%s", want, text)
		}
	}
}

func TestMetrics_Values(t *testing.T) {
	m := New(func() float64 { return 1 })
	m.Frame("face")
	m.Inference(time.Millisecond, nil)

	v, err := m.Values()
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if v["healthmirror_frames_total{outcome=face}"] != 1 {
		t.Errorf("frames: got %v", v)
	}
	if v["healthmirror_emotion_inference_seconds_count"] != 1 {
		t.Errorf("inference count: got %v", v["healthmirror_emotion_inference_seconds_count"])
	}
	if v["healthmirror_live_sessions"] != 1 {
		t.Errorf("live sessions: got %v", v["healthmirror_live_sessions"])
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New(nil)
	m.SessionOpened()

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rr.Body)
	if !strings.Contains(string(body), "healthmirror_sessions_opened_total 1") {
		t.Errorf("handler output missing counter:\n%s", body)
	}
}
