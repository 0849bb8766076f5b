package logger

import (
	"encoding/json"
	"testing"
)

func TestRuntimeDashboardUsesNamespace(t *testing.T) {
	body, err := runtimeDashboard("GateflowTest")
	if err != nil {
		t.Fatalf("runtimeDashboard: %v", err)
	}

	var parsed struct {
		Widgets []struct {
			Properties struct {
				Metrics [][]string `json:"metrics"`
				Title   string     `json:"title"`
			} `json:"properties"`
		} `json:"widgets"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		t.Fatalf("dashboard is not valid JSON: %v", err)
	}
	if len(parsed.Widgets) != len(runtimeWidgets) {
		t.Fatalf("expected %d widgets, got %d", len(runtimeWidgets), len(parsed.Widgets))
	}
	for _, w := range parsed.Widgets {
		for _, series := range w.Properties.Metrics {
			if len(series) != 2 || series[0] != "GateflowTest" {
				t.Fatalf("unexpected series in %q: %v", w.Properties.Title, series)
			}
		}
	}
}
