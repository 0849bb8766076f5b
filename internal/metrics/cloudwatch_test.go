package metrics

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"gateflow/logger"
)

func TestRenderDashboardSubstitutesNamespaceAndRegion(t *testing.T) {
	body, err := renderDashboard("GateflowStaging", "eu-west-1")
	if err != nil {
		t.Fatalf("renderDashboard: %v", err)
	}
	if strings.Contains(body, `"Gateflow"`) {
		t.Fatalf("default namespace left in dashboard")
	}
	if strings.Contains(body, "ap-south-1") {
		t.Fatalf("default region left in dashboard")
	}

	var parsed struct {
		Widgets []json.RawMessage `json:"widgets"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		t.Fatalf("dashboard not valid JSON: %v", err)
	}
	if len(parsed.Widgets) == 0 {
		t.Fatalf("dashboard has no widgets")
	}
}

func TestToFloat64(t *testing.T) {
	cases := []struct {
		in   interface{}
		want float64
		ok   bool
	}{
		{int(3), 3, true},
		{int64(-2), -2, true},
		{uint64(9), 9, true},
		{float32(1.5), 1.5, true},
		{"7", 0, false},
	}
	for _, c := range cases {
		got, ok := toFloat64(c.in)
		if ok != c.ok || got != c.want {
			t.Errorf("toFloat64(%v) = %v, %v; want %v, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestMetricUnitFromString(t *testing.T) {
	if u, ok := metricUnitFromString("Seconds"); !ok || u != cwtypes.StandardUnitSeconds {
		t.Fatalf("unexpected unit %v %v", u, ok)
	}
	if u, ok := metricUnitFromString("furlongs"); ok || u != cwtypes.StandardUnitCount {
		t.Fatalf("unknown unit should fall back to Count, got %v %v", u, ok)
	}
}

func TestEmitMetricWithoutCloudWatchDoesNotPublish(t *testing.T) {
	resetMetricHandlers()
	events := captureMetrics(t, 1)

	EmitMetric(nil, "gate_ws", "book_updates", 1, "counter", nil)
	if len(events) != 1 {
		t.Fatalf("expected local dispatch even without a CloudWatch client")
	}
}

func TestBuildDatumDimensions(t *testing.T) {
	fields := logger.Fields{
		"unit":     "milliseconds",
		"symbol":   "BTC_USDT",
		"exchange": "gate",
		"count":    3,
		"empty":    "",
	}
	d := buildDatum("gate_ws", "frame_latency", 12, fields)

	if d.Unit != cwtypes.StandardUnitMilliseconds {
		t.Fatalf("unexpected unit %v", d.Unit)
	}
	if aws.ToFloat64(d.Value) != 12 {
		t.Fatalf("unexpected value %v", aws.ToFloat64(d.Value))
	}
	want := []string{"component=gate_ws", "exchange=gate", "symbol=BTC_USDT"}
	if len(d.Dimensions) != len(want) {
		t.Fatalf("unexpected dimensions: %d", len(d.Dimensions))
	}
	for i, dim := range d.Dimensions {
		if got := aws.ToString(dim.Name) + "=" + aws.ToString(dim.Value); got != want[i] {
			t.Fatalf("dimension %d = %s, want %s", i, got, want[i])
		}
	}
}
