package logger

import (
	"context"
	"encoding/json"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

var (
	cwClient    *cloudwatch.Client
	cwNamespace = "Gateflow"
	cwDashboard = "Gateflow-Runtime"
)

// Series shown on the runtime dashboard, grouped by widget title.
var runtimeWidgets = []struct {
	title   string
	stat    string
	metrics []string
}{
	{"Gateflow System", "Average", []string{"CPUPercent", "MemoryMB", "DiskMB"}},
	{"Gateflow Pipeline", "Maximum", []string{"FramesRead", "FrameErrors", "BookUpdates", "SequenceRegressions", "RestCalls", "RestFailures", "S3Writes", "KafkaWrites"}},
}

// InitCloudWatch enables runtime metric publishing. An empty region falls
// back to AWS_REGION. On failure publishing stays off.
func InitCloudWatch(region, namespace, dashboard string) {
	log := GetLogger().WithComponent("cloudwatch")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return
	}

	cwClient = cloudwatch.NewFromConfig(cfg)
	if namespace != "" {
		cwNamespace = namespace
	}
	if dashboard != "" {
		cwDashboard = dashboard
	}
	log.WithFields(Fields{"region": region, "namespace": cwNamespace}).Info("initialized CloudWatch client")

	CreateDefaultDashboard(ctx)
}

func publishMetrics(ctx context.Context, data []cwtypes.MetricDatum) {
	if cwClient == nil || len(data) == 0 {
		return
	}
	if _, err := cwClient.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(cwNamespace),
		MetricData: data,
	}); err != nil {
		GetLogger().WithComponent("cloudwatch").WithError(err).Warn("failed to publish CloudWatch metrics")
		return
	}
	GetLogger().WithComponent("cloudwatch").WithField("count", len(data)).Debug("published metrics to CloudWatch")
}

// runtimeDashboard renders the dashboard body for namespace.
func runtimeDashboard(namespace string) ([]byte, error) {
	type properties struct {
		Metrics [][]string `json:"metrics"`
		Period  int        `json:"period"`
		Stat    string     `json:"stat"`
		Title   string     `json:"title"`
	}
	type widget struct {
		Type       string     `json:"type"`
		Width      int        `json:"width"`
		Height     int        `json:"height"`
		Properties properties `json:"properties"`
	}

	widgets := make([]widget, 0, len(runtimeWidgets))
	for _, w := range runtimeWidgets {
		series := make([][]string, 0, len(w.metrics))
		for _, m := range w.metrics {
			series = append(series, []string{namespace, m})
		}
		widgets = append(widgets, widget{
			Type:   "metric",
			Width:  24,
			Height: 6,
			Properties: properties{
				Metrics: series,
				Period:  60,
				Stat:    w.stat,
				Title:   w.title,
			},
		})
	}
	return json.Marshal(struct {
		Widgets []widget `json:"widgets"`
	}{widgets})
}

// CreateDefaultDashboard writes the runtime dashboard once CloudWatch is
// configured. Failures are logged only.
func CreateDefaultDashboard(ctx context.Context) {
	if cwClient == nil {
		return
	}
	log := GetLogger().WithComponent("cloudwatch")
	body, err := runtimeDashboard(cwNamespace)
	if err != nil {
		log.WithError(err).Warn("failed to render CloudWatch dashboard")
		return
	}
	if _, err := cwClient.PutDashboard(ctx, &cloudwatch.PutDashboardInput{
		DashboardName: aws.String(cwDashboard),
		DashboardBody: aws.String(string(body)),
	}); err != nil {
		log.WithError(err).Warn("failed to create CloudWatch dashboard")
	}
}
