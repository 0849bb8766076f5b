package metrics

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"gateflow/logger"
)

//go:embed dashboard.json
var dashboardTemplate string

const (
	defaultNamespace = "Gateflow"
	templateRegion   = "ap-south-1"
	// CloudWatch rejects data points with more dimensions than this.
	maxDimensions = 30
)

// sink is the CloudWatch destination. A nil client means metrics are only
// logged and dispatched locally.
type sink struct {
	client    *cloudwatch.Client
	namespace string
	dashboard string
	region    string
}

var cloudSink atomic.Pointer[sink]

func init() {
	cloudSink.Store(&sink{namespace: defaultNamespace, dashboard: defaultNamespace})
}

// InitCloudWatch turns on publishing to namespace in region and applies the
// embedded dashboard. If AWS configuration cannot be loaded publishing stays
// off and a warning is logged.
func InitCloudWatch(region, namespace, dashboard string) {
	log := logger.GetLogger().WithComponent("cloudwatch")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	ctx := context.Background()
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		log.WithError(err).Warn("failed to load AWS configuration; CloudWatch metrics disabled")
		return
	}

	next := *cloudSink.Load()
	next.client = cloudwatch.NewFromConfig(awsCfg)
	if namespace != "" {
		next.namespace = namespace
	}
	if dashboard != "" {
		next.dashboard = dashboard
	}
	next.region = region
	if awsCfg.Region != "" {
		next.region = awsCfg.Region
	}
	cloudSink.Store(&next)

	log.WithFields(logger.Fields{"region": next.region, "namespace": next.namespace}).Info("initialized CloudWatch client")
	if err := CreateDashboardFromTemplate(ctx); err != nil {
		log.WithError(err).Warn("failed to create CloudWatch dashboard")
	}
}

// EmitMetric logs the metric, hands it to registered handlers and, when
// CloudWatch is initialised, publishes numeric values.
func EmitMetric(log *logger.Log, component string, metric string, value interface{}, metricType string, fields logger.Fields) {
	m, ok := recordMetric(log, component, metric, value, metricType, fields)
	if !ok {
		return
	}
	s := cloudSink.Load()
	if s == nil || s.client == nil {
		return
	}
	v, ok := toFloat64(m.Value)
	if !ok {
		logger.GetLogger().WithComponent("cloudwatch").WithFields(logger.Fields{"metric": m.Name}).Debug("non-numeric metric value; skipping publish")
		return
	}
	s.put(context.Background(), buildDatum(m.Component, m.Name, v, m.Fields))
}

// CreateDashboardFromTemplate writes the embedded dashboard with the active
// namespace and region. It is a no-op until InitCloudWatch succeeds.
func CreateDashboardFromTemplate(ctx context.Context) error {
	s := cloudSink.Load()
	if s == nil || s.client == nil {
		return nil
	}
	body, err := renderDashboard(s.namespace, s.region)
	if err != nil {
		return err
	}
	_, err = s.client.PutDashboard(ctx, &cloudwatch.PutDashboardInput{
		DashboardName: aws.String(s.dashboard),
		DashboardBody: aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("put dashboard %s: %w", s.dashboard, err)
	}
	logger.GetLogger().WithComponent("cloudwatch").Debug("updated CloudWatch dashboard from template")
	return nil
}

func renderDashboard(namespace, region string) (string, error) {
	body := dashboardTemplate
	if namespace != "" {
		body = strings.ReplaceAll(body, fmt.Sprintf("%q", defaultNamespace), fmt.Sprintf("%q", namespace))
	}
	if region != "" {
		body = strings.ReplaceAll(body, fmt.Sprintf("%q", templateRegion), fmt.Sprintf("%q", region))
	}
	if !json.Valid([]byte(body)) {
		return "", fmt.Errorf("dashboard template is not valid JSON after substitution")
	}
	return body, nil
}

// buildDatum turns a metric into a CloudWatch data point. String fields
// become dimensions after "component", in key order. The "unit" field picks
// the unit and defaults to Count.
func buildDatum(component, metric string, value float64, fields logger.Fields) cwtypes.MetricDatum {
	unit := cwtypes.StandardUnitCount
	if raw, ok := fields["unit"].(string); ok {
		if u, found := metricUnitFromString(raw); found {
			unit = u
		}
	}

	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		switch k {
		case "metric", "metric_type", "value", "unit", "component":
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	dims := []cwtypes.Dimension{{Name: aws.String("component"), Value: aws.String(component)}}
	for _, k := range keys {
		if len(dims) == maxDimensions {
			break
		}
		dims = append(dims, cwtypes.Dimension{Name: aws.String(k), Value: aws.String(fields[k].(string))})
	}

	return cwtypes.MetricDatum{
		MetricName: aws.String(metric),
		Dimensions: dims,
		Unit:       unit,
		Value:      aws.Float64(value),
	}
}

func (s *sink) put(ctx context.Context, data ...cwtypes.MetricDatum) {
	if len(data) == 0 {
		return
	}
	log := logger.GetLogger().WithComponent("cloudwatch")
	if _, err := s.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(s.namespace),
		MetricData: data,
	}); err != nil {
		log.WithError(err).Warn("failed to publish CloudWatch metrics")
		return
	}
	log.WithFields(logger.Fields{"metric": aws.ToString(data[0].MetricName), "count": len(data)}).Debug("published metrics to CloudWatch")
}

func toFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func metricUnitFromString(unit string) (cwtypes.StandardUnit, bool) {
	switch strings.ToLower(unit) {
	case "count":
		return cwtypes.StandardUnitCount, true
	case "percent":
		return cwtypes.StandardUnitPercent, true
	case "seconds":
		return cwtypes.StandardUnitSeconds, true
	case "milliseconds":
		return cwtypes.StandardUnitMilliseconds, true
	case "bytes":
		return cwtypes.StandardUnitBytes, true
	default:
		return cwtypes.StandardUnitCount, false
	}
}
