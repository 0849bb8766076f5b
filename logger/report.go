package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type channelStat struct {
	messages int64
	bytes    int64
}

var (
	errorsStream        int64
	errorsRest          int64
	warnsStream         int64
	warnsRest           int64
	framesRead          int64
	frameErrors         int64
	bookUpdates         int64
	sequenceRegressions int64
	restCalls           int64
	restFailures        int64
	snapshotReads       int64
	s3Writes            int64
	kafkaWrites         int64
	channels            sync.Map // map[string]*channelStat
)

// Counters is a point-in-time copy of the runtime counters.
type Counters struct {
	FramesRead          int64
	FrameErrors         int64
	BookUpdates         int64
	SequenceRegressions int64
	RestCalls           int64
	RestFailures        int64
	SnapshotReads       int64
	S3Writes            int64
	KafkaWrites         int64
}

func recordWarn(component string) {
	if strings.Contains(component, "ws") || strings.Contains(component, "stream") {
		atomic.AddInt64(&warnsStream, 1)
	} else if strings.Contains(component, "rest") || strings.Contains(component, "snapshot") {
		atomic.AddInt64(&warnsRest, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "ws") || strings.Contains(component, "stream") {
		atomic.AddInt64(&errorsStream, 1)
	} else if strings.Contains(component, "rest") || strings.Contains(component, "snapshot") {
		atomic.AddInt64(&errorsRest, 1)
	}
}

// RecordFrame counts one inbound WebSocket frame. Frames that failed to
// decode are counted separately.
func RecordFrame(size int, failed bool) {
	atomic.AddInt64(&framesRead, 1)
	if failed {
		atomic.AddInt64(&frameErrors, 1)
	}
	recordChannel("gate_ws", size)
}

func RecordBookUpdate() {
	atomic.AddInt64(&bookUpdates, 1)
}

func RecordSequenceRegression() {
	atomic.AddInt64(&sequenceRegressions, 1)
}

func RecordRestCall(failed bool) {
	atomic.AddInt64(&restCalls, 1)
	if failed {
		atomic.AddInt64(&restFailures, 1)
	}
}

func IncrementSnapshotRead(size int) {
	atomic.AddInt64(&snapshotReads, 1)
	recordChannel("snapshot_rest", size)
}

func IncrementS3Write(size int64) {
	atomic.AddInt64(&s3Writes, 1)
	recordChannel("s3_write", int(size))
}

func IncrementKafkaWrite(size int64) {
	atomic.AddInt64(&kafkaWrites, 1)
	recordChannel("kafka_write", int(size))
}

// Snapshot returns the current counter values.
func Snapshot() Counters {
	return Counters{
		FramesRead:          atomic.LoadInt64(&framesRead),
		FrameErrors:         atomic.LoadInt64(&frameErrors),
		BookUpdates:         atomic.LoadInt64(&bookUpdates),
		SequenceRegressions: atomic.LoadInt64(&sequenceRegressions),
		RestCalls:           atomic.LoadInt64(&restCalls),
		RestFailures:        atomic.LoadInt64(&restFailures),
		SnapshotReads:       atomic.LoadInt64(&snapshotReads),
		S3Writes:            atomic.LoadInt64(&s3Writes),
		KafkaWrites:         atomic.LoadInt64(&kafkaWrites),
	}
}

func recordChannel(name string, size int) {
	v, _ := channels.LoadOrStore(name, &channelStat{})
	cs := v.(*channelStat)
	atomic.AddInt64(&cs.messages, 1)
	atomic.AddInt64(&cs.bytes, int64(size))
}

// StartReport begins periodic logging of system and pipeline statistics
// until ctx is cancelled.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	netStats, _ := gnet.IOCounters(false)
	channelData := map[string]map[string]int64{}
	channels.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*channelStat)
		channelData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&cs.messages),
			"bytes":    atomic.LoadInt64(&cs.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}
	memUsed, diskUsed := uint64(0), uint64(0)
	if memStats != nil {
		memUsed = memStats.Used
	}
	if diskStats != nil {
		diskUsed = diskStats.Used
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	c := Snapshot()
	fields := Fields{
		"errors_stream":        atomic.LoadInt64(&errorsStream),
		"errors_rest":          atomic.LoadInt64(&errorsRest),
		"warns_stream":         atomic.LoadInt64(&warnsStream),
		"warns_rest":           atomic.LoadInt64(&warnsRest),
		"frames_read":          c.FramesRead,
		"frame_errors":         c.FrameErrors,
		"book_updates":         c.BookUpdates,
		"sequence_regressions": c.SequenceRegressions,
		"rest_calls":           c.RestCalls,
		"rest_failures":        c.RestFailures,
		"snapshot_reads":       c.SnapshotReads,
		"s3_writes":            c.S3Writes,
		"kafka_writes":         c.KafkaWrites,
		"goroutines":           runtime.NumGoroutine(),
		"cpu_percent":          cpuPct,
		"memory_mb":            int64(memUsed) / 1024 / 1024,
		"disk_mb":              int64(diskUsed) / 1024 / 1024,
		"channels":             channelData,
		"net_bytes_sent":       int64(bytesSent),
		"net_bytes_recv":       int64(bytesRecv),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	count := func(name string, v int64) cwtypes.MetricDatum {
		return cwtypes.MetricDatum{MetricName: aws.String(name), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(v))}
	}

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memUsed) / 1024 / 1024)},
		{MetricName: aws.String("DiskMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(diskUsed) / 1024 / 1024)},
		count("ErrorsStream", fields["errors_stream"].(int64)),
		count("ErrorsRest", fields["errors_rest"].(int64)),
		count("FramesRead", c.FramesRead),
		count("FrameErrors", c.FrameErrors),
		count("BookUpdates", c.BookUpdates),
		count("SequenceRegressions", c.SequenceRegressions),
		count("RestCalls", c.RestCalls),
		count("RestFailures", c.RestFailures),
		count("S3Writes", c.S3Writes),
		count("KafkaWrites", c.KafkaWrites),
		{MetricName: aws.String("NetBytesSent"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesSent))},
		{MetricName: aws.String("NetBytesRecv"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesRecv))},
	}

	for name, stats := range channelData {
		dims := []cwtypes.Dimension{{Name: aws.String("Channel"), Value: aws.String(name)}}
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("ChannelMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("ChannelBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: dims,
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
