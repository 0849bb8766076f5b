package writer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const maxManifestSnapshots = 100

// DataFile describes one uploaded Parquet object.
type DataFile struct {
	Path        string            `json:"path"`
	FileSize    int64             `json:"file_size_in_bytes"`
	RecordCount int64             `json:"record_count"`
	Partition   map[string]string `json:"partition"`
	Timestamp   time.Time         `json:"-"`
}

type manifestEntry struct {
	Status   int      `json:"status"`
	DataFile DataFile `json:"data_file"`
}

type tableSnapshot struct {
	SnapshotID  int64  `json:"snapshot-id"`
	TimestampMs int64  `json:"timestamp-ms"`
	Manifest    string `json:"manifest-list"`
}

type tableMetadata struct {
	FormatVersion     int             `json:"format-version"`
	TableUUID         string          `json:"table-uuid"`
	Location          string          `json:"location"`
	CurrentSnapshotID int64           `json:"current-snapshot-id"`
	Snapshots         []tableSnapshot `json:"snapshots"`
}

// Manifest keeps Iceberg-style table metadata next to the Parquet files:
// one manifest object per upload and a metadata.json listing the most
// recent snapshots.
type Manifest struct {
	client    ObjectPutter
	bucket    string
	prefix    string
	tableUUID string

	mu        sync.Mutex
	snapshots []tableSnapshot
}

func NewManifest(client ObjectPutter, bucket, prefix string) *Manifest {
	if prefix == "" {
		prefix = "metadata"
	}
	return &Manifest{
		client:    client,
		bucket:    bucket,
		prefix:    prefix,
		tableUUID: uuid.NewString(),
	}
}

// AddFile records df as a new snapshot and rewrites metadata.json.
func (m *Manifest) AddFile(ctx context.Context, df DataFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapID := df.Timestamp.UnixNano()
	if n := len(m.snapshots); n > 0 && snapID <= m.snapshots[n-1].SnapshotID {
		snapID = m.snapshots[n-1].SnapshotID + 1
	}
	manifestKey := path.Join(m.prefix, fmt.Sprintf("manifest-%d.json", snapID))

	body, err := json.Marshal([]manifestEntry{{Status: 1, DataFile: df}})
	if err != nil {
		return err
	}
	if err := m.put(ctx, manifestKey, body); err != nil {
		return err
	}

	m.snapshots = append(m.snapshots, tableSnapshot{
		SnapshotID:  snapID,
		TimestampMs: df.Timestamp.UnixMilli(),
		Manifest:    manifestKey,
	})
	if len(m.snapshots) > maxManifestSnapshots {
		m.snapshots = m.snapshots[len(m.snapshots)-maxManifestSnapshots:]
	}

	meta, err := json.MarshalIndent(tableMetadata{
		FormatVersion:     2,
		TableUUID:         m.tableUUID,
		Location:          "s3://" + m.bucket,
		CurrentSnapshotID: snapID,
		Snapshots:         m.snapshots,
	}, "", "  ")
	if err != nil {
		return err
	}
	return m.put(ctx, path.Join(m.prefix, "metadata.json"), meta)
}

func (m *Manifest) put(ctx context.Context, key string, body []byte) error {
	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}
