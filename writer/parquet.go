package writer

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	appconfig "gateflow/config"
	"gateflow/models"
)

// LevelRow is the Parquet layout of a flattened price level. Prices stay
// decimal text so no precision is lost on the way to storage.
type LevelRow struct {
	Exchange     string `parquet:"name=exchange, type=BYTE_ARRAY, convertedtype=UTF8"`
	Symbol       string `parquet:"name=symbol, type=BYTE_ARRAY, convertedtype=UTF8"`
	Market       string `parquet:"name=market, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp    int64  `parquet:"name=timestamp, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	ReceivedTime int64  `parquet:"name=received_time, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	LastUpdateID int64  `parquet:"name=last_update_id, type=INT64"`
	Side         string `parquet:"name=side, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price        string `parquet:"name=price, type=BYTE_ARRAY, convertedtype=UTF8"`
	Quantity     string `parquet:"name=quantity, type=BYTE_ARRAY, convertedtype=UTF8"`
	Level        int32  `parquet:"name=level, type=INT32"`
	Sequence     string `parquet:"name=sequence, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func toRow(r models.LevelRecord) LevelRow {
	return LevelRow{
		Exchange:     r.Exchange,
		Symbol:       r.Symbol,
		Market:       r.Market,
		Timestamp:    r.Timestamp,
		ReceivedTime: r.ReceivedTime,
		LastUpdateID: int64(r.LastUpdateID),
		Side:         r.Side,
		Price:        r.Price,
		Quantity:     r.Quantity,
		Level:        int32(r.Level),
		Sequence:     r.Sequence,
	}
}

// memoryFile is a write-only source.ParquetFile backed by a buffer.
type memoryFile struct {
	buf *bytes.Buffer
}

func newMemoryFile() *memoryFile {
	return &memoryFile{buf: &bytes.Buffer{}}
}

func (m *memoryFile) Create(string) (source.ParquetFile, error) { return m, nil }
func (m *memoryFile) Open(string) (source.ParquetFile, error)   { return m, nil }

// Seek only reports the current end; the writer never moves backwards.
func (m *memoryFile) Seek(offset int64, whence int) (int64, error) {
	if offset == 0 && (whence == io.SeekCurrent || whence == io.SeekEnd) {
		return int64(m.buf.Len()), nil
	}
	return 0, fmt.Errorf("memory parquet file does not support seeking")
}

func (m *memoryFile) Read(b []byte) (int, error)  { return m.buf.Read(b) }
func (m *memoryFile) Write(b []byte) (int, error) { return m.buf.Write(b) }
func (m *memoryFile) Close() error                { return nil }
func (m *memoryFile) Bytes() []byte               { return m.buf.Bytes() }

func compressionCodec(name string) parquet.CompressionCodec {
	switch name {
	case "snappy":
		return parquet.CompressionCodec_SNAPPY
	case "gzip":
		return parquet.CompressionCodec_GZIP
	default:
		return parquet.CompressionCodec_UNCOMPRESSED
	}
}

// EncodeParquet renders records as one Parquet file. Records without a
// side or a level are skipped.
func EncodeParquet(records []models.LevelRecord, cfg appconfig.ParquetConfig) ([]byte, int, error) {
	fw := newMemoryFile()
	pw, err := writer.NewParquetWriter(fw, new(LevelRow), 4)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = compressionCodec(cfg.Compression)
	if cfg.PageSize > 0 {
		pw.PageSize = int64(cfg.PageSize)
	}

	written := 0
	for _, r := range records {
		if r.Side == "" || r.Level == 0 {
			continue
		}
		if err := pw.Write(toRow(r)); err != nil {
			_ = pw.WriteStop()
			return nil, 0, fmt.Errorf("failed to write parquet record: %w", err)
		}
		written++
	}
	if err := pw.WriteStop(); err != nil {
		return nil, 0, fmt.Errorf("failed to finalize parquet writing: %w", err)
	}
	return fw.Bytes(), written, nil
}
