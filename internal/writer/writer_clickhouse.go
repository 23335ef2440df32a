package writer

import (
	"Go2FctSpectra/internal/config"
	"Go2FctSpectra/internal/model"
	"Go2FctSpectra/internal/stats"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	log "github.com/sirupsen/logrus"
)

const createSummaryTableStatement = `
CREATE TABLE IF NOT EXISTS fct_file_summaries (
    Timestamp           DateTime,
    Pattern             String,
    Path                String,
    Simulations         UInt32,
    ValidFlows          UInt32,
    SmallFlows          UInt32,
    MiddleFlows         UInt32,
    LargeFlows          UInt32,
    TxPackets           UInt64,
    RxPackets           UInt64,
    LostPackets         UInt64,
    LossRate            Float64,
    MeanFCT             Float64,
    FCT99               Float64,
    MeanSmallFCT        Nullable(Float64),
    SmallFCT99          Nullable(Float64),
    MeanMiddleFCT       Nullable(Float64),
    MeanLargeFCT        Nullable(Float64),
    MeanLargeThroughput Nullable(Float64)
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Timestamp, Path);
`

const createFlowTableStatement = `
CREATE TABLE IF NOT EXISTS fct_flows (
    Timestamp   DateTime,
    Path        String,
    FlowID      UInt32,
    SrcIP       Nullable(String),
    DstIP       Nullable(String),
    SrcPort     Nullable(UInt16),
    DstPort     Nullable(UInt16),
    Protocol    Nullable(UInt8),
    SizeClass   LowCardinality(String),
    TxBytes     UInt64,
    RxBytes     UInt64,
    TxPackets   UInt64,
    RxPackets   UInt64,
    LostPackets UInt64,
    FCT         Float64,
    Throughput  Float64,
    DelayMean   Nullable(Float64)
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Timestamp, Path, FlowID);
`

type flowRow struct {
	path string
	flow *model.Flow
}

// ClickHouseWriter stores file summaries and the valid flows behind them.
// Flows are buffered as they are observed and inserted with the report.
type ClickHouseWriter struct {
	conn driver.Conn

	mu    sync.Mutex
	flows []flowRow
}

// NewClickHouseWriter creates a new ClickHouse writer.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (*ClickHouseWriter, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	for _, stmt := range []string{createSummaryTableStatement, createFlowTableStatement} {
		if err := conn.Exec(context.Background(), stmt); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}
	log.Info("Successfully connected to ClickHouse and ensured tables exist.")

	return &ClickHouseWriter{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (driver.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	return conn, nil
}

func (w *ClickHouseWriter) Name() string { return "clickhouse" }

func (w *ClickHouseWriter) ObserveFlow(path string, f *model.Flow) {
	w.mu.Lock()
	w.flows = append(w.flows, flowRow{path: path, flow: f})
	w.mu.Unlock()
}

// Write inserts the file summaries and the buffered flows.
func (w *ClickHouseWriter) Write(report *model.Report) error {
	ctx := context.Background()
	now := time.Now()

	if err := w.writeSummaries(ctx, now, report); err != nil {
		return err
	}

	w.mu.Lock()
	flows := w.flows
	w.flows = nil
	w.mu.Unlock()
	return w.writeFlows(ctx, now, flows)
}

func (w *ClickHouseWriter) writeSummaries(ctx context.Context, now time.Time, report *model.Report) error {
	if report.FileCount() == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO fct_file_summaries")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, s := range report.Files {
		err = batch.Append(
			now,
			report.Pattern,
			s.Path,
			uint32(s.Simulations),
			uint32(s.ValidFlows),
			uint32(s.SmallFlows),
			uint32(s.MiddleFlows),
			uint32(s.LargeFlows),
			s.TotalTxPackets,
			s.TotalRxPackets,
			s.TotalLostPackets,
			s.LossRate,
			s.MeanFCT,
			s.FCT99,
			s.MeanSmallFCT,
			s.SmallFCT99,
			s.MeanMiddleFCT,
			s.MeanLargeFCT,
			s.MeanLargeThroughput,
		)
		if err != nil {
			return fmt.Errorf("failed to append summary to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	log.Infof("Wrote %d file summaries to ClickHouse", report.FileCount())
	return nil
}

func (w *ClickHouseWriter) writeFlows(ctx context.Context, now time.Time, rows []flowRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(ctx, "INSERT INTO fct_flows")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	for _, row := range rows {
		f := row.flow
		var srcIP, dstIP *string
		var srcPort, dstPort *uint16
		var proto *uint8
		if t := f.FiveTuple; t != nil {
			src, dst := t.SourceAddress.String(), t.DestinationAddress.String()
			srcIP, dstIP = &src, &dst
			srcPort, dstPort = &t.SourcePort, &t.DestinationPort
			proto = &t.Protocol
		}
		err = batch.Append(
			now,
			row.path,
			uint32(f.ID),
			srcIP,
			dstIP,
			srcPort,
			dstPort,
			proto,
			stats.Classify(f).String(),
			f.TxBytes,
			f.RxBytes,
			f.TxPackets,
			f.RxPackets,
			f.LostPackets,
			model.ValueOr(f.FCT, 0),
			model.ValueOr(f.Throughput, 0),
			f.DelayMean,
		)
		if err != nil {
			return fmt.Errorf("failed to append flow to batch: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	log.Infof("Wrote %d flows to ClickHouse", len(rows))
	return nil
}

func (w *ClickHouseWriter) Close() error {
	return w.conn.Close()
}
