package query

import (
	"Go2FctSpectra/internal/config"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// HistoryRequest selects stored file summaries. Zero fields do not filter.
type HistoryRequest struct {
	PathLike string
	Since    time.Time
	Until    time.Time
	Limit    int
}

// StoredSummary is one row of fct_file_summaries.
type StoredSummary struct {
	Timestamp  time.Time
	Path       string
	ValidFlows uint32
	MeanFCT    float64
	FCT99      float64
	SmallFCT99 *float64
	LossRate   float64
}

// TraceRequest selects the stored flows of one file, optionally narrowed by
// five-tuple columns such as {"SrcIP": "10.1.1.1", "DstPort": "5000"}.
type TraceRequest struct {
	Path     string
	FlowKeys map[string]string
}

// StoredFlow is one row of fct_flows.
type StoredFlow struct {
	Timestamp time.Time
	FlowID    uint32
	SizeClass string
	RxBytes   uint64
	FCT       float64
}

// Querier reads back what the ClickHouse writer stored.
type Querier interface {
	FileHistory(ctx context.Context, req HistoryRequest) ([]StoredSummary, error)
	TraceFlows(ctx context.Context, req TraceRequest) ([]StoredFlow, error)
}

type clickhouseQuerier struct {
	conn clickhouse.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	conn, err := connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

func connect(cfg config.ClickHouseConfig) (clickhouse.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
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

func buildHistoryQuery(req HistoryRequest) (string, []any) {
	var b strings.Builder
	b.WriteString(`
		SELECT Timestamp, Path, ValidFlows, MeanFCT, FCT99, SmallFCT99, LossRate
		FROM fct_file_summaries
	`)

	var where []string
	var args []any
	if req.PathLike != "" {
		where = append(where, "Path LIKE ?")
		args = append(args, req.PathLike)
	}
	if !req.Since.IsZero() {
		where = append(where, "Timestamp >= ?")
		args = append(args, req.Since)
	}
	if !req.Until.IsZero() {
		where = append(where, "Timestamp <= ?")
		args = append(args, req.Until)
	}
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	b.WriteString(" ORDER BY Timestamp DESC, Path")
	if req.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", req.Limit)
	}
	return b.String(), args
}

// FileHistory lists stored file summaries, newest first.
func (q *clickhouseQuerier) FileHistory(ctx context.Context, req HistoryRequest) ([]StoredSummary, error) {
	query, args := buildHistoryQuery(req)
	rows, err := q.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var result []StoredSummary
	for rows.Next() {
		var s StoredSummary
		if err := rows.Scan(&s.Timestamp, &s.Path, &s.ValidFlows, &s.MeanFCT, &s.FCT99, &s.SmallFCT99, &s.LossRate); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func buildTraceQuery(req TraceRequest) (string, []any, error) {
	if req.Path == "" {
		return "", nil, fmt.Errorf("a file path is required to trace flows")
	}

	var b strings.Builder
	b.WriteString(`
		SELECT Timestamp, FlowID, SizeClass, RxBytes, FCT
		FROM fct_flows
	`)

	where := []string{"Path = ?"}
	args := []any{req.Path}
	for key, value := range req.FlowKeys {
		// Basic validation to prevent arbitrary column injection
		switch key {
		case "SrcIP", "DstIP", "SrcPort", "DstPort", "Protocol", "SizeClass":
			where = append(where, fmt.Sprintf("%s = ?", key))
			args = append(args, value)
		default:
			return "", nil, fmt.Errorf("unsupported flow key: %s, only SrcIP, DstIP, SrcPort, DstPort, Protocol, SizeClass are allowed", key)
		}
	}

	b.WriteString(" WHERE " + strings.Join(where, " AND "))
	b.WriteString(" ORDER BY Timestamp DESC, FCT DESC")
	return b.String(), args, nil
}

// TraceFlows lists the stored flows of one file, slowest first.
func (q *clickhouseQuerier) TraceFlows(ctx context.Context, req TraceRequest) ([]StoredFlow, error) {
	query, args, err := buildTraceQuery(req)
	if err != nil {
		return nil, err
	}
	rows, err := q.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var result []StoredFlow
	for rows.Next() {
		var f StoredFlow
		if err := rows.Scan(&f.Timestamp, &f.FlowID, &f.SizeClass, &f.RxBytes, &f.FCT); err != nil {
			return nil, fmt.Errorf("failed to scan flow row: %w", err)
		}
		result = append(result, f)
	}
	return result, rows.Err()
}
