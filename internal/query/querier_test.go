package query

import (
	"strings"
	"testing"
	"time"
)

func TestBuildHistoryQuery(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	query, args := buildHistoryQuery(HistoryRequest{PathLike: "%run%", Since: since, Limit: 10})

	if !strings.Contains(query, "WHERE Path LIKE ? AND Timestamp >= ?") {
		t.Errorf("Unexpected filter in query: %s", query)
	}
	if !strings.HasSuffix(query, "LIMIT 10") {
		t.Errorf("Expected a LIMIT clause, got: %s", query)
	}
	if len(args) != 2 || args[0] != "%run%" || args[1] != since {
		t.Errorf("Unexpected args: %v", args)
	}

	query, args = buildHistoryQuery(HistoryRequest{})
	if strings.Contains(query, "WHERE") || strings.Contains(query, "LIMIT") || len(args) != 0 {
		t.Errorf("Expected an unfiltered query, got %s %v", query, args)
	}
}

func TestBuildTraceQuery(t *testing.T) {
	query, args, err := buildTraceQuery(TraceRequest{Path: "a.xml", FlowKeys: map[string]string{"DstPort": "5000"}})
	if err != nil {
		t.Fatalf("buildTraceQuery failed: %v", err)
	}
	if !strings.Contains(query, "WHERE Path = ? AND DstPort = ?") {
		t.Errorf("Unexpected filter in query: %s", query)
	}
	if len(args) != 2 || args[1] != "5000" {
		t.Errorf("Unexpected args: %v", args)
	}

	if _, _, err := buildTraceQuery(TraceRequest{Path: "a.xml", FlowKeys: map[string]string{"1=1; DROP": "x"}}); err == nil {
		t.Error("Expected an error for an unsupported column")
	}
	if _, _, err := buildTraceQuery(TraceRequest{}); err == nil {
		t.Error("Expected an error without a path")
	}
}
