// Package wire converts reports to their protobuf representation, shared by
// the NATS publisher and the HTTP API.
package wire

import (
	"Go2FctSpectra/internal/model"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ReportToStruct renders a report as a protobuf Struct keyed by the report's
// JSON field names. Metrics without data become null values.
func ReportToStruct(report *model.Report) (*structpb.Struct, error) {
	return toStruct(report)
}

// FileToStruct renders one file summary as a protobuf Struct.
func FileToStruct(summary *model.FileSummary) (*structpb.Struct, error) {
	return toStruct(summary)
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode %T fields: %w", v, err)
	}
	return structpb.NewStruct(fields)
}

// MarshalReport serializes a report to protobuf binary format.
func MarshalReport(report *model.Report) ([]byte, error) {
	s, err := ReportToStruct(report)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// UnmarshalReport decodes a payload produced by MarshalReport.
func UnmarshalReport(data []byte) (*structpb.Struct, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &s, nil
}

// JSONOptions are the protojson settings used for every HTTP response.
var JSONOptions = protojson.MarshalOptions{
	Multiline:       true,
	EmitUnpopulated: true,
}
