package api

import (
	"Go2FctSpectra/internal/alerter"
	"Go2FctSpectra/internal/model"
	"Go2FctSpectra/internal/wire"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// StreamAnalyzer produces commentary on a report chunk by chunk.
type StreamAnalyzer interface {
	AnalyzeStream(ctx context.Context, input string, sendChunk func(string) error) error
}

// Handler serves one finished report.
type Handler struct {
	report   *model.Report
	analyzer StreamAnalyzer
}

// NewRouter wires the report endpoints. analyzer may be nil, which disables
// the analysis endpoint.
func NewRouter(report *model.Report, analyzer StreamAnalyzer) *mux.Router {
	h := &Handler{report: report, analyzer: analyzer}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/report", h.reportHandler).Methods("GET")
	r.HandleFunc("/api/v1/files", h.filesHandler).Methods("GET")
	r.HandleFunc("/api/v1/files/{index:[0-9]+}", h.fileHandler).Methods("GET")
	r.HandleFunc("/api/v1/metrics/{metric}", h.metricHandler).Methods("GET")
	r.HandleFunc("/api/v1/analysis", h.analysisHandler).Methods("POST")
	return r
}

// reportHandler returns the whole report.
func (h *Handler) reportHandler(w http.ResponseWriter, r *http.Request) {
	s, err := wire.ReportToStruct(h.report)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to encode report: %v", err), http.StatusInternalServerError)
		return
	}
	writeProto(w, s)
}

// filesHandler lists the per-file summaries.
func (h *Handler) filesHandler(w http.ResponseWriter, r *http.Request) {
	list := &structpb.ListValue{}
	for i := range h.report.Files {
		s, err := wire.FileToStruct(&h.report.Files[i])
		if err != nil {
			http.Error(w, fmt.Sprintf("failed to encode file summary: %v", err), http.StatusInternalServerError)
			return
		}
		list.Values = append(list.Values, structpb.NewStructValue(s))
	}
	writeProto(w, list)
}

// fileHandler returns the summary of one file by its position in the report.
func (h *Handler) fileHandler(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil || index >= h.report.FileCount() {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}
	s, err := wire.FileToStruct(&h.report.Files[index])
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to encode file summary: %v", err), http.StatusInternalServerError)
		return
	}
	writeProto(w, s)
}

// metricHandler returns a single cross-file metric by name.
func (h *Handler) metricHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["metric"]
	value, ok := alerter.MetricValue(h.report, name)
	if !ok {
		http.Error(w, fmt.Sprintf("no value for metric '%s'", name), http.StatusNotFound)
		return
	}
	s, err := structpb.NewStruct(map[string]any{"metric": name, "value": value})
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to encode metric: %v", err), http.StatusInternalServerError)
		return
	}
	writeProto(w, s)
}

// analysisHandler streams AI commentary on the report as plain text.
func (h *Handler) analysisHandler(w http.ResponseWriter, r *http.Request) {
	if h.analyzer == nil {
		http.Error(w, "AI analysis is not configured", http.StatusServiceUnavailable)
		return
	}
	input, err := json.MarshalIndent(h.report, "", "  ")
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to encode report: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	flusher, _ := w.(http.Flusher)
	err = h.analyzer.AnalyzeStream(r.Context(), string(input), func(chunk string) error {
		if _, err := w.Write([]byte(chunk)); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		log.Warnf("AI analysis stream ended with error: %v", err)
	}
}

func writeProto(w http.ResponseWriter, m proto.Message) {
	jsonBytes, err := wire.JSONOptions.Marshal(m)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(jsonBytes)
}
