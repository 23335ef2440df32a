package model

import "encoding/json"

// NoData is printed in place of a metric that has no value, e.g. the
// small-flow percentile of a file without small flows.
const NoData = -1.0

// FlowRef names a single flow together with its completion time.
type FlowRef struct {
	ID  int     `json:"id"`
	FCT float64 `json:"fct"`
}

// FileSummary is the per-file result of the flow aggregator. Optional
// metrics are nil when the class they describe had no flows.
type FileSummary struct {
	Path        string `json:"path"`
	Simulations int    `json:"simulations"`

	ValidFlows  int `json:"valid_flows"`
	SmallFlows  int `json:"small_flows"`
	MiddleFlows int `json:"middle_flows"`
	LargeFlows  int `json:"large_flows"`

	TotalTxPackets   uint64  `json:"total_tx_packets"`
	TotalRxPackets   uint64  `json:"total_rx_packets"`
	TotalLostPackets uint64  `json:"total_lost_packets"`
	LossRate         float64 `json:"loss_rate"`

	MeanFCT       float64  `json:"mean_fct"`
	MeanSmallFCT  *float64 `json:"mean_small_fct"`
	MeanMiddleFCT *float64 `json:"mean_middle_fct"`
	MeanLargeFCT  *float64 `json:"mean_large_fct"`

	FCT99      float64  `json:"fct_99"`
	SmallFCT99 *float64 `json:"small_fct_99"`

	// MeanLargeThroughput is in bit/s.
	MeanLargeThroughput *float64 `json:"mean_large_throughput"`

	MaxSmallFlow *FlowRef `json:"max_small_flow,omitempty"`
}

// FileFailure records a file excluded from a report and why.
type FileFailure struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

func (f FileFailure) Error() string {
	if f.Err == nil {
		return f.Path
	}
	return f.Path + ": " + f.Err.Error()
}

func (f FileFailure) Unwrap() error {
	return f.Err
}

// Report folds the summaries of several files. Every mean is taken over
// the files that had a value for that metric; a nil mean means no file did.
type Report struct {
	Pattern  string        `json:"pattern"`
	Files    []FileSummary `json:"files"`
	Failures []FileFailure `json:"failures,omitempty"`

	MeanValidFlows       float64 `json:"mean_valid_flows"`
	MeanTotalTxPackets   float64 `json:"mean_total_tx_packets"`
	MeanTotalRxPackets   float64 `json:"mean_total_rx_packets"`
	MeanTotalLostPackets float64 `json:"mean_total_lost_packets"`
	// CombinedLossRate is total lost over total tx, summed across files.
	CombinedLossRate float64 `json:"combined_loss_rate"`

	MeanFCT        float64  `json:"mean_fct"`
	MeanFCT99      float64  `json:"mean_fct_99"`
	MeanSmallFCT   *float64 `json:"mean_small_fct"`
	MeanSmallFCT99 *float64 `json:"mean_small_fct_99"`
	MeanMiddleFCT  *float64 `json:"mean_middle_fct"`
	MeanLargeFCT   *float64 `json:"mean_large_fct"`

	MeanLargeThroughput *float64 `json:"mean_large_throughput"`
}

// FileCount returns the number of files that contributed to the report.
func (r *Report) FileCount() int {
	return len(r.Files)
}

// ValueOr returns *p, or def when p is nil.
func ValueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func (f FileFailure) MarshalJSON() ([]byte, error) {
	var msg string
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		Path  string `json:"path"`
		Error string `json:"error"`
	}{f.Path, msg})
}
