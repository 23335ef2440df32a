package model

// Writer defines a generic interface for delivering a finished report
// (stdout, files, databases, brokers).
type Writer interface {
	// Write takes the report and persists or publishes it.
	Write(report *Report) error

	// Name returns the writer type used in logs.
	Name() string
}

// FlowObserver receives every valid flow while files are being aggregated.
// Writers that need per-flow data implement it alongside Writer.
type FlowObserver interface {
	ObserveFlow(path string, flow *Flow)
}
