package writer

import (
	"Go2FctSpectra/internal/model"
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// mbit converts bit/s into the Mbit/s figure printed in summaries.
const mbit = 1024 * 1024

// TextWriter prints the human readable report: optional per-flow detail
// lines while files are processed, then one summary block per file and a
// combined block when more than one file contributed.
type TextWriter struct {
	mu        sync.Mutex
	out       *bufio.Writer
	file      *os.File
	showFlows bool
	lastPath  string
}

// NewTextWriter creates a text writer on w.
func NewTextWriter(w io.Writer, showFlows bool) *TextWriter {
	return &TextWriter{out: bufio.NewWriter(w), showFlows: showFlows}
}

// NewTextFileWriter creates a text writer on a new file at path.
func NewTextFileWriter(path string, showFlows bool) (*TextWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file '%s': %w", path, err)
	}
	w := NewTextWriter(file, showFlows)
	w.file = file
	return w, nil
}

func (w *TextWriter) Name() string { return "text" }

// ObserveFlow prints the detail lines of one valid flow.
func (w *TextWriter) ObserveFlow(path string, f *model.Flow) {
	if !w.showFlows {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if path != w.lastPath {
		fmt.Fprintf(w.out, "%s\n", path)
		w.lastPath = path
	}
	tuple := "unclassified"
	if f.FiveTuple != nil {
		tuple = f.FiveTuple.String()
	}
	fmt.Fprintf(w.out, "FlowID: %d (%s)\n", f.ID, tuple)
	fmt.Fprintf(w.out, "\tTX bitrate: %.2f kbit/s\n", model.ValueOr(f.TxBitrate, model.NoData)*1e-3)
	fmt.Fprintf(w.out, "\tRX bitrate: %.2f kbit/s\n", model.ValueOr(f.RxBitrate, model.NoData)*1e-3)
	fmt.Fprintf(w.out, "\tMean Delay: %.2f ms\n", model.ValueOr(f.DelayMean, model.NoData)*1e3)
	if f.JitterMean != nil {
		fmt.Fprintf(w.out, "\tMean Jitter: %.2f ms\n", *f.JitterMean*1e3)
	}
	fmt.Fprintf(w.out, "\tPacket Loss Ratio: %.2f %%\n", model.ValueOr(f.PacketLossRatio, model.NoData)*100)
	fmt.Fprintf(w.out, "\tHop Count: %.2f\n", f.Hops())
	fmt.Fprintf(w.out, "\tFlow size: %d bytes, %d packets\n", f.TxBytes, f.TxPackets)
	fmt.Fprintf(w.out, "\tRx %d bytes, %d packets\n", f.RxBytes, f.RxPackets)
	fmt.Fprintf(w.out, "\tDevice Lost %d packets\n", f.LostPackets)
	fmt.Fprintf(w.out, "\tReal Lost %d packets\n", int64(f.TxPackets)-int64(f.RxPackets))
	fmt.Fprintf(w.out, "\tFCT: %.4f\n", model.ValueOr(f.FCT, model.NoData))
}

// Write prints the summary blocks and flushes the output.
func (w *TextWriter) Write(report *model.Report) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range report.Files {
		writeFileSummary(w.out, &report.Files[i])
		fmt.Fprintln(w.out)
	}
	for _, f := range report.Failures {
		fmt.Fprintf(w.out, "Failed: %s\n", f.Error())
	}
	if report.FileCount() > 1 {
		writeCombinedSummary(w.out, report)
	}
	return w.out.Flush()
}

func writeFileSummary(out io.Writer, s *model.FileSummary) {
	fmt.Fprintf(out, "%s\n", s.Path)
	fmt.Fprintf(out, "Simulations: %d\n", s.Simulations)
	fmt.Fprintf(out, "Total Flow #: %d\n", s.ValidFlows)
	fmt.Fprintf(out, "Total TX Packets: %d\n", s.TotalTxPackets)
	fmt.Fprintf(out, "Total RX Packets: %d\n", s.TotalRxPackets)
	fmt.Fprintf(out, "Total Lost Packets: %d\n", s.TotalLostPackets)
	fmt.Fprintf(out, "Total Lost Rate: %.5f\n", s.LossRate)
	fmt.Fprintf(out, "All flow FCT: %.4f\n", s.MeanFCT)
	fmt.Fprintf(out, "All flow 99 FCT: %.4f\n", s.FCT99)

	if s.MeanSmallFCT == nil {
		fmt.Fprintln(out, "No small flows")
	} else {
		fmt.Fprintf(out, "Small flow FCT: %.4f\n", *s.MeanSmallFCT)
		fmt.Fprintf(out, "Small flow 99 FCT: %.4f\n", model.ValueOr(s.SmallFCT99, model.NoData))
		if s.MaxSmallFlow != nil {
			fmt.Fprintf(out, "Max small flow: %d (%.4f)\n", s.MaxSmallFlow.ID, s.MaxSmallFlow.FCT)
		}
	}
	if s.MeanMiddleFCT == nil {
		fmt.Fprintln(out, "No middle flows")
	} else {
		fmt.Fprintf(out, "Middle flow FCT: %.4f\n", *s.MeanMiddleFCT)
	}
	if s.MeanLargeFCT == nil {
		fmt.Fprintln(out, "No large flows")
	} else {
		fmt.Fprintf(out, "Large flow FCT: %.4f\n", *s.MeanLargeFCT)
		fmt.Fprintf(out, "Large flow throughput: %.4f Mbit/s\n", model.ValueOr(s.MeanLargeThroughput, 0)/mbit)
	}
}

func writeCombinedSummary(out io.Writer, r *model.Report) {
	fmt.Fprintln(out, "Summary of All Files")
	fmt.Fprintln(out, "--------------------")
	fmt.Fprintf(out, "File #: %d\n", r.FileCount())
	fmt.Fprintf(out, "Total Flow #: %d\n", int64(r.MeanValidFlows))
	fmt.Fprintf(out, "Total TX Packets: %d\n", int64(r.MeanTotalTxPackets))
	fmt.Fprintf(out, "Total RX Packets: %d\n", int64(r.MeanTotalRxPackets))
	fmt.Fprintf(out, "Total Lost Packets: %d\n", int64(r.MeanTotalLostPackets))
	fmt.Fprintf(out, "Total Lost Rate: %.5f\n", r.CombinedLossRate)
	fmt.Fprintf(out, "All flow FCT: %.4f\n", r.MeanFCT)
	fmt.Fprintf(out, "All flow 99 FCT: %.4f\n", r.MeanFCT99)
	fmt.Fprintf(out, "Small flow FCT: %.4f\n", model.ValueOr(r.MeanSmallFCT, model.NoData))
	fmt.Fprintf(out, "Small flow 99 FCT: %.4f\n", model.ValueOr(r.MeanSmallFCT99, model.NoData))
	fmt.Fprintf(out, "Middle flow FCT: %.4f\n", model.ValueOr(r.MeanMiddleFCT, model.NoData))
	fmt.Fprintf(out, "Large flow FCT: %.4f\n", model.ValueOr(r.MeanLargeFCT, model.NoData))

	tput := model.NoData
	if r.MeanLargeThroughput != nil {
		tput = *r.MeanLargeThroughput / mbit
	}
	fmt.Fprintf(out, "Large flow throughput: %.4f Mbit/s\n", tput)
}

// Close flushes pending flow lines and closes the report file, if any.
func (w *TextWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.out.Flush(); err != nil {
		return err
	}
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}
