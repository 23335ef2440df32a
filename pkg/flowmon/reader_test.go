package flowmon

import (
	"Go2FctSpectra/internal/model"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"
)

const sampleFile = "../../test/data/flowmon-two-runs.xml"

func approx(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Abs(b))
}

// flowRecord renders one FlowStats/Flow element. Times are in nanoseconds.
func flowRecord(id int, firstTx, firstRx, lastTx, lastRx int64, txBytes, rxBytes, txPackets, rxPackets int) string {
	return fmt.Sprintf(`<Flow flowId="%d" timeFirstTxPacket="+%d.0ns" timeFirstRxPacket="+%d.0ns" `+
		`timeLastTxPacket="+%d.0ns" timeLastRxPacket="+%d.0ns" delaySum="+%d.0ns" jitterSum="+0.0ns" `+
		`txBytes="%d" rxBytes="%d" txPackets="%d" rxPackets="%d" lostPackets="0" timesForwarded="%d" />`,
		id, firstTx, firstRx, lastTx, lastRx, int64(rxPackets)*1000000, txBytes, rxBytes, txPackets, rxPackets, rxPackets)
}

func monitor(flows, classifier, probes string) string {
	return "<FlowMonitor><FlowStats>" + flows + "</FlowStats><Ipv4FlowClassifier>" + classifier +
		"</Ipv4FlowClassifier><FlowProbes>" + probes + "</FlowProbes></FlowMonitor>"
}

func readAll(t *testing.T, doc string) ([]*model.Simulation, error) {
	t.Helper()
	var sims []*model.Simulation
	for sim, err := range NewReader(strings.NewReader(doc)).All() {
		if err != nil {
			return sims, err
		}
		sims = append(sims, sim)
	}
	return sims, nil
}

func TestReader_SampleFile(t *testing.T) {
	sims, err := ReadAll(sampleFile)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(sims) != 2 {
		t.Fatalf("Expected 2 simulations, got %d", len(sims))
	}
	if sims[0].Index != 0 || sims[1].Index != 1 {
		t.Errorf("Unexpected run indexes %d, %d", sims[0].Index, sims[1].Index)
	}
	if len(sims[0].Flows) != 3 || len(sims[1].Flows) != 1 {
		t.Fatalf("Unexpected flow counts: %d, %d", len(sims[0].Flows), len(sims[1].Flows))
	}

	f := sims[0].Flows[0]
	checks := []struct {
		name string
		got  *float64
		want float64
	}{
		{"FCT", f.FCT, 0.5},
		{"Throughput", f.Throughput, 800000},
		{"TxBitrate", f.TxBitrate, 1040000},
		{"RxBitrate", f.RxBitrate, 400000 / 0.498},
		{"DelayMean", f.DelayMean, 0.002},
		{"JitterMean", f.JitterMean, 0.0001},
		{"PacketSizeMean", f.PacketSizeMean, 1250},
		{"HopCount", f.HopCount, 3},
		{"PacketLossRatio", f.PacketLossRatio, 0},
	}
	for _, c := range checks {
		if c.got == nil {
			t.Errorf("%s: expected %v, got nil", c.name, c.want)
			continue
		}
		if !approx(*c.got, c.want) {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, *c.got)
		}
	}

	if f.FiveTuple == nil {
		t.Fatal("Five-tuple was not attached to flow 1")
	}
	if f.FiveTuple.SourceAddress.String() != "10.1.1.1" || f.FiveTuple.DestinationPort != 5000 || f.FiveTuple.Protocol != 6 {
		t.Errorf("Unexpected five-tuple: %+v", *f.FiveTuple)
	}
	if name := f.FiveTuple.ProtocolName(); name != "TCP" {
		t.Errorf("Expected protocol name TCP, got %q", name)
	}
	if name := sims[0].Flows[1].FiveTuple.ProtocolName(); name != "UDP" {
		t.Errorf("Expected protocol name UDP, got %q", name)
	}

	if f.InterruptionsHistogram == nil || len(f.InterruptionsHistogram.Bins) != 1 {
		t.Fatalf("Expected one interruption histogram bin, got %+v", f.InterruptionsHistogram)
	}
	if bin := f.InterruptionsHistogram.Bins[0]; bin.Width != 0.25 || bin.Count != 2 {
		t.Errorf("Unexpected histogram bin: %+v", bin)
	}
	if sims[0].Flows[1].InterruptionsHistogram != nil {
		t.Error("Flow without histogram element should have a nil histogram")
	}

	if len(f.ProbeStats) != 2 {
		t.Fatalf("Expected 2 probe samples for flow 1, got %d", len(f.ProbeStats))
	}
	if p := f.ProbeStats[1]; p.ProbeID != 1 || p.Packets != 40 || !approx(p.DelayFromFirstProbe, 0.001) {
		t.Errorf("Unexpected probe sample: %+v", p)
	}
	if p := sims[0].Flows[1].ProbeStats[1]; p.Packets != 0 || p.DelayFromFirstProbe != 0 {
		t.Errorf("Probe sample without packets should have zero delay, got %+v", p)
	}
}

func TestReader_NoPacketsReceived(t *testing.T) {
	sims, err := ReadAll(sampleFile)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	f := sims[0].Flows[2]
	if f.RxPackets != 0 {
		t.Fatalf("Expected flow 3 to have no received packets")
	}
	if f.DelayMean != nil || f.PacketSizeMean != nil || f.RxBitrate != nil || f.PacketLossRatio != nil || f.JitterMean != nil {
		t.Errorf("Expected receive-side metrics to be nil, got %+v", f)
	}
	if f.HopCount != nil || f.Hops() != model.NoHopData {
		t.Errorf("Expected no hop data, got %v", f.Hops())
	}
	if f.FCT != nil || f.Throughput != nil {
		t.Errorf("Expected nil FCT and throughput for a flow that never completed")
	}
}

func TestReader_FCTSign(t *testing.T) {
	tests := []struct {
		name    string
		firstTx int64
		lastRx  int64
		wantFCT bool
	}{
		{"positive", 1000, 5000, true},
		{"zero", 1000, 1000, false},
		{"negative", 5000, 1000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := monitor(flowRecord(1, tt.firstTx, tt.firstTx, tt.lastRx, tt.lastRx, 1000, 1000, 1, 1), "", "")
			sims, err := readAll(t, doc)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			f := sims[0].Flows[0]
			if (f.FCT != nil) != tt.wantFCT {
				t.Errorf("FCT presence: expected %v, got %v", tt.wantFCT, f.FCT != nil)
			}
			if (f.Throughput != nil) != (f.FCT != nil && *f.FCT > 0) {
				t.Errorf("Throughput must be present exactly when FCT is positive")
			}
		})
	}
}

func TestReader_MissingNanosecondSuffix(t *testing.T) {
	doc := `<FlowMonitor><FlowStats><Flow flowId="7" timeFirstTxPacket="+1000.0" timeFirstRxPacket="+1.0ns" ` +
		`timeLastTxPacket="+1.0ns" timeLastRxPacket="+1.0ns" delaySum="+0.0ns" txBytes="1" rxBytes="1" ` +
		`txPackets="1" rxPackets="1" lostPackets="0" timesForwarded="0" /></FlowStats></FlowMonitor>`
	_, err := readAll(t, doc)
	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("Expected FormatError, got %v", err)
	}
	if formatErr.Attr != "timeFirstTxPacket" || formatErr.FlowID != "7" {
		t.Errorf("FormatError should name flow 7 and timeFirstTxPacket, got %+v", formatErr)
	}
}

func TestReader_MalformedXML(t *testing.T) {
	_, err := readAll(t, "<FlowMonitor><FlowStats></FlowMonitor>")
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected ParseError, got %v", err)
	}
}

func TestReader_TruncatedDocument(t *testing.T) {
	_, err := readAll(t, "<Runs><FlowMonitor>")
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected ParseError for truncated input, got %v", err)
	}
}

func TestReader_UnknownFlowInClassifier(t *testing.T) {
	doc := monitor(
		flowRecord(1, 1000, 2000, 3000, 4000, 1000, 1000, 1, 1),
		`<Flow flowId="9" sourceAddress="10.0.0.1" destinationAddress="10.0.0.2" protocol="6" sourcePort="1" destinationPort="2" />`,
		"")
	_, err := readAll(t, doc)
	var lookupErr *LookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("Expected LookupError, got %v", err)
	}
	if lookupErr.FlowID != 9 || lookupErr.Section != "Ipv4FlowClassifier" {
		t.Errorf("Unexpected LookupError: %+v", lookupErr)
	}
}

func TestReader_UnknownFlowInProbe(t *testing.T) {
	doc := monitor(
		flowRecord(1, 1000, 2000, 3000, 4000, 1000, 1000, 1, 1),
		"",
		`<FlowProbe index="3"><FlowStats flowId="4" packets="1" bytes="10" delayFromFirstProbeSum="+0.0ns" /></FlowProbe>`)
	_, err := readAll(t, doc)
	var lookupErr *LookupError
	if !errors.As(err, &lookupErr) || lookupErr.FlowID != 4 {
		t.Fatalf("Expected LookupError for flow 4, got %v", err)
	}
}

func TestReader_StreamsRunByRun(t *testing.T) {
	// The second run is broken; the first must still be delivered before
	// the reader reaches it.
	doc := monitor(flowRecord(1, 1000, 2000, 3000, 4000, 1000, 1000, 1, 1), "", "") + "<FlowMonitor><FlowStats>"
	r := NewReader(strings.NewReader(doc))

	sim, err := r.Next()
	if err != nil {
		t.Fatalf("First run should parse, got %v", err)
	}
	if len(sim.Flows) != 1 {
		t.Fatalf("Expected 1 flow in first run, got %d", len(sim.Flows))
	}

	_, err = r.Next()
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("Expected ParseError for second run, got %v", err)
	}
	if _, again := r.Next(); again != err {
		t.Errorf("Reader should keep returning its first error, got %v", again)
	}
}

func TestReader_EndOfDocument(t *testing.T) {
	r := NewReader(strings.NewReader(`<?xml version="1.0" ?>` + monitor("", "", "")))
	if _, err := r.Next(); err != nil {
		t.Fatalf("Expected an empty run, got %v", err)
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("Expected io.EOF, got %v", err)
	}
}

func TestReader_OnlyTopLevelRuns(t *testing.T) {
	doc := "<Wrapper>" + monitor(flowRecord(1, 1000, 2000, 3000, 4000, 1000, 1000, 1, 1), "", "") + "</Wrapper>"
	sims, err := readAll(t, doc)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(sims) != 0 {
		t.Errorf("Nested FlowMonitor elements are not runs, got %d", len(sims))
	}
}

func TestOpen_MissingFile(t *testing.T) {
	if _, err := Open("../../test/data/does-not-exist.xml"); err == nil {
		t.Fatal("Expected an error for a missing file")
	}
}
