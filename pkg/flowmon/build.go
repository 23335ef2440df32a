package flowmon

import (
	"Go2FctSpectra/internal/model"
	"net/netip"
	"strconv"
	"strings"
)

// --- XML layout of one FlowMonitor run ---

type xmlMonitor struct {
	FlowStats      []xmlFlow           `xml:"FlowStats>Flow"`
	Ipv4Classifier []xmlClassifierFlow `xml:"Ipv4FlowClassifier>Flow"`
	Ipv6Classifier []xmlClassifierFlow `xml:"Ipv6FlowClassifier>Flow"`
	Probes         []xmlProbe          `xml:"FlowProbes>FlowProbe"`
}

type xmlFlow struct {
	FlowID            string        `xml:"flowId,attr"`
	TimeFirstTxPacket string        `xml:"timeFirstTxPacket,attr"`
	TimeFirstRxPacket string        `xml:"timeFirstRxPacket,attr"`
	TimeLastTxPacket  string        `xml:"timeLastTxPacket,attr"`
	TimeLastRxPacket  string        `xml:"timeLastRxPacket,attr"`
	DelaySum          string        `xml:"delaySum,attr"`
	JitterSum         string        `xml:"jitterSum,attr"`
	TxBytes           string        `xml:"txBytes,attr"`
	RxBytes           string        `xml:"rxBytes,attr"`
	TxPackets         string        `xml:"txPackets,attr"`
	RxPackets         string        `xml:"rxPackets,attr"`
	LostPackets       string        `xml:"lostPackets,attr"`
	TimesForwarded    string        `xml:"timesForwarded,attr"`
	Interruptions     *xmlHistogram `xml:"flowInterruptionsHistogram"`
}

type xmlHistogram struct {
	Bins []xmlBin `xml:"bin"`
}

type xmlBin struct {
	Start string `xml:"start,attr"`
	Width string `xml:"width,attr"`
	Count string `xml:"count,attr"`
}

type xmlClassifierFlow struct {
	FlowID             string `xml:"flowId,attr"`
	SourceAddress      string `xml:"sourceAddress,attr"`
	DestinationAddress string `xml:"destinationAddress,attr"`
	Protocol           string `xml:"protocol,attr"`
	SourcePort         string `xml:"sourcePort,attr"`
	DestinationPort    string `xml:"destinationPort,attr"`
}

type xmlProbe struct {
	Index string          `xml:"index,attr"`
	Stats []xmlProbeStats `xml:"FlowStats"`
}

type xmlProbeStats struct {
	FlowID                 string `xml:"flowId,attr"`
	Packets                string `xml:"packets,attr"`
	Bytes                  string `xml:"bytes,attr"`
	DelayFromFirstProbeSum string `xml:"delayFromFirstProbeSum,attr"`
}

// --- Attribute parsing ---

// attrParser converts attribute strings and keeps the first failure, so a
// whole record can be read before checking for an error.
type attrParser struct {
	element string
	flowID  string
	err     error
}

func (p *attrParser) fail(attr, value, reason string) {
	if p.err == nil {
		p.err = &FormatError{Element: p.element, FlowID: p.flowID, Attr: attr, Value: value, Reason: reason}
	}
}

func (p *attrParser) uint(attr, value string) uint64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		p.fail(attr, value, "not an unsigned integer")
	}
	return v
}

func (p *attrParser) uintN(attr, value string, bits int) uint64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseUint(value, 10, bits)
	if err != nil {
		p.fail(attr, value, "not an unsigned "+strconv.Itoa(bits)+"-bit integer")
	}
	return v
}

func (p *attrParser) int(attr, value string) int {
	if p.err != nil {
		return 0
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		p.fail(attr, value, "not an integer")
	}
	return v
}

func (p *attrParser) float(attr, value string) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		p.fail(attr, value, "not a number")
	}
	return v
}

// nanos parses a time value such as "+1.5e+09ns" or "+1000.0ns" and returns
// nanoseconds.
func (p *attrParser) nanos(attr, value string) float64 {
	if p.err != nil {
		return 0
	}
	number, ok := strings.CutSuffix(value, "ns")
	if !ok {
		p.fail(attr, value, "missing ns unit suffix")
		return 0
	}
	v, err := strconv.ParseFloat(number, 64)
	if err != nil {
		p.fail(attr, value, "not a nanosecond time value")
	}
	return v
}

func (p *attrParser) addr(attr, value string) netip.Addr {
	if p.err != nil {
		return netip.Addr{}
	}
	a, err := netip.ParseAddr(value)
	if err != nil {
		p.fail(attr, value, "not an IP address")
	}
	return a
}

// --- Simulation construction ---

// buildSimulation resolves one decoded run: flows first, then five-tuples
// and probe samples by flow id.
func buildSimulation(index int, raw *xmlMonitor) (*model.Simulation, error) {
	sim := &model.Simulation{Index: index, Flows: make([]*model.Flow, 0, len(raw.FlowStats))}
	byID := make(map[int]*model.Flow, len(raw.FlowStats))

	for i := range raw.FlowStats {
		flow, err := newFlow(&raw.FlowStats[i])
		if err != nil {
			return nil, err
		}
		if _, dup := byID[flow.ID]; dup {
			return nil, &FormatError{Element: "FlowStats/Flow", FlowID: raw.FlowStats[i].FlowID,
				Attr: "flowId", Value: raw.FlowStats[i].FlowID, Reason: "duplicate flow id"}
		}
		byID[flow.ID] = flow
		sim.Flows = append(sim.Flows, flow)
	}

	classifiers := []struct {
		section string
		flows   []xmlClassifierFlow
	}{
		{"Ipv4FlowClassifier", raw.Ipv4Classifier},
		{"Ipv6FlowClassifier", raw.Ipv6Classifier},
	}
	for _, c := range classifiers {
		for i := range c.flows {
			id, tuple, err := newFiveTuple(c.section, &c.flows[i])
			if err != nil {
				return nil, err
			}
			flow, ok := byID[id]
			if !ok {
				return nil, &LookupError{Section: c.section, FlowID: id}
			}
			flow.FiveTuple = tuple
		}
	}

	for i := range raw.Probes {
		probe := &raw.Probes[i]
		p := attrParser{element: "FlowProbes/FlowProbe"}
		probeID := p.int("index", probe.Index)
		if p.err != nil {
			return nil, p.err
		}
		for j := range probe.Stats {
			id, stats, err := newProbeFlowStats(probeID, &probe.Stats[j])
			if err != nil {
				return nil, err
			}
			flow, ok := byID[id]
			if !ok {
				return nil, &LookupError{Section: "FlowProbes/FlowProbe[" + probe.Index + "]", FlowID: id}
			}
			flow.ProbeStats = append(flow.ProbeStats, stats)
		}
	}

	return sim, nil
}

// newFlow derives a Flow from one FlowStats record.
func newFlow(x *xmlFlow) (*model.Flow, error) {
	p := attrParser{element: "FlowStats/Flow", flowID: x.FlowID}
	flow := &model.Flow{
		ID:             p.int("flowId", x.FlowID),
		TxBytes:        p.uint("txBytes", x.TxBytes),
		RxBytes:        p.uint("rxBytes", x.RxBytes),
		TxPackets:      p.uint("txPackets", x.TxPackets),
		RxPackets:      p.uint("rxPackets", x.RxPackets),
		LostPackets:    p.uint("lostPackets", x.LostPackets),
		TimesForwarded: p.uint("timesForwarded", x.TimesForwarded),
	}
	firstTx := p.nanos("timeFirstTxPacket", x.TimeFirstTxPacket)
	firstRx := p.nanos("timeFirstRxPacket", x.TimeFirstRxPacket)
	lastTx := p.nanos("timeLastTxPacket", x.TimeLastTxPacket)
	lastRx := p.nanos("timeLastRxPacket", x.TimeLastRxPacket)
	delaySum := p.nanos("delaySum", x.DelaySum)
	var jitterSum float64
	if x.JitterSum != "" {
		jitterSum = p.nanos("jitterSum", x.JitterSum)
	}
	hist := newHistogram(&p, x.Interruptions)
	if p.err != nil {
		return nil, p.err
	}
	flow.InterruptionsHistogram = hist

	txDuration := (lastTx - firstTx) * 1e-9
	rxDuration := (lastRx - firstRx) * 1e-9
	fct := (lastRx - firstTx) * 1e-9

	if fct > 0 {
		flow.FCT = model.Float(fct)
		flow.Throughput = model.Float(float64(flow.RxBytes) * 8 / fct)
	}
	if txDuration > 0 {
		flow.TxBitrate = model.Float(float64(flow.TxBytes) * 8 / txDuration)
	}

	if rx := float64(flow.RxPackets); rx > 0 {
		flow.HopCount = model.Float(float64(flow.TimesForwarded)/rx + 1)
		flow.DelayMean = model.Float(delaySum / rx * 1e-9)
		flow.PacketSizeMean = model.Float(float64(flow.RxBytes) / rx)
		flow.PacketLossRatio = model.Float(float64(flow.LostPackets) / (rx + float64(flow.LostPackets)))
		if rxDuration > 0 {
			flow.RxBitrate = model.Float(float64(flow.RxBytes) * 8 / rxDuration)
		}
		if flow.RxPackets > 1 {
			flow.JitterMean = model.Float(jitterSum / (rx - 1) * 1e-9)
		}
	}

	return flow, nil
}

func newHistogram(p *attrParser, x *xmlHistogram) *model.Histogram {
	if x == nil {
		return nil
	}
	h := &model.Histogram{Bins: make([]model.Bin, 0, len(x.Bins))}
	for _, b := range x.Bins {
		h.Bins = append(h.Bins, model.Bin{
			Start: p.float("start", b.Start),
			Width: p.float("width", b.Width),
			Count: p.uint("count", b.Count),
		})
	}
	return h
}

func newFiveTuple(section string, x *xmlClassifierFlow) (int, *model.FiveTuple, error) {
	p := attrParser{element: section + "/Flow", flowID: x.FlowID}
	id := p.int("flowId", x.FlowID)
	tuple := &model.FiveTuple{
		SourceAddress:      p.addr("sourceAddress", x.SourceAddress),
		DestinationAddress: p.addr("destinationAddress", x.DestinationAddress),
		SourcePort:         uint16(p.uintN("sourcePort", x.SourcePort, 16)),
		DestinationPort:    uint16(p.uintN("destinationPort", x.DestinationPort, 16)),
		Protocol:           uint8(p.uintN("protocol", x.Protocol, 8)),
	}
	if p.err != nil {
		return 0, nil, p.err
	}
	return id, tuple, nil
}

func newProbeFlowStats(probeID int, x *xmlProbeStats) (int, model.ProbeFlowStats, error) {
	p := attrParser{element: "FlowProbe/FlowStats", flowID: x.FlowID}
	id := p.int("flowId", x.FlowID)
	stats := model.ProbeFlowStats{
		ProbeID: probeID,
		Packets: p.uint("packets", x.Packets),
		Bytes:   p.uint("bytes", x.Bytes),
	}
	delaySum := p.nanos("delayFromFirstProbeSum", x.DelayFromFirstProbeSum)
	if p.err != nil {
		return 0, model.ProbeFlowStats{}, p.err
	}
	if stats.Packets > 0 {
		stats.DelayFromFirstProbe = delaySum / float64(stats.Packets) * 1e-9
	}
	return id, stats, nil
}
