package model

import (
	"fmt"
	"net/netip"

	"github.com/google/gopacket/layers"
)

// NoHopData is the value reported for the hop count of a flow that never
// delivered a packet.
const NoHopData = -1000

// FiveTuple identifies a flow within one simulation run.
type FiveTuple struct {
	SourceAddress      netip.Addr
	DestinationAddress netip.Addr
	SourcePort         uint16
	DestinationPort    uint16
	Protocol           uint8 // 6=TCP, 17=UDP
}

// ProtocolName returns the IANA name of the transport protocol, e.g. "TCP".
func (t FiveTuple) ProtocolName() string {
	return layers.IPProtocol(t.Protocol).String()
}

func (t FiveTuple) String() string {
	return fmt.Sprintf("%s %s/%d --> %s/%d", t.ProtocolName(),
		t.SourceAddress, t.SourcePort, t.DestinationAddress, t.DestinationPort)
}

// Bin is a single histogram bucket.
type Bin struct {
	Start float64
	Width float64
	Count uint64
}

// Histogram is an ordered sequence of bins.
type Histogram struct {
	Bins []Bin
}

// ProbeFlowStats is what one observation point saw of a flow.
type ProbeFlowStats struct {
	ProbeID int
	Packets uint64
	Bytes   uint64
	// DelayFromFirstProbe is the mean delay, in seconds, since the flow was
	// first seen by any probe. Zero when Packets is zero.
	DelayFromFirstProbe float64
}

// Flow holds the counters of one monitored flow and the metrics derived
// from them. Derived metrics are nil when the counters carry no data for
// them (e.g. no packet received).
type Flow struct {
	ID int

	TxBytes        uint64
	RxBytes        uint64
	TxPackets      uint64
	RxPackets      uint64
	LostPackets    uint64
	TimesForwarded uint64

	FCT             *float64 // seconds, last rx - first tx
	DelayMean       *float64 // seconds
	JitterMean      *float64 // seconds
	PacketSizeMean  *float64 // bytes
	TxBitrate       *float64 // bit/s
	RxBitrate       *float64 // bit/s
	Throughput      *float64 // bit/s, rx bytes over fct
	HopCount        *float64
	PacketLossRatio *float64

	FiveTuple              *FiveTuple
	InterruptionsHistogram *Histogram
	ProbeStats             []ProbeFlowStats
}

// Hops returns the hop count, or NoHopData when nothing was received.
func (f *Flow) Hops() float64 {
	if f.HopCount == nil {
		return NoHopData
	}
	return *f.HopCount
}

// Simulation is one FlowMonitor run: the flows it observed, in document order.
type Simulation struct {
	Index int
	Flows []*Flow
}

// Float returns a pointer to v. It is a convenience for optional metrics.
func Float(v float64) *float64 {
	return &v
}
