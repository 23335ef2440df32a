package stats

import (
	"Go2FctSpectra/internal/model"
	"errors"
	"iter"
	"slices"
)

// Size class thresholds on received bytes.
const (
	LargeFlowBytes  = 10000000 // large: more than 10MB received
	MiddleFlowBytes = 100000   // middle: more than 100KB received, small otherwise
)

// ackBytesPerPacket is the mean transmitted packet size at or below which a
// flow is treated as a pure acknowledgment stream.
const ackBytesPerPacket = 70

// ErrNoValidFlows is returned when a file holds no flow that survives
// filtering, so no mean can be computed.
var ErrNoValidFlows = errors.New("no valid flows to average")

// SizeClass is the size bucket of a valid flow.
type SizeClass int

const (
	Small SizeClass = iota
	Middle
	Large
)

func (c SizeClass) String() string {
	switch c {
	case Large:
		return "large"
	case Middle:
		return "middle"
	default:
		return "small"
	}
}

// Classify returns the size class of a flow by its received bytes.
func Classify(f *model.Flow) SizeClass {
	switch {
	case f.RxBytes > LargeFlowBytes:
		return Large
	case f.RxBytes > MiddleFlowBytes:
		return Middle
	default:
		return Small
	}
}

// IsAckFlow reports whether a flow carries nothing but acknowledgments.
func IsAckFlow(f *model.Flow) bool {
	return f.TxBytes <= ackBytesPerPacket*f.TxPackets
}

// IsValid reports whether a flow takes part in the aggregates: it must have
// every rate metric and must not be an ACK flow.
func IsValid(f *model.Flow) bool {
	if f.FCT == nil || f.TxBitrate == nil || f.RxBitrate == nil || f.Throughput == nil {
		return false
	}
	return !IsAckFlow(f)
}

type classTotals struct {
	count  int
	fctSum float64
}

func (c classTotals) mean() *float64 {
	if c.count == 0 {
		return nil
	}
	return model.Float(c.fctSum / float64(c.count))
}

// Aggregator accumulates the valid flows of one file.
type Aggregator struct {
	simulations int

	flowCount  int
	fctSum     float64
	txPackets  uint64
	rxPackets  uint64
	lost       uint64
	classes    [3]classTotals
	largeTput  float64
	maxSmall   *model.FlowRef
	flows      []*model.Flow
	smallFlows []*model.Flow
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Add accumulates the valid flows of a simulation run and returns them in
// run order.
func (a *Aggregator) Add(sim *model.Simulation) []*model.Flow {
	a.simulations++
	start := len(a.flows)
	for _, flow := range sim.Flows {
		if !IsValid(flow) {
			continue
		}
		a.addFlow(flow)
	}
	return a.flows[start:]
}

func (a *Aggregator) addFlow(flow *model.Flow) {
	fct := *flow.FCT

	a.flowCount++
	a.fctSum += fct
	a.txPackets += flow.TxPackets
	a.rxPackets += flow.RxPackets
	a.lost += flow.LostPackets
	a.flows = append(a.flows, flow)

	class := Classify(flow)
	a.classes[class].count++
	a.classes[class].fctSum += fct

	switch class {
	case Large:
		a.largeTput += *flow.Throughput
	case Small:
		if a.maxSmall == nil || fct > a.maxSmall.FCT {
			a.maxSmall = &model.FlowRef{ID: flow.ID, FCT: fct}
		}
		a.smallFlows = append(a.smallFlows, flow)
	}
}

// ValidFlows returns the valid flows seen so far, in encounter order.
func (a *Aggregator) ValidFlows() []*model.Flow {
	return a.flows
}

// Summary computes the per-file statistics. It fails with ErrNoValidFlows
// when nothing was accumulated.
func (a *Aggregator) Summary() (model.FileSummary, error) {
	if a.flowCount == 0 || a.txPackets == 0 {
		return model.FileSummary{}, ErrNoValidFlows
	}

	s := model.FileSummary{
		Simulations:      a.simulations,
		ValidFlows:       a.flowCount,
		SmallFlows:       a.classes[Small].count,
		MiddleFlows:      a.classes[Middle].count,
		LargeFlows:       a.classes[Large].count,
		TotalTxPackets:   a.txPackets,
		TotalRxPackets:   a.rxPackets,
		TotalLostPackets: a.lost,
		LossRate:         float64(a.lost) / float64(a.txPackets),
		MeanFCT:          a.fctSum / float64(a.flowCount),
		MeanSmallFCT:     a.classes[Small].mean(),
		MeanMiddleFCT:    a.classes[Middle].mean(),
		MeanLargeFCT:     a.classes[Large].mean(),
	}
	if a.maxSmall != nil {
		ref := *a.maxSmall
		s.MaxSmallFlow = &ref
	}
	if n := a.classes[Large].count; n > 0 {
		s.MeanLargeThroughput = model.Float(a.largeTput / float64(n))
	}

	s.FCT99, _ = PercentileFCT(a.flows)
	if v, ok := PercentileFCT(a.smallFlows); ok {
		s.SmallFCT99 = model.Float(v)
	}
	return s, nil
}

// PercentileIndex is the zero-based index of the 99th percentile element of
// a sorted list of length n: floor(0.99*n), without interpolation.
func PercentileIndex(n int) int {
	return n * 99 / 100
}

// PercentileFCT returns the 99th percentile completion time of flows. The
// input order is left untouched. ok is false for an empty list.
func PercentileFCT(flows []*model.Flow) (fct float64, ok bool) {
	if len(flows) == 0 {
		return 0, false
	}
	fcts := make([]float64, len(flows))
	for i, f := range flows {
		fcts[i] = *f.FCT
	}
	slices.Sort(fcts)
	return fcts[PercentileIndex(len(fcts))], true
}

// Aggregate consumes a sequence of runs from one file and summarizes it.
// Each valid flow is handed to observe, if non-nil, as it is accumulated.
func Aggregate(runs iter.Seq2[*model.Simulation, error], observe func(*model.Flow)) (model.FileSummary, error) {
	agg := NewAggregator()
	for sim, err := range runs {
		if err != nil {
			return model.FileSummary{}, err
		}
		for _, flow := range agg.Add(sim) {
			if observe != nil {
				observe(flow)
			}
		}
	}
	return agg.Summary()
}
