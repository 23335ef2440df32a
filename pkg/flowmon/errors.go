package flowmon

import (
	"fmt"
)

// ParseError reports malformed XML.
type ParseError struct {
	Offset int64 // input offset at which decoding failed
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed flow monitor XML near offset %d: %v", e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// FormatError reports an attribute whose value does not have the expected
// shape, most commonly a time value without its "ns" unit suffix.
type FormatError struct {
	Element string
	FlowID  string
	Attr    string
	Value   string
	Reason  string
}

func (e *FormatError) Error() string {
	if e.FlowID == "" {
		return fmt.Sprintf("%s: attribute %s=%q: %s", e.Element, e.Attr, e.Value, e.Reason)
	}
	return fmt.Sprintf("%s flowId=%s: attribute %s=%q: %s", e.Element, e.FlowID, e.Attr, e.Value, e.Reason)
}

// LookupError reports a classifier or probe record that references a flow
// id absent from the run's FlowStats section. It means the producer and the
// consumer disagree on the schema and is never recoverable.
type LookupError struct {
	Section string
	FlowID  int
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s references unknown flowId=%d", e.Section, e.FlowID)
}
