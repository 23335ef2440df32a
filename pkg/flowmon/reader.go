package flowmon

import (
	"Go2FctSpectra/internal/model"
	"encoding/xml"
	"errors"
	"io"
	"iter"
	"os"

	log "github.com/sirupsen/logrus"
)

// monitorElement is the tag of one simulation run.
const monitorElement = "FlowMonitor"

// Reader streams Simulations out of a FlowMonitor XML document. Only the
// run currently being built is held in memory.
type Reader struct {
	dec    *xml.Decoder
	closer io.Closer
	depth  int
	runs   int
	err    error
}

// Open opens a FlowMonitor XML file for streaming.
func Open(filePath string) (*Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	r := NewReader(file)
	r.closer = file
	return r, nil
}

// NewReader creates a reader over an already opened document.
func NewReader(src io.Reader) *Reader {
	return &Reader{dec: xml.NewDecoder(src)}
}

// Close releases the underlying file, if the reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// Next returns the next simulation run in document order. It returns io.EOF
// once the document is exhausted. After any other error the reader is
// unusable and keeps returning that error.
func (r *Reader) Next() (*model.Simulation, error) {
	if r.err != nil {
		return nil, r.err
	}
	sim, err := r.next()
	if err != nil {
		r.err = err
	}
	return sim, err
}

func (r *Reader) next() (*model.Simulation, error) {
	for {
		tok, err := r.dec.Token()
		if errors.Is(err, io.EOF) {
			if r.depth != 0 {
				return nil, &ParseError{Offset: r.dec.InputOffset(), Err: io.ErrUnexpectedEOF}
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, &ParseError{Offset: r.dec.InputOffset(), Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if r.depth == 0 && t.Name.Local == monitorElement {
				return r.decodeRun(&t)
			}
			r.depth++
		case xml.EndElement:
			r.depth--
		}
	}
}

// decodeRun consumes one run subtree, up to and including its end element,
// and builds it. The decoded subtree goes out of scope on return.
func (r *Reader) decodeRun(start *xml.StartElement) (*model.Simulation, error) {
	var raw xmlMonitor
	if err := r.dec.DecodeElement(&raw, start); err != nil {
		return nil, &ParseError{Offset: r.dec.InputOffset(), Err: err}
	}
	index := r.runs
	r.runs++

	sim, err := buildSimulation(index, &raw)
	if err != nil {
		return nil, err
	}
	log.Debugf("Parsed run %d with %d flows.", index, len(sim.Flows))
	return sim, nil
}

// All returns the remaining runs as a sequence. The sequence stops after the
// first error, which is yielded with a nil Simulation. It cannot be restarted.
func (r *Reader) All() iter.Seq2[*model.Simulation, error] {
	return func(yield func(*model.Simulation, error) bool) {
		for {
			sim, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(sim, err) || err != nil {
				return
			}
		}
	}
}

// ReadAll parses every run of a file and closes it, whether parsing
// succeeds or not.
func ReadAll(filePath string) ([]*model.Simulation, error) {
	r, err := Open(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var sims []*model.Simulation
	for sim, err := range r.All() {
		if err != nil {
			return nil, err
		}
		sims = append(sims, sim)
	}
	return sims, nil
}
