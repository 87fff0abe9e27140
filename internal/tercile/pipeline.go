package tercile

import (
	"fmt"

	"github.com/coastwatch/tercile/internal/field"
)

// State carries the intermediate products of one inference run through
// the pipeline stages.
type State struct {
	Field    *field.Field
	Boundary *Boundary
	Fit      *GaussianFit
	Probs    *Probabilities
	Max      []float64
}

type stage struct {
	name string
	run  func(*State) error
}

// Pipeline is a deferred computation over one forecast initialization.
// Stages only describe work; nothing runs until Evaluate forces the
// whole chain, once. Evaluation is memoized: repeated Evaluate calls
// return the same result without recomputing.
type Pipeline struct {
	stages []stage
	state  *State
	forced bool
	err    error
}

// NewPipeline starts an empty pipeline over a raw forecast field and
// its (raw lead axis) boundary dataset.
func NewPipeline(f *field.Field, b *Boundary) *Pipeline {
	return &Pipeline{state: &State{Field: f, Boundary: b}}
}

// Add registers a named stage. It has no effect after Evaluate.
func (p *Pipeline) Add(name string, run func(*State) error) *Pipeline {
	p.stages = append(p.stages, stage{name: name, run: run})
	return p
}

// Evaluate forces the pipeline. The first failing stage aborts the run
// and its error (annotated with the stage name) is returned from every
// subsequent call.
func (p *Pipeline) Evaluate() (*State, error) {
	if p.forced {
		if p.err != nil {
			return nil, p.err
		}
		return p.state, nil
	}
	p.forced = true
	for _, st := range p.stages {
		if err := st.run(p.state); err != nil {
			p.err = fmt.Errorf("%s: %w", st.name, err)
			return nil, p.err
		}
	}
	return p.state, nil
}

// ForecastPipeline wires the standard inference chain: bin the forecast
// leads into windows, bin the boundaries with the same spec, fit the
// ensemble Gaussian, evaluate the tercile probabilities and reduce to
// the dominant category.
func ForecastPipeline(f *field.Field, b *Boundary, spec field.LeadBinSpec) *Pipeline {
	p := NewPipeline(f, b)
	p.Add("bin leads", func(s *State) error {
		binned, err := s.Field.BinLeads(spec)
		if err != nil {
			return err
		}
		s.Field = binned
		return nil
	})
	p.Add("bin boundaries", func(s *State) error {
		binned, err := s.Boundary.BinLeads(spec)
		if err != nil {
			return err
		}
		s.Boundary = binned
		return nil
	})
	p.Add("fit ensemble", func(s *State) error {
		fit, err := EstimateGaussian(s.Field)
		if err != nil {
			return err
		}
		s.Fit = fit
		return nil
	})
	p.Add("tercile probabilities", func(s *State) error {
		probs, err := ComputeProbabilities(s.Fit, s.Boundary)
		if err != nil {
			return err
		}
		s.Probs = probs
		return nil
	})
	p.Add("dominant category", func(s *State) error {
		s.Max = s.Probs.Dominant()
		return nil
	})
	return p
}
