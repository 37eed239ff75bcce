package filter

import (
	"fmt"
)

// Pipeline is the ordered list of filters plus an optional compressor.
type Pipeline struct {
	filters    []Codec
	compressor Codec
}

// NewPipeline creates a pipeline from filter and compressor configurations.
func NewPipeline(filters []Config, compressor *Config) (*Pipeline, error) {
	p := &Pipeline{
		filters: make([]Codec, 0, len(filters)),
	}

	for _, cfg := range filters {
		c, err := New(cfg)
		if err != nil {
			return nil, fmt.Errorf("creating filter %s: %w", cfg.ID, err)
		}
		p.filters = append(p.filters, c)
	}

	if compressor != nil {
		c, err := New(*compressor)
		if err != nil {
			return nil, fmt.Errorf("creating compressor %s: %w", compressor.ID, err)
		}
		p.compressor = c
	}

	return p, nil
}

// Encode runs the filters in order and then the compressor.
func (p *Pipeline) Encode(input []byte) ([]byte, error) {
	data := input
	for _, f := range p.filters {
		var err error
		data, err = f.Encode(data)
		if err != nil {
			return nil, fmt.Errorf("filter %s encode: %w", f.ID(), err)
		}
	}
	if p.compressor != nil {
		var err error
		data, err = p.compressor.Encode(data)
		if err != nil {
			return nil, fmt.Errorf("compressor %s encode: %w", p.compressor.ID(), err)
		}
	}
	return data, nil
}

// Decode runs the compressor and then the filters in reverse order.
func (p *Pipeline) Decode(input []byte) ([]byte, error) {
	data := input
	if p.compressor != nil {
		var err error
		data, err = p.compressor.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("compressor %s decode: %w", p.compressor.ID(), err)
		}
	}
	for i := len(p.filters) - 1; i >= 0; i-- {
		var err error
		data, err = p.filters[i].Decode(data)
		if err != nil {
			return nil, fmt.Errorf("filter %s decode: %w", p.filters[i].ID(), err)
		}
	}
	return data, nil
}

// Filters returns the configurations of the filters.
func (p *Pipeline) Filters() []Config {
	out := make([]Config, len(p.filters))
	for i, f := range p.filters {
		out[i] = f.Config()
	}
	return out
}

// Compressor returns the compressor configuration, or nil.
func (p *Pipeline) Compressor() *Config {
	if p.compressor == nil {
		return nil
	}
	cfg := p.compressor.Config()
	return &cfg
}

// Empty returns true if the pipeline does nothing.
func (p *Pipeline) Empty() bool {
	return len(p.filters) == 0 && p.compressor == nil
}

// Len returns the number of stages in the pipeline.
func (p *Pipeline) Len() int {
	n := len(p.filters)
	if p.compressor != nil {
		n++
	}
	return n
}
