package scheduler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atikulmunna/poplog/internal/config"
	"github.com/atikulmunna/poplog/internal/logfile"
	"github.com/atikulmunna/poplog/internal/parser"
)

// Policy is the compiled monitoring settings for one job group.
type Policy struct {
	jobs   map[int]struct{} // nil selects every job
	Source logfile.Source
	Filter *parser.LevelFilter
	Max    int
}

// NewPolicy compiles o. An invalid pattern, level, source or unmatched
// policy is an error.
func NewPolicy(o config.Options) (*Policy, error) {
	threshold, err := parser.ParseThreshold(o.LogLevel)
	if err != nil {
		return nil, err
	}
	source, err := logfile.ParseSource(o.Source)
	if err != nil {
		return nil, err
	}
	unmatched := parser.UnmatchedForward
	if o.Unmatched != "" {
		if unmatched, err = parser.ParseUnmatched(o.Unmatched); err != nil {
			return nil, err
		}
	}
	filter, err := parser.NewLevelFilter(o.Pattern, threshold, unmatched)
	if err != nil {
		return nil, err
	}

	p := &Policy{Source: source, Filter: filter, Max: o.Max}
	if len(o.Jobs) > 0 {
		p.jobs = make(map[int]struct{}, len(o.Jobs))
		for _, j := range o.Jobs {
			p.jobs[j] = struct{}{}
		}
	}
	return p, nil
}

// Selects reports whether the job with this index is monitored.
func (p *Policy) Selects(index int) bool {
	if p.jobs == nil {
		return true
	}
	_, ok := p.jobs[index]
	return ok
}

// Policies maps job groups to their policy.
type Policies struct {
	def    *Policy
	groups map[string]*Policy
}

// NewPolicies compiles the defaults and every group of cfg. All failures
// are reported together; any failure must stop startup.
func NewPolicies(cfg *config.Config) (*Policies, error) {
	var errs []error
	def, err := NewPolicy(cfg.Options)
	if err != nil {
		errs = append(errs, fmt.Errorf("defaults: %w", err))
	}
	ps := &Policies{def: def, groups: make(map[string]*Policy, len(cfg.Groups))}
	for name := range cfg.Groups {
		p, err := NewPolicy(cfg.Resolve(name))
		if err != nil {
			errs = append(errs, fmt.Errorf("group %s: %w", name, err))
			continue
		}
		ps.groups[strings.ToLower(name)] = p
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return ps, nil
}

// SinglePolicy returns Policies that use p for every group.
func SinglePolicy(p *Policy) *Policies {
	return &Policies{def: p}
}

// For returns the policy for a job group.
func (ps *Policies) For(group string) *Policy {
	if p, ok := ps.groups[strings.ToLower(group)]; ok {
		return p
	}
	return ps.def
}
