// Package merge clusters records whose messages differ only in a few
// token positions into templated representatives.
//
// Records are partitioned by record.GroupKey. Inside a group each record is
// compared, token by token, against the representatives built so far; when
// the share of equal positions exceeds the threshold the record is folded
// into that representative and the differing positions become "${i}"
// placeholders backed by value sets.
package merge

import (
	"fmt"
	"sort"

	"github.com/bimmerbailey/logsheet/internal/config"
	"github.com/bimmerbailey/logsheet/internal/record"
	"github.com/mohae/deepcopy"
	"github.com/pkg/errors"
)

// Error reports an inconsistency found while folding Candidate into Rep.
type Error struct {
	Rep       int // row number of the representative
	Candidate int // row number of the folded record
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("merge row %d into row %d: %v", e.Candidate, e.Rep, e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Cause implements the github.com/pkg/errors causer interface.
func (e *Error) Cause() error { return e.Err }

// Stats summarizes one Merge call.
type Stats struct {
	Groups          int
	Representatives int
	Folded          int
}

// Engine performs the similarity merge.
type Engine struct {
	threshold float64
	stats     Stats
}

// New creates an Engine. A threshold outside (0, 1] falls back to
// config.DefaultThreshold.
func New(threshold float64) *Engine {
	if threshold <= 0 || threshold > 1 {
		threshold = config.DefaultThreshold
	}
	return &Engine{threshold: threshold}
}

// Threshold returns the similarity threshold in use.
func (e *Engine) Threshold() float64 { return e.threshold }

// Stats returns counters from the last Merge call.
func (e *Engine) Stats() Stats { return e.stats }

// Merge clusters records and returns the representatives, group by group
// in order of each group's first appearance. Input records are not
// modified.
func (e *Engine) Merge(records []*record.Record) ([]*record.Record, error) {
	e.stats = Stats{}

	var order []record.GroupKey
	groups := make(map[record.GroupKey][]*record.Record)
	for _, r := range records {
		key := r.GroupKey()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], r)
	}
	e.stats.Groups = len(order)

	out := make([]*record.Record, 0, len(records))
	for _, key := range order {
		reps, err := e.cluster(groups[key])
		if err != nil {
			return nil, err
		}
		for _, rep := range reps {
			if len(rep.MessageValues) > 0 {
				rep.MessageValuesStr = rep.RenderValues()
				rep.MessageStr = join(rep.MessageTokens)
			}
		}
		out = append(out, reps...)
	}
	e.stats.Representatives = len(out)
	return out, nil
}

func (e *Engine) cluster(group []*record.Record) ([]*record.Record, error) {
	sorted := make([]*record.Record, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RowNumber < sorted[j].RowNumber
	})

	reps := []*record.Record{seed(sorted[0])}
	for _, candidate := range sorted[1:] {
		folded := false
		for _, rep := range reps {
			if !Similar(rep.MessageTokens, candidate.MessageTokens, e.threshold) {
				continue
			}
			if err := fold(rep, candidate); err != nil {
				return nil, err
			}
			e.stats.Folded++
			folded = true
			break
		}
		if !folded {
			reps = append(reps, seed(candidate))
		}
	}
	return reps, nil
}

// Similar reports whether two token sequences have the same length, more
// than one token, and a share of equal positions strictly above threshold.
func Similar(a, b []string, threshold float64) bool {
	if len(a) != len(b) || len(a) <= 1 {
		return false
	}
	equal := 0
	for i := range a {
		if a[i] == b[i] {
			equal++
		}
	}
	return float64(equal)/float64(len(a)) > threshold
}

// seed returns a representative that owns its token slice and value sets.
func seed(r *record.Record) *record.Record {
	rep := *r
	rep.MessageTokens = deepcopy.Copy(r.MessageTokens).([]string)
	if r.MessageValues != nil {
		rep.MessageValues = deepcopy.Copy(r.MessageValues).(map[int]map[string]struct{})
	}
	return &rep
}

// fold merges candidate into rep.
func fold(rep, candidate *record.Record) error {
	if len(rep.MessageTokens) != len(candidate.MessageTokens) {
		return &Error{
			Rep:       rep.RowNumber,
			Candidate: candidate.RowNumber,
			Err: errors.Errorf("token count mismatch: %d != %d",
				len(rep.MessageTokens), len(candidate.MessageTokens)),
		}
	}

	for i, token := range candidate.MessageTokens {
		current := rep.MessageTokens[i]
		if current == token {
			continue
		}
		if _, ok := rep.MessageValues[i]; ok {
			rep.AddValue(i, token)
			continue
		}
		if current == record.Placeholder(i) {
			return &Error{
				Rep:       rep.RowNumber,
				Candidate: candidate.RowNumber,
				Err:       errors.Errorf("placeholder at position %d has no value set", i),
			}
		}
		rep.AddValue(i, current, token)
		rep.MessageTokens[i] = record.Placeholder(i)
	}

	rep.SimilarRows += candidate.SimilarRows
	return nil
}

func join(tokens []string) string {
	n := 0
	for _, t := range tokens {
		n += len(t)
	}
	buf := make([]byte, 0, n)
	for _, t := range tokens {
		buf = append(buf, t...)
	}
	return string(buf)
}
