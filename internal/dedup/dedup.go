// Package dedup collects assembled records and optionally collapses
// structurally identical ones.
package dedup

import "github.com/bimmerbailey/logsheet/internal/record"

// Collection is an insertion-ordered record list. In unique mode only the
// first record of each record.Key is kept and every occurrence is counted.
type Collection struct {
	unique  bool
	records []*record.Record
	counts  map[record.Key]int
	added   int
}

// New creates a Collection.
func New(unique bool) *Collection {
	c := &Collection{unique: unique}
	if unique {
		c.counts = make(map[record.Key]int)
	}
	return c
}

// Add stores r, or counts it against an earlier identical record.
func (c *Collection) Add(r *record.Record) {
	c.added++
	if !c.unique {
		c.records = append(c.records, r)
		return
	}
	key := r.Key()
	if c.counts[key] == 0 {
		c.records = append(c.records, r)
	}
	c.counts[key]++
}

// Len returns the number of distinct records held.
func (c *Collection) Len() int { return len(c.records) }

// Added returns the number of records passed to Add.
func (c *Collection) Added() int { return c.added }

// Records returns the held records in first-occurrence order with
// SimilarRows set to their multiplicity.
func (c *Collection) Records() []*record.Record {
	for _, r := range c.records {
		if c.unique {
			r.SimilarRows = c.counts[r.Key()]
		} else {
			r.SimilarRows = 1
		}
	}
	return c.records
}
