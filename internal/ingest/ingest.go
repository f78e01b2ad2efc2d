// Package ingest imports book records into the catalog from Open Library
// metadata looked up by ISBN.
package ingest

import (
	"mediacatalog/internal/catalog"
)

// Request asks for one record per ISBN. Category, Genre and Quantity
// apply to every imported record.
type Request struct {
	ISBNs    []string `json:"isbns"`
	Quantity int      `json:"quantity"`
	Category string   `json:"category"`
	Genre    string   `json:"genre"`
}

// Issue explains why an ISBN was not imported.
type Issue struct {
	ISBN   string `json:"isbn"`
	Reason string `json:"reason"`
}

// Result partitions the requested ISBNs. Every normalized ISBN lands in
// exactly one list.
type Result struct {
	Created  []catalog.Record `json:"created"`
	Skipped  []Issue          `json:"skipped"`
	Missing  []string         `json:"missing"`
	Rejected []Issue          `json:"rejected"`
}

// Run summarizes one import for logging.
type Run struct {
	Requested int
	Fetched   int
	Created   int
	Skipped   int
	Missing   int
	Rejected  int
}

func (r Result) run(requested, fetched int) Run {
	return Run{
		Requested: requested,
		Fetched:   fetched,
		Created:   len(r.Created),
		Skipped:   len(r.Skipped),
		Missing:   len(r.Missing),
		Rejected:  len(r.Rejected),
	}
}
