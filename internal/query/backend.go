package query

import (
	"context"
	"strings"
)

// SortKey orders a search server-side.
type SortKey struct {
	Attribute  string
	Descending bool
}

// SearchRequest is one physical search.
type SearchRequest struct {
	Root       string
	Filter     string // "" matches all entries
	Attributes []string
	Scope      Scope
	Sort       *SortKey
	SizeLimit  int // 0 is unlimited
}

// Backend executes searches.
type Backend interface {
	Search(ctx context.Context, req *SearchRequest) (RecordSet, error)
}

// RecordSet streams search results. Close must be called once the caller is
// done with it; it is safe to call more than once.
type RecordSet interface {
	Next() bool
	Record() Record
	Err() error
	Close() error
}

// Record is one directory entry.
type Record interface {
	DN() string
	// Attribute returns the raw values of name, matched case-insensitively.
	Attribute(name string) ([]any, bool)
	// Handle is the backend's own representation of the entry.
	Handle() any
}

// MapRecord is an in-memory Record.
type MapRecord struct {
	Name   string
	Values map[string][]any
}

func (r *MapRecord) DN() string { return r.Name }

func (r *MapRecord) Attribute(name string) ([]any, bool) {
	if v, ok := r.Values[name]; ok {
		return v, true
	}
	for k, v := range r.Values {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func (r *MapRecord) Handle() any { return r }

// SliceRecordSet streams a fixed list of records.
type SliceRecordSet struct {
	records []Record
	pos     int
	closed  bool
}

// NewRecordSet returns a RecordSet over records.
func NewRecordSet(records ...Record) *SliceRecordSet {
	return &SliceRecordSet{records: records, pos: -1}
}

func (s *SliceRecordSet) Next() bool {
	if s.closed || s.pos+1 >= len(s.records) {
		return false
	}
	s.pos++
	return true
}

func (s *SliceRecordSet) Record() Record {
	if s.pos < 0 || s.pos >= len(s.records) {
		return nil
	}
	return s.records[s.pos]
}

func (s *SliceRecordSet) Err() error { return nil }

func (s *SliceRecordSet) Close() error {
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *SliceRecordSet) Closed() bool { return s.closed }
