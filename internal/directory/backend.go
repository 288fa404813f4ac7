package directory

import (
	"context"
	"unicode/utf8"

	"github.com/go-ldap/ldap/v3"
	"golang.org/x/text/cases"

	adldap "github.com/isometry/terraform-provider-adquery/internal/ldap"
	"github.com/isometry/terraform-provider-adquery/internal/query"
)

// EntryStream is a stream of search result entries.
type EntryStream interface {
	Next() bool
	Entry() *ldap.Entry
	Err() error
	Close() error
}

// Searcher starts directory searches.
type Searcher interface {
	Search(ctx context.Context, req *adldap.SearchRequest) (EntryStream, error)
}

// SearchFunc adapts a function to Searcher.
type SearchFunc func(ctx context.Context, req *adldap.SearchRequest) (EntryStream, error)

func (f SearchFunc) Search(ctx context.Context, req *adldap.SearchRequest) (EntryStream, error) {
	return f(ctx, req)
}

// Backend runs query searches against a directory.
type Backend struct {
	searcher Searcher
}

var _ query.Backend = (*Backend)(nil)

// NewBackend returns a Backend using searcher.
func NewBackend(searcher Searcher) *Backend {
	return &Backend{searcher: searcher}
}

// ClientBackend returns a Backend searching through client.
func ClientBackend(client adldap.Client) *Backend {
	return NewBackend(SearchFunc(func(ctx context.Context, req *adldap.SearchRequest) (EntryStream, error) {
		stream, err := client.Search(ctx, req)
		if err != nil {
			return nil, err
		}
		return stream, nil
	}))
}

func (b *Backend) Search(ctx context.Context, req *query.SearchRequest) (query.RecordSet, error) {
	stream, err := b.searcher.Search(ctx, searchRequest(req))
	if err != nil {
		return nil, err
	}
	return &recordSet{stream: stream}, nil
}

func searchRequest(req *query.SearchRequest) *adldap.SearchRequest {
	out := &adldap.SearchRequest{
		BaseDN:     req.Root,
		Scope:      searchScope(req.Scope),
		Filter:     req.Filter,
		Attributes: req.Attributes,
		SizeLimit:  req.SizeLimit,
	}
	if req.Sort != nil {
		out.Sort = &adldap.SortKey{
			Attribute: req.Sort.Attribute,
			Reverse:   req.Sort.Descending,
		}
	}
	return out
}

func searchScope(s query.Scope) adldap.SearchScope {
	switch s {
	case query.ScopeBase:
		return adldap.ScopeBaseObject
	case query.ScopeOneLevel:
		return adldap.ScopeSingleLevel
	default:
		return adldap.ScopeWholeSubtree
	}
}

type recordSet struct {
	stream  EntryStream
	current *entryRecord
	closed  bool
}

func (r *recordSet) Next() bool {
	if r.closed || !r.stream.Next() {
		r.current = nil
		return false
	}
	r.current = newEntryRecord(r.stream.Entry())
	return true
}

func (r *recordSet) Record() query.Record {
	if r.current == nil {
		return nil
	}
	return r.current
}

func (r *recordSet) Err() error {
	return r.stream.Err()
}

func (r *recordSet) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.stream.Close()
}

// entryRecord exposes an ldap.Entry as a query.Record. Attribute names are
// matched by Unicode case folding.
type entryRecord struct {
	entry *ldap.Entry
	index map[string]*ldap.EntryAttribute
}

var fold = cases.Fold()

func newEntryRecord(entry *ldap.Entry) *entryRecord {
	index := make(map[string]*ldap.EntryAttribute, len(entry.Attributes))
	for _, a := range entry.Attributes {
		index[fold.String(a.Name)] = a
	}
	return &entryRecord{entry: entry, index: index}
}

func (r *entryRecord) DN() string { return r.entry.DN }

// Attribute returns text values as strings and binary values, such as
// objectGUID, as []byte.
func (r *entryRecord) Attribute(name string) ([]any, bool) {
	a, ok := r.index[fold.String(name)]
	if !ok {
		return nil, false
	}

	raw := a.ByteValues
	if len(raw) == 0 && len(a.Values) > 0 {
		raw = make([][]byte, len(a.Values))
		for i, v := range a.Values {
			raw[i] = []byte(v)
		}
	}

	values := make([]any, len(raw))
	for i, b := range raw {
		if utf8.Valid(b) {
			values[i] = string(b)
		} else {
			values[i] = b
		}
	}
	return values, true
}

func (r *entryRecord) Handle() any { return r.entry }
