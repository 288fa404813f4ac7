package query

// Compiled is a translated query, ready to execute.
type Compiled struct {
	Plan *Plan
	// Filter is the LDAP filter, empty when the searcher matches everything.
	Filter string
	// Request is the search to submit. It is nil when Empty.
	Request *SearchRequest
	// Empty is set when the filter reduced to false; no search is sent.
	Empty bool

	projector Step
}

// Reducer returns the terminal reducer, if any.
func (c *Compiled) Reducer() Reducer { return c.Plan.Reducer }

func (c *Compiled) paging() Paging {
	if c.Plan.Searcher == nil {
		return Paging{}
	}
	return c.Plan.Searcher.Paging
}

func compile(c *Context, n Node) (*Compiled, error) {
	evaluated, err := partition(n)
	if err != nil {
		return nil, err
	}
	plan, err := bind(c, evaluated)
	if err != nil {
		return nil, err
	}
	plan = rewrite(plan)

	projector, err := buildProjector(plan.Projector)
	if err != nil {
		return nil, err
	}
	out := &Compiled{Plan: plan, projector: projector}
	if plan.Searcher == nil {
		out.Empty = true
		return out, nil
	}
	if e, ok := projector.(*entryStep); ok {
		e.attributes = plan.Searcher.Attributes
	}

	req, err := searchRequest(plan)
	if err != nil {
		return nil, err
	}
	out.Request = req
	out.Filter = req.Filter
	return out, nil
}

func searchRequest(plan *Plan) (*SearchRequest, error) {
	s := plan.Searcher
	req := &SearchRequest{
		Root:       s.Root,
		Attributes: s.Attributes,
		Scope:      s.Scope,
		SizeLimit:  sizeLimit(s.Paging, plan.Reducer),
	}
	if s.Filter != nil {
		filter, err := FormatFilter(s.Filter)
		if err != nil {
			return nil, err
		}
		req.Filter = filter
	}
	if s.Sort != nil {
		key := s.Sort.Key
		attr, ok := key.(*AttributeRef)
		if !ok {
			attr = implicitAttribute(key)
		}
		if attr == nil {
			return nil, notSupported("compile", "sort order other than a single attribute: %s", Dump(key))
		}
		req.Sort = &SortKey{Attribute: attr.Name, Descending: s.Sort.Descending}
	}
	return req, nil
}

// sizeLimit is the number of entries the server needs to return for the
// window to be filled. Zero is unlimited.
func sizeLimit(p Paging, r Reducer) int {
	skip := 0
	if p.Skip != nil {
		skip = *p.Skip
	}
	if p.Take != nil {
		return *p.Take + skip
	}
	switch r {
	case ReduceFirst, ReduceFirstOrDefault:
		return skip + 1
	case ReduceSingle, ReduceSingleOrDefault:
		return skip + 2
	}
	return 0
}
