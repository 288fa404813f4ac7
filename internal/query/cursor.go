package query

import (
	"context"
	"iter"
	"time"
)

type cursorState int

const (
	cursorNotStarted cursorState = iota
	cursorExecuting
	cursorExhausted
	cursorFaulted
)

// Cursor pulls the results of a compiled query. The search is submitted on
// the first call to Next and the record set is closed once the results are
// exhausted, on error, or on Close. A Cursor is single-pass and must not be
// shared between goroutines.
type Cursor[T any] struct {
	ctx      context.Context
	qc       *Context
	compiled *Compiled

	state      cursorState
	enumerated bool
	closed     bool
	records    RecordSet
	started    time.Time
	read       int
	skipped    int
	yielded    int
	current    T
	err        error
}

func newCursor[T any](ctx context.Context, qc *Context, compiled *Compiled) *Cursor[T] {
	return &Cursor[T]{ctx: ctx, qc: qc, compiled: compiled}
}

// faultedCursor reports err from its first Next.
func faultedCursor[T any](err error) *Cursor[T] {
	return &Cursor[T]{state: cursorFaulted, err: err}
}

func (c *Cursor[T]) metrics() *Metrics {
	if c.qc == nil {
		return nil
	}
	return c.qc.opts.Metrics
}

// Next advances to the next result.
func (c *Cursor[T]) Next() bool {
	rec, ok := c.nextRecord()
	if !ok {
		return false
	}
	v, err := c.project(rec)
	if err != nil {
		c.fault(err)
		return false
	}
	c.current = v
	return true
}

// Value returns the current result.
func (c *Cursor[T]) Value() T { return c.current }

// Err returns the error that stopped the cursor, if any.
func (c *Cursor[T]) Err() error { return c.err }

// Close releases the record set. It is safe to call more than once.
func (c *Cursor[T]) Close() error {
	switch c.state {
	case cursorNotStarted:
		c.state = cursorExhausted
		c.closed = true
	case cursorExecuting:
		c.finish()
	}
	return nil
}

// All returns the results as a sequence. It can be ranged over once; a second
// enumeration, or one after Close, yields an InvalidOperation error. Breaking
// out of the loop closes the cursor.
func (c *Cursor[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if c.closed && !c.enumerated {
			yield(zero, newError("enumerate", ErrorCategoryInvalidOperation, nil, "cursor was closed before enumeration"))
			return
		}
		if c.enumerated || c.state == cursorExecuting || c.state == cursorExhausted {
			yield(zero, newError("enumerate", ErrorCategoryInvalidOperation, nil, "cannot enumerate more than once"))
			return
		}
		c.enumerated = true
		defer c.Close()

		for c.Next() {
			if !yield(c.current, nil) {
				return
			}
		}
		if c.err != nil {
			yield(zero, c.err)
		}
	}
}

func (c *Cursor[T]) project(rec Record) (T, error) {
	v, err := c.compiled.projector.run(c.qc, rec)
	if err != nil {
		var zero T
		return zero, err
	}
	return convertResult[T](v)
}

// nextRecord returns the next record inside the skip/take window.
func (c *Cursor[T]) nextRecord() (Record, bool) {
	switch c.state {
	case cursorNotStarted:
		if !c.start() {
			return nil, false
		}
	case cursorExhausted, cursorFaulted:
		return nil, false
	}

	paging := c.compiled.paging()
	for {
		if paging.Take != nil && c.yielded >= *paging.Take {
			c.finish()
			return nil, false
		}
		if !c.records.Next() {
			if err := c.records.Err(); err != nil {
				c.fault(newError("search", ErrorCategoryBackend, err, "reading search results"))
				return nil, false
			}
			c.finish()
			return nil, false
		}
		c.read++
		c.metrics().observeRecord()
		if paging.Skip != nil && c.skipped < *paging.Skip {
			c.skipped++
			continue
		}
		c.yielded++
		return c.records.Record(), true
	}
}

func (c *Cursor[T]) start() bool {
	paging := c.compiled.paging()
	if c.compiled.Empty || (paging.Take != nil && *paging.Take == 0) {
		logDebug(c.ctx, "Skipping directory search, query cannot return results", nil)
		c.state = cursorExhausted
		c.metrics().observeSearch(OutcomeSkipped, 0)
		return false
	}
	if c.qc == nil || c.qc.backend == nil {
		c.fault(newError("search", ErrorCategoryInvalidOperation, nil, "no backend configured"))
		return false
	}

	req := c.compiled.Request
	logDebug(c.ctx, "Starting directory search", map[string]any{
		"root":       req.Root,
		"filter":     req.Filter,
		"scope":      req.Scope.String(),
		"attributes": len(req.Attributes),
		"size_limit": req.SizeLimit,
	})

	c.started = time.Now()
	records, err := c.qc.backend.Search(c.ctx, req)
	if err != nil {
		c.fault(newError("search", ErrorCategoryBackend, err, "search failed"))
		return false
	}
	c.records = records
	c.state = cursorExecuting
	return true
}

func (c *Cursor[T]) release() {
	if c.records != nil {
		_ = c.records.Close()
		c.records = nil
	}
}

func (c *Cursor[T]) finish() {
	c.release()
	c.state = cursorExhausted
	duration := time.Since(c.started)
	logDebug(c.ctx, "Directory search finished", map[string]any{
		"duration_ms": duration.Milliseconds(),
		"records":     c.read,
		"yielded":     c.yielded,
	})
	c.metrics().observeSearch(OutcomeOK, duration)
}

func (c *Cursor[T]) fault(err error) {
	wasExecuting := c.state == cursorExecuting
	c.release()
	c.state = cursorFaulted
	c.err = err
	fields := map[string]any{"error": err.Error()}
	var duration time.Duration
	if wasExecuting {
		duration = time.Since(c.started)
		fields["duration_ms"] = duration.Milliseconds()
		fields["records"] = c.read
	}
	logError(c.ctx, "Directory search failed", fields)
	c.metrics().observeSearch(OutcomeError, duration)
}

// count reads the window without projecting it.
func count[T any](c *Cursor[T]) (int, error) {
	defer c.Close()
	n := 0
	for {
		if _, ok := c.nextRecord(); !ok {
			break
		}
		n++
	}
	return n, c.err
}

// single applies the compiled reducer to the window.
func single[T any](c *Cursor[T]) (T, error) {
	defer c.Close()
	var zero T
	reducer := c.compiled.Reducer()

	first, ok := c.nextRecord()
	if !ok {
		if c.err != nil {
			return zero, c.err
		}
		if reducer.OrDefault() {
			return zero, nil
		}
		return zero, newError(reducer.String(), ErrorCategoryResultNotFound, nil, "sequence contains no elements")
	}

	switch reducer {
	case ReduceSingle, ReduceSingleOrDefault:
		if _, more := c.nextRecord(); more {
			return zero, newError(reducer.String(), ErrorCategoryMoreThanOneResult, nil, "sequence contains more than one element")
		}
	case ReduceLast, ReduceLastOrDefault:
		for {
			rec, more := c.nextRecord()
			if !more {
				break
			}
			first = rec
		}
	}
	if c.err != nil {
		return zero, c.err
	}
	return c.project(first)
}
