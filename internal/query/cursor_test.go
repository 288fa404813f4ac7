package query

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// brokenRecordSet yields its records and then reports err.
type brokenRecordSet struct {
	*SliceRecordSet
	err error
}

func (b *brokenRecordSet) Err() error { return b.err }

func names(t *testing.T, q *Query[person]) []string {
	t.Helper()
	results, err := q.ToSlice(t.Context())
	require.NoError(t, err)
	out := make([]string, len(results))
	for i, p := range results {
		out[i] = p.Name
	}
	return out
}

func TestCursor_SkipTake(t *testing.T) {
	all := people(100)
	set := NewRecordSet(all...)
	var req *SearchRequest
	c := newTestContext(recordingBackend(set, &req))

	got := names(t, From[person](c, personMapping).
		OrderBy(func(x Expr) Expr { return x.Field("Name") }).
		Skip(90).
		Take(10))

	var want []string
	for _, r := range all[90:100] {
		v, _ := r.Attribute("cn")
		want = append(want, v[0].(string))
	}
	assert.Equal(t, want, got)
	require.NotNil(t, req)
	assert.Equal(t, 100, req.SizeLimit)
	assert.True(t, set.Closed())
}

func TestCursor_Window(t *testing.T) {
	tests := []struct {
		name  string
		build func(q *Query[person]) *Query[person]
		want  []string
	}{
		{
			name:  "skip only",
			build: func(q *Query[person]) *Query[person] { return q.Skip(3) },
			want:  []string{"user003", "user004"},
		},
		{
			name:  "take only",
			build: func(q *Query[person]) *Query[person] { return q.Take(2) },
			want:  []string{"user000", "user001"},
		},
		{
			name:  "later take replaces earlier",
			build: func(q *Query[person]) *Query[person] { return q.Take(1).Take(3) },
			want:  []string{"user000", "user001", "user002"},
		},
		{
			name:  "skip past the end",
			build: func(q *Query[person]) *Query[person] { return q.Skip(10) },
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := NewRecordSet(people(5)...)
			var req *SearchRequest
			c := newTestContext(recordingBackend(set, &req))
			got := names(t, tt.build(From[person](c, personMapping)))
			assert.Equal(t, tt.want, got)
			assert.True(t, set.Closed())
		})
	}
}

func TestCursor_Reducers(t *testing.T) {
	tests := []struct {
		name      string
		records   int
		run       func(q *Query[string], ctx context.Context, where ...Predicate) (string, error)
		want      string
		wantLimit int
		check     func(error) bool
	}{
		{
			name:      "first of many",
			records:   3,
			run:       (*Query[string]).First,
			want:      "user000",
			wantLimit: 1,
		},
		{
			name:      "first of none",
			records:   0,
			run:       (*Query[string]).First,
			wantLimit: 1,
			check:     IsResultNotFound,
		},
		{
			name:      "first or default of none",
			records:   0,
			run:       (*Query[string]).FirstOrDefault,
			wantLimit: 1,
		},
		{
			name:      "single of one",
			records:   1,
			run:       (*Query[string]).Single,
			want:      "user000",
			wantLimit: 2,
		},
		{
			name:      "single of two",
			records:   2,
			run:       (*Query[string]).Single,
			wantLimit: 2,
			check:     IsMoreThanOneResult,
		},
		{
			name:      "single of none",
			records:   0,
			run:       (*Query[string]).Single,
			wantLimit: 2,
			check:     IsResultNotFound,
		},
		{
			name:      "single or default of none",
			records:   0,
			run:       (*Query[string]).SingleOrDefault,
			wantLimit: 2,
		},
		{
			name:      "single or default of two",
			records:   2,
			run:       (*Query[string]).SingleOrDefault,
			wantLimit: 2,
			check:     IsMoreThanOneResult,
		},
		{
			name:    "last of three",
			records: 3,
			run:     (*Query[string]).Last,
			want:    "user002",
		},
		{
			name:    "last of none",
			records: 0,
			run:     (*Query[string]).Last,
			check:   IsResultNotFound,
		},
		{
			name:    "last or default of none",
			records: 0,
			run:     (*Query[string]).LastOrDefault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := NewRecordSet(people(tt.records)...)
			var req *SearchRequest
			c := newTestContext(recordingBackend(set, &req))
			q := Select[person, string](From[person](c, personMapping), func(x Expr) Expr {
				return x.Field("Name")
			})

			got, err := tt.run(q, t.Context())
			if tt.check != nil {
				require.Error(t, err)
				assert.True(t, tt.check(err), "unexpected error: %v", err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			require.NotNil(t, req)
			assert.Equal(t, tt.wantLimit, req.SizeLimit)
			assert.True(t, set.Closed())
		})
	}
}

func TestCursor_ReducerAfterSkip(t *testing.T) {
	set := NewRecordSet(people(10)...)
	var req *SearchRequest
	c := newTestContext(recordingBackend(set, &req))

	p, err := From[person](c, personMapping).Skip(3).First(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "user003", p.Name)
	assert.Equal(t, 4, req.SizeLimit)
}

func TestCursor_ReducerPredicate(t *testing.T) {
	set := NewRecordSet(personRecord(7))
	var req *SearchRequest
	c := newTestContext(recordingBackend(set, &req))

	p, err := From[person](c, personMapping).Single(t.Context(), func(x Expr) Expr {
		return x.Field("Name").Eq("user007")
	})
	require.NoError(t, err)
	assert.Equal(t, "user007", p.Name)
	assert.Equal(t, "(&(objectClass=user)(cn=user007))", req.Filter)
}

func TestCursor_Count(t *testing.T) {
	tests := []struct {
		name  string
		build func(q *Query[person]) *Query[person]
		where []Predicate
		want  int
	}{
		{name: "all", build: func(q *Query[person]) *Query[person] { return q }, want: 10},
		{name: "after skip", build: func(q *Query[person]) *Query[person] { return q.Skip(3) }, want: 7},
		{name: "window", build: func(q *Query[person]) *Query[person] { return q.Skip(3).Take(5) }, want: 5},
		{
			name:  "with predicate",
			build: func(q *Query[person]) *Query[person] { return q },
			where: []Predicate{func(x Expr) Expr { return x.Field("Mail").NotNull() }},
			want:  10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := NewRecordSet(people(10)...)
			var req *SearchRequest
			c := newTestContext(recordingBackend(set, &req))

			n, err := tt.build(From[person](c, personMapping)).Count(t.Context(), tt.where...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
			assert.True(t, set.Closed())
			if len(tt.where) > 0 {
				assert.Equal(t, "(&(objectClass=user)(mail=*))", req.Filter)
			}
		})
	}
}

func TestCursor_EnumerateOnce(t *testing.T) {
	set := NewRecordSet(people(3)...)
	var req *SearchRequest
	c := newTestContext(recordingBackend(set, &req))
	cur := From[person](c, personMapping).Iter(t.Context())

	n := 0
	for _, err := range cur.All() {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 3, n)
	assert.False(t, cur.Next())

	var errs []error
	for _, err := range cur.All() {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.True(t, IsInvalidOperation(errs[0]))
}

func TestCursor_EnumerateAfterNext(t *testing.T) {
	set := NewRecordSet(people(3)...)
	var req *SearchRequest
	c := newTestContext(recordingBackend(set, &req))
	cur := From[person](c, personMapping).Iter(t.Context())

	require.True(t, cur.Next())
	assert.Equal(t, "user000", cur.Value().Name)

	for _, err := range cur.All() {
		assert.True(t, IsInvalidOperation(err))
	}
	require.NoError(t, cur.Close())
	assert.True(t, set.Closed())
}

func TestCursor_Close(t *testing.T) {
	t.Run("early break", func(t *testing.T) {
		set := NewRecordSet(people(5)...)
		var req *SearchRequest
		c := newTestContext(recordingBackend(set, &req))

		for p, err := range From[person](c, personMapping).Iter(t.Context()).All() {
			require.NoError(t, err)
			assert.Equal(t, "user000", p.Name)
			break
		}
		assert.True(t, set.Closed())
	})

	t.Run("before start", func(t *testing.T) {
		m := &mockBackend{}
		cur := From[person](newTestContext(m), personMapping).Iter(t.Context())
		require.NoError(t, cur.Close())
		require.NoError(t, cur.Close())
		assert.False(t, cur.Next())
		m.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	})

	t.Run("enumerate after close", func(t *testing.T) {
		m := &mockBackend{}
		cur := From[person](newTestContext(m), personMapping).Iter(t.Context())
		require.NoError(t, cur.Close())

		var errs []error
		for _, err := range cur.All() {
			errs = append(errs, err)
		}
		require.Len(t, errs, 1)
		assert.True(t, IsInvalidOperation(errs[0]))
		assert.Contains(t, errs[0].Error(), "closed before enumeration")
		assert.NotContains(t, errs[0].Error(), "more than once")
		m.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
	})

	t.Run("midway", func(t *testing.T) {
		set := NewRecordSet(people(5)...)
		var req *SearchRequest
		cur := From[person](newTestContext(recordingBackend(set, &req)), personMapping).Iter(t.Context())
		require.True(t, cur.Next())
		require.NoError(t, cur.Close())
		assert.True(t, set.Closed())
		assert.False(t, cur.Next())
		assert.NoError(t, cur.Err())
	})

	t.Run("projection failure", func(t *testing.T) {
		bad := personRecord(1)
		bad.Values["age"] = []any{"not a number"}
		set := NewRecordSet(personRecord(0), bad, personRecord(2))
		var req *SearchRequest
		c := newTestContext(recordingBackend(set, &req))

		_, err := From[person](c, personMapping).ToSlice(t.Context())
		require.Error(t, err)
		assert.True(t, IsTypeCoercion(err))
		assert.True(t, set.Closed())
	})
}

func TestCursor_EmptyPlanSkipsSearch(t *testing.T) {
	m := &mockBackend{}
	c := newTestContext(m)
	q := From[person](c, personMapping)
	never := q.Where(func(Expr) Expr { return False() })

	results, err := never.ToSlice(t.Context())
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = q.Take(0).ToSlice(t.Context())
	require.NoError(t, err)
	assert.Empty(t, results)

	n, err := never.Count(t.Context())
	require.NoError(t, err)
	assert.Zero(t, n)

	p, err := never.FirstOrDefault(t.Context())
	require.NoError(t, err)
	assert.Equal(t, person{}, p)

	_, err = never.First(t.Context())
	assert.True(t, IsResultNotFound(err))

	m.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestCursor_BackendError(t *testing.T) {
	m := &mockBackend{}
	m.On("Search", mock.Anything, mock.MatchedBy(func(req *SearchRequest) bool {
		return req.Filter == "(objectClass=user)" && req.Root == testRoot
	})).Return(nil, errBoom).Once()
	c := newTestContext(m)

	_, err := From[person](c, personMapping).ToSlice(t.Context())
	require.Error(t, err)
	assert.Equal(t, ErrorCategoryBackend, ErrorCategoryOf(err))
	assert.ErrorIs(t, err, errBoom)
	m.AssertExpectations(t)
}

func TestCursor_ReadError(t *testing.T) {
	set := &brokenRecordSet{SliceRecordSet: NewRecordSet(people(2)...), err: errBoom}
	c := newTestContext(backendFunc(func(context.Context, *SearchRequest) (RecordSet, error) {
		return set, nil
	}))

	cur := From[person](c, personMapping).Iter(t.Context())
	n := 0
	for cur.Next() {
		n++
	}
	assert.Equal(t, 2, n)
	require.Error(t, cur.Err())
	assert.Equal(t, ErrorCategoryBackend, ErrorCategoryOf(cur.Err()))
	assert.ErrorIs(t, cur.Err(), errBoom)
	assert.True(t, set.Closed())

	_, err := From[person](c, personMapping).Last(t.Context())
	assert.ErrorIs(t, err, errBoom)
}

func TestCursor_NoBackend(t *testing.T) {
	c := newTestContext(nil)

	_, err := From[person](c, personMapping).ToSlice(t.Context())
	require.Error(t, err)
	assert.True(t, IsInvalidOperation(err))
}

func TestCursor_CompileErrorSurfaces(t *testing.T) {
	c := newTestContext(&mockBackend{})
	byName := func(x Expr) Expr { return x.Field("Name") }

	cur := From[person](c, personMapping).OrderBy(byName).ThenBy(byName).Iter(t.Context())
	assert.False(t, cur.Next())
	assert.True(t, IsNotSupported(cur.Err()))

	_, err := From[person](c, personMapping).OrderBy(byName).ThenByDescending(byName).Count(t.Context())
	assert.True(t, IsNotSupported(err))
}

func TestCursor_PassesContext(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(t.Context(), key{}, "marker")

	m := &mockBackend{}
	m.On("Search", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Value(key{}) == "marker"
	}), mock.Anything).Return(NewRecordSet(), nil).Once()

	_, err := From[person](newTestContext(m), personMapping).ToSlice(ctx)
	require.NoError(t, err)
	m.AssertExpectations(t)
}
