package query

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/mock"
)

const testRoot = "DC=example,DC=com"

var personMapping = NewMapping("Person", "user",
	Field("DN", DNAttribute, Scalar(KindDN)),
	Field("Name", "cn", Scalar(KindString)),
	Field("Mail", "mail", Scalar(KindString)),
	Field("Age", "age", Scalar(KindInt)),
	Field("Flags", "userAccountControl", Scalar(KindInt)),
	Field("Groups", "memberOf", List(KindDN)),
	Field("Manager", "manager", Optional(KindDN)),
)

var personAttributes = []string{"distinguishedName", "cn", "mail", "age", "userAccountControl", "memberOf", "manager"}

type person struct {
	DN      string
	Name    string
	Mail    string
	Age     int
	Flags   int
	Groups  []string
	Manager *string
}

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Search(ctx context.Context, req *SearchRequest) (RecordSet, error) {
	args := m.Called(ctx, req)
	rs, _ := args.Get(0).(RecordSet)
	return rs, args.Error(1)
}

// backendFunc serves every search from fn.
type backendFunc func(ctx context.Context, req *SearchRequest) (RecordSet, error)

func (f backendFunc) Search(ctx context.Context, req *SearchRequest) (RecordSet, error) {
	return f(ctx, req)
}

// recordingBackend returns set and keeps the last request.
func recordingBackend(set RecordSet, last **SearchRequest) Backend {
	return backendFunc(func(_ context.Context, req *SearchRequest) (RecordSet, error) {
		*last = req
		return set, nil
	})
}

func personRecord(i int) *MapRecord {
	name := fmt.Sprintf("user%03d", i)
	return &MapRecord{
		Name: fmt.Sprintf("CN=%s,OU=People,%s", name, testRoot),
		Values: map[string][]any{
			"cn":                 {name},
			"mail":               {name + "@example.com"},
			"age":                {fmt.Sprint(20 + i%50)},
			"userAccountControl": {"512"},
			"memberOf":           {"CN=Staff," + testRoot},
		},
	}
}

func people(n int) []Record {
	out := make([]Record, n)
	for i := range out {
		out[i] = personRecord(i)
	}
	return out
}

func newTestContext(b Backend, opts ...Option) *Context {
	return NewContext(b, testRoot, opts...)
}
