package session

import (
	"context"
	"testing"

	"github.com/kailas-cloud/refine/internal/db"
	"github.com/kailas-cloud/refine/internal/domain/searchstate"
	domsession "github.com/kailas-cloud/refine/internal/domain/session"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hgetAllFn func(ctx context.Context, key string) (map[string]string, error)
	existsFn  func(ctx context.Context, key string) (bool, error)
	delFn     func(ctx context.Context, key string) error
	casFn     func(ctx context.Context, req db.CASRequest) (db.CASResult, error)
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return map[string]string{}, nil
}

func (m *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, key)
	}
	return false, nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) CompareAndSetHash(ctx context.Context, req db.CASRequest) (db.CASResult, error) {
	if m.casFn != nil {
		return m.casFn(ctx, req)
	}
	return db.CASResult{Swapped: true, Current: req.Expected}, nil
}

// memStore is a map-backed store honouring the CAS guard, for round-trip tests.
type memStore struct {
	mockStore
	data map[string]map[string]string
}

func newMemStore() *memStore {
	m := &memStore{data: map[string]map[string]string{}}
	m.hgetAllFn = func(_ context.Context, key string) (map[string]string, error) {
		out := map[string]string{}
		for k, v := range m.data[key] {
			out[k] = v
		}
		return out, nil
	}
	m.existsFn = func(_ context.Context, key string) (bool, error) {
		_, ok := m.data[key]
		return ok, nil
	}
	m.delFn = func(_ context.Context, key string) error {
		delete(m.data, key)
		return nil
	}
	m.casFn = func(_ context.Context, req db.CASRequest) (db.CASResult, error) {
		cur := "0"
		if h, ok := m.data[req.Key]; ok {
			if v, ok := h[req.GuardField]; ok {
				cur = v
			}
		}
		if cur != req.Expected {
			return db.CASResult{Current: cur}, nil
		}
		if m.data[req.Key] == nil {
			m.data[req.Key] = map[string]string{}
		}
		for k, v := range req.Fields {
			m.data[req.Key][k] = v
		}
		return db.CASResult{Swapped: true, Current: cur}, nil
	}
	return m
}

func testState(t *testing.T) *searchstate.State {
	t.Helper()
	s, err := searchstate.Make(searchstate.Patch{
		searchstate.ParamQuery:  "shoes",
		searchstate.ParamFacets: []string{"color"},
	})
	if err != nil {
		t.Fatalf("searchstate.Make: %v", err)
	}
	s, err = s.AddFacetRefinement("color", "red")
	if err != nil {
		t.Fatalf("AddFacetRefinement: %v", err)
	}
	return s
}

func testSession(t *testing.T, id string) domsession.Session {
	t.Helper()
	sess, err := domsession.New(id, "shop", testState(t))
	if err != nil {
		t.Fatalf("domsession.New: %v", err)
	}
	return sess
}
