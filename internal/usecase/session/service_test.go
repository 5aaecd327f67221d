package session

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/refine/internal/domain"
	"github.com/kailas-cloud/refine/internal/domain/searchstate"
	domsession "github.com/kailas-cloud/refine/internal/domain/session"
	"github.com/kailas-cloud/refine/internal/logger"
	"github.com/kailas-cloud/refine/internal/metrics"
)

// --- Mocks ---

type mockRepo struct {
	sessions  map[string]domsession.Session
	saves     int
	createErr error
	getErr    error
	saveErr   error
	deleteErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{sessions: map[string]domsession.Session{}}
}

func (m *mockRepo) Create(_ context.Context, sess domsession.Session) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.sessions[sess.ID()]; ok {
		return domain.ErrSessionExists
	}
	m.sessions[sess.ID()] = sess
	return nil
}

func (m *mockRepo) Get(_ context.Context, id string) (domsession.Session, error) {
	if m.getErr != nil {
		return domsession.Session{}, m.getErr
	}
	sess, ok := m.sessions[id]
	if !ok {
		return domsession.Session{}, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (m *mockRepo) Save(_ context.Context, sess domsession.Session) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	cur, ok := m.sessions[sess.ID()]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if cur.Revision() != sess.Revision()-1 {
		return domain.NewRevisionConflict(cur.Revision())
	}
	m.saves++
	m.sessions[sess.ID()] = sess
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.sessions[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func shopProfiles() map[string]searchstate.Patch {
	return map[string]searchstate.Patch{
		"shop": {
			searchstate.ParamFacets:            []string{"color"},
			searchstate.ParamDisjunctiveFacets: []string{"brand"},
			searchstate.ParamHierarchicalFacets: []searchstate.HierarchicalFacet{
				{Name: "category"},
			},
			searchstate.ParamHitsPerPage: 20,
		},
	}
}

func newService(t *testing.T, repo Repository) *Service {
	t.Helper()
	svc, err := New(repo, shopProfiles())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	svc.newID = func() string { return "generated" }
	return svc
}

func createShop(t *testing.T, svc *Service) domsession.Session {
	t.Helper()
	sess, err := svc.Create(context.Background(), "s1", "shop", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return sess
}

func strPtr(s string) *string { return &s }

// --- Tests ---

func TestNew_InvalidProfile(t *testing.T) {
	_, err := New(newMockRepo(), map[string]searchstate.Patch{"bad": {"hitsPerPaeg": 1}})
	if !errors.Is(err, searchstate.ErrSchema) {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestCreate_FromProfile(t *testing.T) {
	repo := newMockRepo()
	svc := newService(t, repo)
	before := testutil.ToFloat64(metrics.SessionsCreatedTotal.WithLabelValues("shop"))

	sess, err := svc.Create(context.Background(), "", "shop", searchstate.Patch{searchstate.ParamQuery: "boots"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.ID() != "generated" || sess.Revision() != 1 || sess.Profile() != "shop" {
		t.Errorf("unexpected session: id=%q rev=%d profile=%q", sess.ID(), sess.Revision(), sess.Profile())
	}
	if sess.State().Query() != "boots" {
		t.Errorf("query = %q", sess.State().Query())
	}
	if n, _ := sess.State().HitsPerPage(); n != 20 {
		t.Errorf("hitsPerPage = %d, want profile default 20", n)
	}
	if _, ok := repo.sessions["generated"]; !ok {
		t.Error("session not stored")
	}
	if got := testutil.ToFloat64(metrics.SessionsCreatedTotal.WithLabelValues("shop")); got != before+1 {
		t.Errorf("sessions_created_total = %v, want %v", got, before+1)
	}
}

func TestCreate_DefaultProfile(t *testing.T) {
	svc := newService(t, newMockRepo())

	sess, err := svc.Create(context.Background(), "x", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Profile() != DefaultProfile {
		t.Errorf("profile = %q", sess.Profile())
	}
	if len(sess.State().Facets()) != 0 {
		t.Errorf("default profile should declare no facets, got %v", sess.State().Facets())
	}
}

func TestCreate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		profile string
		patch   searchstate.Patch
		wantErr error
	}{
		{"unknown profile", "a", "nope", nil, domain.ErrProfileNotFound},
		{"unknown parameter", "a", "shop", searchstate.Patch{"bogus": 1}, searchstate.ErrSchema},
		{"tag mode conflict", "a", "shop", searchstate.Patch{
			searchstate.ParamTagRefinements: []string{"x"},
			searchstate.ParamTagFilters:     "y",
		}, searchstate.ErrTagModeConflict},
		{"invalid id", "a b", "shop", nil, domain.ErrInvalidCommand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newService(t, newMockRepo())
			if _, err := svc.Create(context.Background(), tt.id, tt.profile, tt.patch); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreate_Collision(t *testing.T) {
	svc := newService(t, newMockRepo())
	createShop(t, svc)
	if _, err := svc.Create(context.Background(), "s1", "shop", nil); !errors.Is(err, domain.ErrSessionExists) {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}
}

func TestApply_Persists(t *testing.T) {
	repo := newMockRepo()
	svc := newService(t, repo)
	createShop(t, svc)
	before := testutil.ToFloat64(metrics.StateOperationsTotal.WithLabelValues(OpToggleFacetRefinement, resultOK))

	sess, err := svc.Apply(context.Background(), "s1", 1, Command{
		Op: OpToggleFacetRefinement, Attribute: "color", Value: strPtr("red"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.Revision() != 2 {
		t.Errorf("revision = %d, want 2", sess.Revision())
	}
	if refined, _ := repo.sessions["s1"].State().IsFacetRefined("color", "red"); !refined {
		t.Error("refinement not persisted")
	}
	if got := testutil.ToFloat64(metrics.StateOperationsTotal.WithLabelValues(OpToggleFacetRefinement, resultOK)); got != before+1 {
		t.Errorf("ok counter = %v, want %v", got, before+1)
	}
}

func TestApply_NoRevisionCheck(t *testing.T) {
	svc := newService(t, newMockRepo())
	createShop(t, svc)

	for i, q := range []string{"a", "b"} {
		sess, err := svc.Apply(context.Background(), "s1", 0, Command{Op: OpSetQuery, Value: strPtr(q)})
		if err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
		if sess.Revision() != i+2 {
			t.Errorf("revision = %d, want %d", sess.Revision(), i+2)
		}
	}
}

func TestApply_NoopNotSaved(t *testing.T) {
	tests := []Command{
		{Op: OpSetQuery, Value: strPtr("")},
		{Op: OpSetPage, Page: new(int)},
		{Op: OpRemoveFacetRefinement, Attribute: "color", Value: strPtr("red")},
		{Op: OpClearRefinements},
		{Op: OpClearTags},
	}
	for _, cmd := range tests {
		t.Run(cmd.Op, func(t *testing.T) {
			repo := newMockRepo()
			svc := newService(t, repo)
			createShop(t, svc)
			before := testutil.ToFloat64(metrics.StateOperationsTotal.WithLabelValues(cmd.Op, resultNoop))

			sess, err := svc.Apply(context.Background(), "s1", 1, cmd)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sess.Revision() != 1 || repo.saves != 0 {
				t.Errorf("revision=%d saves=%d, want 1 and 0", sess.Revision(), repo.saves)
			}
			if got := testutil.ToFloat64(metrics.StateOperationsTotal.WithLabelValues(cmd.Op, resultNoop)); got != before+1 {
				t.Errorf("noop counter = %v, want %v", got, before+1)
			}
		})
	}
}

func TestApply_RevisionConflict(t *testing.T) {
	svc := newService(t, newMockRepo())
	createShop(t, svc)
	if _, err := svc.Apply(context.Background(), "s1", 1, Command{Op: OpSetQuery, Value: strPtr("a")}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	_, err := svc.Apply(context.Background(), "s1", 1, Command{Op: OpSetQuery, Value: strPtr("b")})
	var rce *domain.RevisionConflictError
	if !errors.As(err, &rce) {
		t.Fatalf("expected RevisionConflictError, got %v", err)
	}
	if rce.CurrentRevision != 2 {
		t.Errorf("current revision = %d, want 2", rce.CurrentRevision)
	}
}

func TestApply_StoreConflictPropagates(t *testing.T) {
	repo := newMockRepo()
	svc := newService(t, repo)
	createShop(t, svc)
	repo.saveErr = domain.NewRevisionConflict(7)

	_, err := svc.Apply(context.Background(), "s1", 0, Command{Op: OpSetQuery, Value: strPtr("a")})
	if !errors.Is(err, domain.ErrRevisionConflict) {
		t.Fatalf("expected ErrRevisionConflict, got %v", err)
	}
}

func TestApply_Errors(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		cmd     Command
		wantErr error
	}{
		{"missing session", "nope", Command{Op: OpClearTags}, domain.ErrSessionNotFound},
		{"unknown op", "s1", Command{Op: "explode"}, domain.ErrUnknownCommand},
		{"missing value", "s1", Command{Op: OpAddFacetRefinement, Attribute: "color"}, domain.ErrInvalidCommand},
		{"unknown facet", "s1", Command{Op: OpAddFacetRefinement, Attribute: "size", Value: strPtr("m")}, searchstate.ErrUnknownFacet},
		{"invalid operator", "s1", Command{
			Op: OpAddNumericRefinement, Attribute: "price", Operator: "~", Number: new(float64),
		}, searchstate.ErrInvalidOperator},
		{"bad kind", "s1", Command{Op: OpClearRefinements, Kinds: []string{"fuzzy"}}, domain.ErrInvalidCommand},
		{"bad parameters", "s1", Command{Op: OpSetQueryParameters, Parameters: []byte(`{"nope":1}`)}, searchstate.ErrSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo()
			svc := newService(t, repo)
			createShop(t, svc)

			if _, err := svc.Apply(context.Background(), tt.id, 0, tt.cmd); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if repo.saves != 0 {
				t.Errorf("failed command should not save, got %d saves", repo.saves)
			}
		})
	}
}

func TestApply_UnknownOpLabel(t *testing.T) {
	svc := newService(t, newMockRepo())
	createShop(t, svc)
	before := testutil.ToFloat64(metrics.StateOperationsTotal.WithLabelValues("unknown", resultError))

	_, _ = svc.Apply(context.Background(), "s1", 0, Command{Op: "whatever"})

	if got := testutil.ToFloat64(metrics.StateOperationsTotal.WithLabelValues("unknown", resultError)); got != before+1 {
		t.Errorf("error counter = %v, want %v", got, before+1)
	}
}

func TestSetParameters(t *testing.T) {
	svc := newService(t, newMockRepo())
	createShop(t, svc)

	sess, err := svc.SetParameters(context.Background(), "s1", 1, searchstate.Patch{
		searchstate.ParamQuery:       "boots",
		searchstate.ParamHitsPerPage: 50,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, _ := sess.State().HitsPerPage(); n != 50 || sess.State().Query() != "boots" {
		t.Errorf("query=%q hitsPerPage=%d", sess.State().Query(), n)
	}
}

func TestQueryParams(t *testing.T) {
	svc := newService(t, newMockRepo())
	createShop(t, svc)
	if _, err := svc.Apply(context.Background(), "s1", 0, Command{Op: OpSetQuery, Value: strPtr("red shoes")}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	qp, err := svc.QueryParams(context.Background(), "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if qp.Params[searchstate.ParamQuery] != "red shoes" {
		t.Errorf("params = %v", qp.Params)
	}
	if qp.Encoded != searchstate.EncodeParams(qp.Params) {
		t.Errorf("encoded = %q", qp.Encoded)
	}
}

func TestDelete(t *testing.T) {
	svc := newService(t, newMockRepo())
	createShop(t, svc)

	if err := svc.Delete(context.Background(), "s1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Get(context.Background(), "s1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestOps(t *testing.T) {
	ops := Ops()
	if len(ops) != 22 {
		t.Errorf("expected 22 operations, got %d: %v", len(ops), ops)
	}
	if diff := cmp.Diff(OpAddDisjunctiveFacetRefinement, ops[0]); diff != "" {
		t.Errorf("ops should be sorted (-want +got):\n%s", diff)
	}
}

func TestApply_EmptyValues(t *testing.T) {
	tests := []Command{
		{Op: OpAddFacetRefinement, Attribute: "color", Value: strPtr("")},
		{Op: OpAddTagRefinement, Value: strPtr("")},
	}
	for _, cmd := range tests {
		t.Run(cmd.Op, func(t *testing.T) {
			svc := newService(t, newMockRepo())
			createShop(t, svc)

			sess, err := svc.Apply(context.Background(), "s1", 0, cmd)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if sess.Revision() != 2 {
				t.Errorf("revision = %d, want 2", sess.Revision())
			}
		})
	}
}

func TestApply_NonFiniteNumberRejected(t *testing.T) {
	repo := newMockRepo()
	svc := newService(t, repo)
	createShop(t, svc)
	inf := math.Inf(1)

	_, err := svc.Apply(context.Background(), "s1", 0, Command{
		Op: OpAddNumericRefinement, Attribute: "price", Operator: ">=", Number: &inf,
	})
	if !errors.Is(err, searchstate.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if repo.saves != 0 {
		t.Errorf("saves = %d, want 0", repo.saves)
	}
}

func TestService_FailureLogLevels(t *testing.T) {
	storeDown := errors.New("connection refused")

	tests := []struct {
		name      string
		setup     func(repo *mockRepo)
		call      func(ctx context.Context, svc *Service) error
		wantMsg   string
		wantLevel zapcore.Level
	}{
		{
			name:  "apply rejected",
			setup: func(*mockRepo) {},
			call: func(ctx context.Context, svc *Service) error {
				_, err := svc.Apply(ctx, "s1", 0, Command{Op: OpAddFacetRefinement, Attribute: "size", Value: strPtr("m")})
				return err
			},
			wantMsg:   "State operation failed",
			wantLevel: zapcore.DebugLevel,
		},
		{
			name:  "apply store failure",
			setup: func(repo *mockRepo) { repo.saveErr = storeDown },
			call: func(ctx context.Context, svc *Service) error {
				_, err := svc.Apply(ctx, "s1", 0, Command{Op: OpSetQuery, Value: strPtr("boots")})
				return err
			},
			wantMsg:   "State operation failed",
			wantLevel: zapcore.ErrorLevel,
		},
		{
			name:  "get not found",
			setup: func(*mockRepo) {},
			call: func(ctx context.Context, svc *Service) error {
				_, err := svc.Get(ctx, "nope")
				return err
			},
			wantMsg:   "Session get failed",
			wantLevel: zapcore.DebugLevel,
		},
		{
			name:  "get store failure",
			setup: func(repo *mockRepo) { repo.getErr = storeDown },
			call: func(ctx context.Context, svc *Service) error {
				_, err := svc.Get(ctx, "s1")
				return err
			},
			wantMsg:   "Session get failed",
			wantLevel: zapcore.ErrorLevel,
		},
		{
			name:  "create store failure",
			setup: func(repo *mockRepo) { repo.createErr = storeDown },
			call: func(ctx context.Context, svc *Service) error {
				_, err := svc.Create(ctx, "s2", "shop", nil)
				return err
			},
			wantMsg:   "Session create failed",
			wantLevel: zapcore.ErrorLevel,
		},
		{
			name:  "delete store failure",
			setup: func(repo *mockRepo) { repo.deleteErr = storeDown },
			call: func(ctx context.Context, svc *Service) error {
				return svc.Delete(ctx, "s1")
			},
			wantMsg:   "Session delete failed",
			wantLevel: zapcore.ErrorLevel,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo()
			svc := newService(t, repo)
			createShop(t, svc)
			tt.setup(repo)

			core, logs := observer.New(zapcore.DebugLevel)
			ctx := logger.ContextWithLogger(context.Background(), zap.New(core))

			if err := tt.call(ctx, svc); err == nil {
				t.Fatal("expected error")
			}
			entries := logs.FilterMessage(tt.wantMsg).All()
			if len(entries) != 1 {
				t.Fatalf("expected 1 %q entry, got %d", tt.wantMsg, len(entries))
			}
			if entries[0].Level != tt.wantLevel {
				t.Errorf("level = %v, want %v", entries[0].Level, tt.wantLevel)
			}
		})
	}
}
