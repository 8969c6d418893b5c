package registration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gestaozabele/registrocivil/internal/metrics"
)

type stubStore struct {
	regs map[uuid.UUID]*Registration
}

func newStubStore() *stubStore {
	return &stubStore{regs: make(map[uuid.UUID]*Registration)}
}

func (s *stubStore) Create(ctx context.Context, userID uuid.UUID, sub ValidatedSubmission) (*Registration, error) {
	now := time.Now().UTC()
	reg := &Registration{
		ID:                 uuid.New(),
		UserID:             userID,
		Type:               sub.Type,
		Status:             StatusPending,
		PersonFullName:     sub.PersonFullName,
		PersonDateOfEvent:  sub.PersonDateOfEvent,
		PersonPlaceOfEvent: sub.PersonPlaceOfEvent,
		PersonGender:       sub.PersonGender,
		ParentGuardianName: sub.ParentGuardianName,
		ParentGuardianID:   sub.ParentGuardianID,
		HospitalFacility:   sub.HospitalFacility,
		DoctorName:         sub.DoctorName,
		AdditionalNotes:    sub.AdditionalNotes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	s.regs[reg.ID] = reg
	copied := *reg
	return &copied, nil
}

func (s *stubStore) GetByID(ctx context.Context, id uuid.UUID) (*Registration, error) {
	reg, ok := s.regs[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *reg
	return &copied, nil
}

func (s *stubStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]Registration, error) {
	var out []Registration
	for _, reg := range s.regs {
		if reg.UserID == userID {
			out = append(out, *reg)
		}
	}
	return out, nil
}

func (s *stubStore) ListAll(ctx context.Context) ([]Registration, error) {
	out := make([]Registration, 0, len(s.regs))
	for _, reg := range s.regs {
		out = append(out, *reg)
	}
	return out, nil
}

func (s *stubStore) Transition(ctx context.Context, input TransitionInput) (*Registration, error) {
	reg, ok := s.regs[input.ID]
	if !ok {
		return nil, ErrNotFound
	}

	allowed := false
	for _, from := range input.From {
		if reg.Status == from {
			allowed = true
			break
		}
	}
	if !allowed {
		if reg.Status.Terminal() {
			return nil, ErrAlreadyReviewed
		}
		return nil, ErrStatusChanged
	}

	reg.Status = input.To
	reg.ReviewedBy = input.ReviewedBy
	reg.ReviewedAt = input.ReviewedAt
	reg.RejectionReason = input.RejectionReason
	reg.UpdatedAt = time.Now().UTC()

	copied := *reg
	return &copied, nil
}

func (s *stubStore) CountByStatus(ctx context.Context) (Stats, error) {
	var stats Stats
	for _, reg := range s.regs {
		stats.Total++
		switch reg.Status {
		case StatusPending:
			stats.Pending++
		case StatusUnderReview:
			stats.UnderReview++
		case StatusApproved:
			stats.Approved++
		case StatusRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}

func validInput() SubmitInput {
	return SubmitInput{
		Type:               "birth",
		PersonFullName:     "Maria da Silva",
		PersonDateOfEvent:  "2020-06-15",
		PersonPlaceOfEvent: "Zabelê",
	}
}

func TestSubmitCreatesPendingRegistration(t *testing.T) {
	store := newStubStore()
	svc := NewService(store, nil, nil)
	userID := uuid.New()

	reg, err := svc.Submit(context.Background(), userID, validInput())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if reg.Status != StatusPending {
		t.Fatalf("expected pending, got %s", reg.Status)
	}
	if reg.UserID != userID {
		t.Fatalf("expected owner %s, got %s", userID, reg.UserID)
	}
	if reg.ReviewedBy != nil || reg.ReviewedAt != nil {
		t.Fatal("submission must not carry review attribution")
	}
}

func TestGetScopesToOwner(t *testing.T) {
	store := newStubStore()
	svc := NewService(store, nil, nil)
	owner := uuid.New()
	other := uuid.New()

	reg, err := svc.Submit(context.Background(), owner, validInput())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := svc.Get(context.Background(), reg.ID, other, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign record, got %v", err)
	}
	if _, err := svc.Get(context.Background(), reg.ID, other, true); err != nil {
		t.Fatalf("admin must see any record: %v", err)
	}
}

func TestApproveSetsReviewerAttribution(t *testing.T) {
	store := newStubStore()
	svc := NewService(store, nil, nil)
	reviewer := uuid.New()

	reg, err := svc.Submit(context.Background(), uuid.New(), validInput())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	approved, err := svc.Approve(context.Background(), reg.ID, reviewer)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}

	if approved.Status != StatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
	if approved.ReviewedBy == nil || *approved.ReviewedBy != reviewer {
		t.Fatalf("expected reviewer %s, got %v", reviewer, approved.ReviewedBy)
	}
	if approved.ReviewedAt == nil {
		t.Fatal("expected reviewed_at to be set")
	}
}

func TestApproveAfterRejectConflicts(t *testing.T) {
	store := newStubStore()
	svc := NewService(store, nil, nil)

	reg, err := svc.Submit(context.Background(), uuid.New(), validInput())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := svc.Reject(context.Background(), reg.ID, uuid.New(), "documentação ilegível"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	if _, err := svc.Approve(context.Background(), reg.ID, uuid.New()); !errors.Is(err, ErrAlreadyReviewed) {
		t.Fatalf("expected ErrAlreadyReviewed, got %v", err)
	}

	// A decisão original permanece intacta.
	stored, err := svc.Get(context.Background(), reg.ID, uuid.New(), true)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != StatusRejected {
		t.Fatalf("expected rejected to stand, got %s", stored.Status)
	}
}

func TestStartReviewRaceLosesWithConflict(t *testing.T) {
	store := newStubStore()
	svc := NewService(store, nil, nil)

	reg, err := svc.Submit(context.Background(), uuid.New(), validInput())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := svc.StartReview(context.Background(), reg.ID); err != nil {
		t.Fatalf("first review: %v", err)
	}
	if _, err := svc.StartReview(context.Background(), reg.ID); !errors.Is(err, ErrStatusChanged) {
		t.Fatalf("expected ErrStatusChanged on second review, got %v", err)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	store := newStubStore()
	svc := NewService(store, nil, nil)

	reg, err := svc.Submit(context.Background(), uuid.New(), validInput())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err = svc.Reject(context.Background(), reg.ID, uuid.New(), "   ")
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "rejection_reason" {
		t.Fatalf("expected rejection_reason, got %q", verr.Field)
	}

	// Nada foi persistido.
	stored, _ := svc.Get(context.Background(), reg.ID, uuid.New(), true)
	if stored.Status != StatusPending {
		t.Fatalf("expected pending to stand, got %s", stored.Status)
	}
}

func TestListAllFiltersCaseInsensitive(t *testing.T) {
	store := newStubStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	first := validInput()
	first.PersonFullName = "Maria da Silva"
	second := validInput()
	second.PersonFullName = "João Souza"
	second.PersonPlaceOfEvent = "Monteiro"

	if _, err := svc.Submit(ctx, uuid.New(), first); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.Submit(ctx, uuid.New(), second); err != nil {
		t.Fatalf("submit: %v", err)
	}

	regs, err := svc.ListAll(ctx, "MARIA")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(regs) != 1 || regs[0].PersonFullName != "Maria da Silva" {
		t.Fatalf("expected only Maria, got %v", regs)
	}

	regs, err = svc.ListAll(ctx, "monteiro")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(regs) != 1 || regs[0].PersonFullName != "João Souza" {
		t.Fatalf("expected match by place, got %v", regs)
	}

	regs, err = svc.ListAll(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(regs) != 2 {
		t.Fatalf("expected 2 without filter, got %d", len(regs))
	}
}

func TestListReturnsNewestFirst(t *testing.T) {
	store := newStubStore()
	svc := NewService(store, nil, nil)
	owner := uuid.New()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Inserção direta fora de ordem cronológica; o mapa do stub não preserva
	// ordem alguma.
	for _, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		reg := &Registration{
			ID:                 uuid.New(),
			UserID:             owner,
			Type:               TypeBirth,
			Status:             StatusPending,
			PersonFullName:     "Maria da Silva",
			PersonPlaceOfEvent: "Zabelê",
			CreatedAt:          base.Add(offset),
			UpdatedAt:          base.Add(offset),
		}
		store.regs[reg.ID] = reg
	}

	assertNewestFirst := func(regs []Registration) {
		t.Helper()
		if len(regs) != 3 {
			t.Fatalf("expected 3 records, got %d", len(regs))
		}
		for i := 1; i < len(regs); i++ {
			if regs[i].CreatedAt.After(regs[i-1].CreatedAt) {
				t.Fatalf("expected created_at DESC, got %v before %v", regs[i-1].CreatedAt, regs[i].CreatedAt)
			}
		}
	}

	mine, err := svc.ListMine(context.Background(), owner)
	if err != nil {
		t.Fatalf("list mine: %v", err)
	}
	assertNewestFirst(mine)

	all, err := svc.ListAll(context.Background(), "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	assertNewestFirst(all)
}

func TestStartReviewIsNotCountedAsDecision(t *testing.T) {
	store := newStubStore()
	m := metrics.NewWith(prometheus.NewRegistry())
	svc := NewService(store, nil, m)
	ctx := context.Background()

	reg, err := svc.Submit(ctx, uuid.New(), validInput())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := svc.StartReview(ctx, reg.ID); err != nil {
		t.Fatalf("review: %v", err)
	}
	if got := testutil.ToFloat64(m.ReviewDecisions.WithLabelValues(string(StatusUnderReview))); got != 0 {
		t.Fatalf("under_review must not count as decision, got %v", got)
	}

	if _, err := svc.Approve(ctx, reg.ID, uuid.New()); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if got := testutil.ToFloat64(m.ReviewDecisions.WithLabelValues(string(StatusApproved))); got != 1 {
		t.Fatalf("expected 1 approved decision, got %v", got)
	}
}

func TestCertificateOnlyForApproved(t *testing.T) {
	store := newStubStore()
	svc := NewService(store, nil, nil)
	owner := uuid.New()
	ctx := context.Background()

	reg, err := svc.Submit(ctx, owner, validInput())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := svc.Certificate(ctx, reg.ID, owner, false); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}

	if _, err := svc.Approve(ctx, reg.ID, uuid.New()); err != nil {
		t.Fatalf("approve: %v", err)
	}

	cert, err := svc.Certificate(ctx, reg.ID, owner, false)
	if err != nil {
		t.Fatalf("certificate: %v", err)
	}
	if cert.Number == "" {
		t.Fatal("expected certificate number")
	}

	// Reemissão devolve o mesmo número.
	again, err := svc.Certificate(ctx, reg.ID, owner, false)
	if err != nil {
		t.Fatalf("certificate again: %v", err)
	}
	if again.Number != cert.Number {
		t.Fatalf("expected stable number, got %s != %s", again.Number, cert.Number)
	}
}

func TestStatsCountsByStatus(t *testing.T) {
	store := newStubStore()
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	first, _ := svc.Submit(ctx, uuid.New(), validInput())
	second, _ := svc.Submit(ctx, uuid.New(), validInput())
	if _, err := svc.Approve(ctx, first.ID, uuid.New()); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.StartReview(ctx, second.ID); err != nil {
		t.Fatalf("review: %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.Approved != 1 || stats.UnderReview != 1 || stats.Pending != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
