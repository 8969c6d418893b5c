package registration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/registrocivil/internal/metrics"
	"github.com/gestaozabele/registrocivil/internal/realtime"
)

// Store define o acesso a dados usado pelo serviço.
type Store interface {
	Create(ctx context.Context, userID uuid.UUID, sub ValidatedSubmission) (*Registration, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Registration, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Registration, error)
	ListAll(ctx context.Context) ([]Registration, error)
	Transition(ctx context.Context, input TransitionInput) (*Registration, error)
	CountByStatus(ctx context.Context) (Stats, error)
}

// Service reúne as regras do ciclo de vida dos registros civis.
type Service struct {
	store   Store
	events  *realtime.Broker
	metrics *metrics.Metrics
}

// NewService cria o serviço. Broker e métricas são opcionais (nil em testes).
func NewService(store Store, events *realtime.Broker, m *metrics.Metrics) *Service {
	return &Service{store: store, events: events, metrics: m}
}

// Submit valida e persiste um novo pedido com status pendente.
func (s *Service) Submit(ctx context.Context, userID uuid.UUID, input SubmitInput) (*Registration, error) {
	sub, err := input.Validate(time.Now().UTC())
	if err != nil {
		return nil, err
	}

	reg, err := s.store.Create(ctx, userID, *sub)
	if err != nil {
		return nil, err
	}

	s.metrics.IncSubmitted()
	s.publish(ctx, realtime.ActionInsert, reg)

	log.Info().Str("registration_id", reg.ID.String()).Str("type", string(reg.Type)).Msg("registro submetido")
	return reg, nil
}

// ListMine devolve os registros do próprio cidadão, mais recentes primeiro.
func (s *Service) ListMine(ctx context.Context, userID uuid.UUID) ([]Registration, error) {
	regs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(regs)
	return regs, nil
}

// ListAll devolve a fila completa do console, com filtro de busca por
// substring (caso-insensitivo) sobre nome e local do evento.
func (s *Service) ListAll(ctx context.Context, search string) ([]Registration, error) {
	regs, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(regs)

	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return regs, nil
	}

	filtered := make([]Registration, 0, len(regs))
	for _, reg := range regs {
		if strings.Contains(strings.ToLower(reg.PersonFullName), search) ||
			strings.Contains(strings.ToLower(reg.PersonPlaceOfEvent), search) {
			filtered = append(filtered, reg)
		}
	}
	return filtered, nil
}

// Get devolve um registro respeitando o escopo do chamador: cidadão só
// enxerga os próprios; administrador enxerga todos.
func (s *Service) Get(ctx context.Context, id, caller uuid.UUID, isAdmin bool) (*Registration, error) {
	reg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && reg.UserID != caller {
		return nil, ErrNotFound
	}
	return reg, nil
}

// StartReview move registro pendente para análise. Não grava atribuição de
// revisor: reviewed_by/reviewed_at pertencem só à decisão terminal.
func (s *Service) StartReview(ctx context.Context, id uuid.UUID) (*Registration, error) {
	reg, err := s.store.Transition(ctx, TransitionInput{
		ID:   id,
		From: []Status{StatusPending},
		To:   StatusUnderReview,
	})
	if err != nil {
		return nil, err
	}

	// Entrar em análise não é decisão; só aprovação/indeferimento contam
	// no contador de decisões.
	s.publish(ctx, realtime.ActionUpdate, reg)
	return reg, nil
}

// Approve defere o registro com atribuição do revisor. Escrita condicional:
// registro já terminal devolve ErrAlreadyReviewed e permanece intacto.
func (s *Service) Approve(ctx context.Context, id, reviewer uuid.UUID) (*Registration, error) {
	now := time.Now().UTC()
	reg, err := s.store.Transition(ctx, TransitionInput{
		ID:         id,
		From:       []Status{StatusPending, StatusUnderReview},
		To:         StatusApproved,
		ReviewedBy: &reviewer,
		ReviewedAt: &now,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncDecision(string(StatusApproved))
	s.publish(ctx, realtime.ActionUpdate, reg)

	log.Info().Str("registration_id", id.String()).Str("reviewer", reviewer.String()).Msg("registro aprovado")
	return reg, nil
}

// Reject indefere o registro; o motivo é obrigatório e fica visível ao
// cidadão exatamente como digitado.
func (s *Service) Reject(ctx context.Context, id, reviewer uuid.UUID, reason string) (*Registration, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &ValidationError{Field: "rejection_reason", Message: "motivo do indeferimento obrigatório"}
	}

	now := time.Now().UTC()
	reg, err := s.store.Transition(ctx, TransitionInput{
		ID:              id,
		From:            []Status{StatusPending, StatusUnderReview},
		To:              StatusRejected,
		ReviewedBy:      &reviewer,
		ReviewedAt:      &now,
		RejectionReason: &reason,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncDecision(string(StatusRejected))
	s.publish(ctx, realtime.ActionUpdate, reg)

	log.Info().Str("registration_id", id.String()).Str("reviewer", reviewer.String()).Msg("registro indeferido")
	return reg, nil
}

// Certificate emite a certidão de um registro aprovado do chamador.
func (s *Service) Certificate(ctx context.Context, id, caller uuid.UUID, isAdmin bool) (*Certificate, error) {
	reg, err := s.Get(ctx, id, caller, isAdmin)
	if err != nil {
		return nil, err
	}
	if reg.Status != StatusApproved {
		return nil, ErrNotApproved
	}

	return &Certificate{
		Number:       certificateNumber(reg),
		Registration: *reg,
		IssuedAt:     time.Now().UTC(),
	}, nil
}

// Stats consolida contagens por status para o painel administrativo.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.store.CountByStatus(ctx)
}

func (s *Service) publish(ctx context.Context, action string, reg *Registration) {
	if s.events == nil {
		return
	}
	err := s.events.Publish(ctx, realtime.Event{
		Table:    "registrations",
		Action:   action,
		RecordID: reg.ID,
		OwnerID:  reg.UserID,
	})
	if err != nil {
		// Notificação é melhor-esforço: o dado já está persistido.
		log.Warn().Err(err).Str("registration_id", reg.ID.String()).Msg("falha ao publicar mudança")
	}
}

// sortNewestFirst ordena por created_at decrescente, com o ID como critério
// de desempate estável. O repositório já ordena no SQL; repetir aqui mantém a
// garantia para qualquer Store.
func sortNewestFirst(regs []Registration) {
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].CreatedAt.Equal(regs[j].CreatedAt) {
			return regs[i].ID.String() > regs[j].ID.String()
		}
		return regs[i].CreatedAt.After(regs[j].CreatedAt)
	})
}

// certificateNumber deriva número estável da certidão a partir da identidade
// do registro e da decisão, permitindo reemissão idêntica.
func certificateNumber(reg *Registration) string {
	seed := reg.ID.String()
	if reg.ReviewedAt != nil {
		seed += reg.ReviewedAt.UTC().Format(time.RFC3339)
	}
	sum := sha256.Sum256([]byte(seed))
	year := reg.CreatedAt.Year()
	return fmt.Sprintf("RC-%d-%s", year, strings.ToUpper(hex.EncodeToString(sum[:5])))
}
