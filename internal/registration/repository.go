package registration

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const registrationColumns = `
        id, user_id, registration_type, status,
        person_full_name, person_date_of_event, person_place_of_event, person_gender,
        parent_guardian_name, parent_guardian_id, hospital_facility, doctor_name,
        additional_notes, rejection_reason, reviewed_by, reviewed_at,
        created_at, updated_at`

// Repository provê acesso à tabela registrations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository cria instância do repositório.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create insere novo registro com status pendente.
func (r *Repository) Create(ctx context.Context, userID uuid.UUID, sub ValidatedSubmission) (*Registration, error) {
	const query = `
        INSERT INTO registrations (
            user_id, registration_type, person_full_name, person_date_of_event,
            person_place_of_event, person_gender, parent_guardian_name, parent_guardian_id,
            hospital_facility, doctor_name, additional_notes
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        RETURNING` + registrationColumns

	row := r.pool.QueryRow(ctx, query,
		userID,
		string(sub.Type),
		sub.PersonFullName,
		sub.PersonDateOfEvent,
		sub.PersonPlaceOfEvent,
		sub.PersonGender,
		sub.ParentGuardianName,
		sub.ParentGuardianID,
		sub.HospitalFacility,
		sub.DoctorName,
		sub.AdditionalNotes,
	)

	return scanRegistration(row)
}

// GetByID busca registro pelo identificador.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Registration, error) {
	const query = `SELECT` + registrationColumns + ` FROM registrations WHERE id = $1`

	row := r.pool.QueryRow(ctx, query, id)
	return scanRegistration(row)
}

// ListByUser devolve registros do cidadão, mais recentes primeiro.
// O escopo por dono é aplicado no SQL; nenhuma linha de terceiro escapa.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Registration, error) {
	const query = `
        SELECT` + registrationColumns + `
        FROM registrations
        WHERE user_id = $1
        ORDER BY created_at DESC`

	return r.list(ctx, query, userID)
}

// ListAll devolve todos os registros para o console administrativo.
func (r *Repository) ListAll(ctx context.Context) ([]Registration, error) {
	const query = `
        SELECT` + registrationColumns + `
        FROM registrations
        ORDER BY created_at DESC`

	return r.list(ctx, query)
}

// TransitionInput descreve uma mudança de status condicionada ao estado atual.
type TransitionInput struct {
	ID              uuid.UUID
	From            []Status
	To              Status
	ReviewedBy      *uuid.UUID
	ReviewedAt      *time.Time
	RejectionReason *string
}

// Transition aplica escrita condicional: a troca só acontece se o status
// corrente estiver em From. Perder a corrida para outro revisor resulta em
// ErrAlreadyReviewed, nunca em sobrescrita da decisão anterior.
func (r *Repository) Transition(ctx context.Context, input TransitionInput) (*Registration, error) {
	const query = `
        UPDATE registrations
        SET status = $2,
            reviewed_by = COALESCE($3, reviewed_by),
            reviewed_at = COALESCE($4, reviewed_at),
            rejection_reason = COALESCE($5, rejection_reason),
            updated_at = now()
        WHERE id = $1 AND status = ANY($6)
        RETURNING` + registrationColumns

	from := make([]string, len(input.From))
	for i, s := range input.From {
		from[i] = string(s)
	}

	row := r.pool.QueryRow(ctx, query,
		input.ID,
		string(input.To),
		input.ReviewedBy,
		input.ReviewedAt,
		input.RejectionReason,
		from,
	)

	reg, err := scanRegistration(row)
	if err == nil {
		return reg, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// Nenhuma linha casou com a guarda: distingue inexistente de já analisado.
	current, getErr := r.GetByID(ctx, input.ID)
	if getErr != nil {
		return nil, getErr
	}
	if current.Status.Terminal() {
		return nil, ErrAlreadyReviewed
	}
	return nil, ErrStatusChanged
}

// CountByStatus consolida contagens para o painel.
func (r *Repository) CountByStatus(ctx context.Context) (Stats, error) {
	const query = `
        SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE status = 'pending'),
            COUNT(*) FILTER (WHERE status = 'under_review'),
            COUNT(*) FILTER (WHERE status = 'approved'),
            COUNT(*) FILTER (WHERE status = 'rejected')
        FROM registrations`

	var s Stats
	err := r.pool.QueryRow(ctx, query).Scan(&s.Total, &s.Pending, &s.UnderReview, &s.Approved, &s.Rejected)
	return s, err
}

func (r *Repository) list(ctx context.Context, query string, args ...any) ([]Registration, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, *reg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return regs, nil
}

func scanRegistration(row pgx.Row) (*Registration, error) {
	var reg Registration
	err := row.Scan(
		&reg.ID,
		&reg.UserID,
		&reg.Type,
		&reg.Status,
		&reg.PersonFullName,
		&reg.PersonDateOfEvent,
		&reg.PersonPlaceOfEvent,
		&reg.PersonGender,
		&reg.ParentGuardianName,
		&reg.ParentGuardianID,
		&reg.HospitalFacility,
		&reg.DoctorName,
		&reg.AdditionalNotes,
		&reg.RejectionReason,
		&reg.ReviewedBy,
		&reg.ReviewedAt,
		&reg.CreatedAt,
		&reg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &reg, nil
}
