package registration

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound é retornado quando o registro não existe (ou não pertence ao chamador).
	ErrNotFound = errors.New("registro não encontrado")
	// ErrAlreadyReviewed indica transição sobre registro já aprovado/indeferido.
	ErrAlreadyReviewed = errors.New("registro já analisado")
	// ErrStatusChanged indica corrida perdida: o status mudou sob o revisor.
	ErrStatusChanged = errors.New("status do registro mudou, recarregue a fila")
	// ErrNotApproved indica pedido de certidão de registro não aprovado.
	ErrNotApproved = errors.New("registro ainda não aprovado")
)

// Type enumera as naturezas de registro aceitas.
type Type string

const (
	TypeBirth Type = "birth"
	TypeDeath Type = "death"
)

// Valid indica se a natureza é reconhecida.
func (t Type) Valid() bool {
	return t == TypeBirth || t == TypeDeath
}

// Status enumera o ciclo de vida do registro.
type Status string

const (
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
)

// Valid indica se o status é reconhecido.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusUnderReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal indica status que não admite nova transição.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Presentation é o vocabulário visual compartilhado entre portal e console.
type Presentation struct {
	Label string `json:"label"`
	Tone  string `json:"tone"`
}

// Present mapeia status para rótulo e tratamento visual. O switch é
// exaustivo: status novo sem mapeamento vira erro, nunca passa em silêncio.
func (s Status) Present() (Presentation, error) {
	switch s {
	case StatusPending:
		return Presentation{Label: "Submitted", Tone: "pending"}, nil
	case StatusUnderReview:
		return Presentation{Label: "Under Review", Tone: "under-review"}, nil
	case StatusApproved:
		return Presentation{Label: "Approved", Tone: "approved"}, nil
	case StatusRejected:
		return Presentation{Label: "Rejected", Tone: "rejected"}, nil
	default:
		return Presentation{}, fmt.Errorf("status desconhecido: %q", string(s))
	}
}

// Registration representa um pedido de certidão de nascimento ou óbito.
type Registration struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             uuid.UUID  `json:"user_id"`
	Type               Type       `json:"registration_type"`
	Status             Status     `json:"status"`
	PersonFullName     string     `json:"person_full_name"`
	PersonDateOfEvent  time.Time  `json:"person_date_of_event"`
	PersonPlaceOfEvent string     `json:"person_place_of_event"`
	PersonGender       *string    `json:"person_gender,omitempty"`
	ParentGuardianName *string    `json:"parent_guardian_name,omitempty"`
	ParentGuardianID   *string    `json:"parent_guardian_id,omitempty"`
	HospitalFacility   *string    `json:"hospital_facility,omitempty"`
	DoctorName         *string    `json:"doctor_name,omitempty"`
	AdditionalNotes    *string    `json:"additional_notes,omitempty"`
	RejectionReason    *string    `json:"rejection_reason,omitempty"`
	ReviewedBy         *uuid.UUID `json:"reviewed_by,omitempty"`
	ReviewedAt         *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// ValidationError aponta o primeiro campo inválido do payload.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// SubmitInput encapsula o payload de abertura de registro.
type SubmitInput struct {
	Type               string `json:"registration_type"`
	PersonFullName     string `json:"person_full_name"`
	PersonDateOfEvent  string `json:"person_date_of_event"`
	PersonPlaceOfEvent string `json:"person_place_of_event"`
	PersonGender       string `json:"person_gender"`
	ParentGuardianName string `json:"parent_guardian_name"`
	ParentGuardianID   string `json:"parent_guardian_id"`
	HospitalFacility   string `json:"hospital_facility"`
	DoctorName         string `json:"doctor_name"`
	AdditionalNotes    string `json:"additional_notes"`
}

// Validate aplica as regras de submissão na ordem dos campos do formulário,
// devolvendo o primeiro campo ofensor. Nada é persistido em caso de falha.
func (in SubmitInput) Validate(now time.Time) (*ValidatedSubmission, error) {
	regType := Type(strings.ToLower(strings.TrimSpace(in.Type)))
	if !regType.Valid() {
		return nil, &ValidationError{Field: "registration_type", Message: "deve ser birth ou death"}
	}

	name := strings.TrimSpace(in.PersonFullName)
	if name == "" {
		return nil, &ValidationError{Field: "person_full_name", Message: "nome completo obrigatório"}
	}

	dateStr := strings.TrimSpace(in.PersonDateOfEvent)
	if dateStr == "" {
		return nil, &ValidationError{Field: "person_date_of_event", Message: "data obrigatória"}
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, &ValidationError{Field: "person_date_of_event", Message: "data inválida (use AAAA-MM-DD)"}
	}
	if date.After(now) {
		return nil, &ValidationError{Field: "person_date_of_event", Message: "data não pode estar no futuro"}
	}

	place := strings.TrimSpace(in.PersonPlaceOfEvent)
	if place == "" {
		return nil, &ValidationError{Field: "person_place_of_event", Message: "local obrigatório"}
	}

	return &ValidatedSubmission{
		Type:               regType,
		PersonFullName:     name,
		PersonDateOfEvent:  date,
		PersonPlaceOfEvent: place,
		PersonGender:       optional(in.PersonGender),
		ParentGuardianName: optional(in.ParentGuardianName),
		ParentGuardianID:   optional(in.ParentGuardianID),
		HospitalFacility:   optional(in.HospitalFacility),
		DoctorName:         optional(in.DoctorName),
		AdditionalNotes:    optional(in.AdditionalNotes),
	}, nil
}

// ValidatedSubmission é o payload já normalizado, pronto para persistir.
type ValidatedSubmission struct {
	Type               Type
	PersonFullName     string
	PersonDateOfEvent  time.Time
	PersonPlaceOfEvent string
	PersonGender       *string
	ParentGuardianName *string
	ParentGuardianID   *string
	HospitalFacility   *string
	DoctorName         *string
	AdditionalNotes    *string
}

// Certificate é o conteúdo da certidão emitida para registros aprovados.
type Certificate struct {
	Number       string       `json:"number"`
	Registration Registration `json:"registration"`
	IssuedAt     time.Time    `json:"issued_at"`
}

// Stats consolida o painel do console administrativo.
type Stats struct {
	Total       int64 `json:"total"`
	Pending     int64 `json:"pending"`
	UnderReview int64 `json:"under_review"`
	Approved    int64 `json:"approved"`
	Rejected    int64 `json:"rejected"`
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
