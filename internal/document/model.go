package document

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound é retornado quando o anexo não existe.
	ErrNotFound = errors.New("documento não encontrado")
	// ErrEmptyFile indica upload sem conteúdo.
	ErrEmptyFile = errors.New("arquivo vazio")
	// ErrTooLarge indica arquivo acima do limite aceito.
	ErrTooLarge = errors.New("arquivo excede o limite de 10MB")
)

// MaxFileSize limita anexos a 10MB, mesmo teto aplicado no formulário web.
const MaxFileSize = 10 << 20

// Document associa metadados de um arquivo enviado a um registro civil.
// Apenas criação e listagem; anexos não têm ciclo de vida próprio.
type Document struct {
	ID             uuid.UUID `json:"id"`
	RegistrationID uuid.UUID `json:"registration_id"`
	FileName       string    `json:"file_name"`
	FilePath       string    `json:"file_path"`
	FileType       *string   `json:"file_type,omitempty"`
	UploadedBy     uuid.UUID `json:"uploaded_by"`
	CreatedAt      time.Time `json:"created_at"`
}

// AttachInput encapsula o upload de um documento comprobatório.
type AttachInput struct {
	RegistrationID uuid.UUID
	FileName       string
	ContentType    string
	Body           []byte
	UploadedBy     uuid.UUID
}
