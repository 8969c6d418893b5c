package document

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/registrocivil/internal/realtime"
	"github.com/gestaozabele/registrocivil/internal/registration"
	"github.com/gestaozabele/registrocivil/internal/storage"
)

// Store define o acesso a metadados usado pelo serviço.
type Store interface {
	Create(ctx context.Context, registrationID uuid.UUID, fileName, filePath string, fileType *string, uploadedBy uuid.UUID) (*Document, error)
	ListByRegistration(ctx context.Context, registrationID uuid.UUID) ([]Document, error)
}

// RegistrationGetter resolve o registro respeitando o escopo do chamador.
type RegistrationGetter interface {
	Get(ctx context.Context, id, caller uuid.UUID, isAdmin bool) (*registration.Registration, error)
}

// Service cuida do upload e listagem de documentos comprobatórios.
type Service struct {
	store         Store
	registrations RegistrationGetter
	uploader      storage.Uploader
	events        *realtime.Broker
}

// NewService cria o serviço de documentos.
func NewService(store Store, registrations RegistrationGetter, uploader storage.Uploader, events *realtime.Broker) *Service {
	return &Service{store: store, registrations: registrations, uploader: uploader, events: events}
}

// Attach sobe o arquivo para o storage e grava os metadados. Cidadão só
// anexa aos próprios registros; administrador a qualquer um.
func (s *Service) Attach(ctx context.Context, input AttachInput, isAdmin bool) (*Document, error) {
	if len(input.Body) == 0 {
		return nil, ErrEmptyFile
	}
	if len(input.Body) > MaxFileSize {
		return nil, ErrTooLarge
	}

	reg, err := s.registrations.Get(ctx, input.RegistrationID, input.UploadedBy, isAdmin)
	if err != nil {
		return nil, err
	}

	key := objectKey(reg.ID, input.FileName)
	result, err := s.uploader.Upload(ctx, storage.UploadInput{
		Key:         key,
		Body:        input.Body,
		ContentType: input.ContentType,
	})
	if err != nil {
		return nil, err
	}

	var fileType *string
	if ct := strings.TrimSpace(input.ContentType); ct != "" {
		fileType = &ct
	}

	doc, err := s.store.Create(ctx, reg.ID, input.FileName, key, fileType, input.UploadedBy)
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		if err := s.events.Publish(ctx, realtime.Event{
			Table:    "documents",
			Action:   realtime.ActionInsert,
			RecordID: doc.ID,
			OwnerID:  reg.UserID,
		}); err != nil {
			log.Warn().Err(err).Msg("falha ao publicar anexo")
		}
	}

	log.Info().Str("registration_id", reg.ID.String()).Str("key", key).Str("url", result.URL).Msg("documento anexado")
	return doc, nil
}

// List devolve os anexos do registro dentro do escopo do chamador.
func (s *Service) List(ctx context.Context, registrationID, caller uuid.UUID, isAdmin bool) ([]Document, error) {
	if _, err := s.registrations.Get(ctx, registrationID, caller, isAdmin); err != nil {
		return nil, err
	}
	return s.store.ListByRegistration(ctx, registrationID)
}

// DownloadURL gera URL assinada e temporária para baixar o anexo.
func (s *Service) DownloadURL(ctx context.Context, registrationID, documentID, caller uuid.UUID, isAdmin bool) (string, error) {
	docs, err := s.List(ctx, registrationID, caller, isAdmin)
	if err != nil {
		return "", err
	}

	signer, ok := s.uploader.(storage.URLSigner)
	if !ok {
		return "", storage.ErrNotConfigured
	}

	for _, doc := range docs {
		if doc.ID == documentID {
			return signer.PresignGet(ctx, doc.FilePath, 15*time.Minute)
		}
	}
	return "", ErrNotFound
}

func objectKey(registrationID uuid.UUID, fileName string) string {
	base := path.Base(strings.TrimSpace(fileName))
	base = strings.ReplaceAll(base, " ", "_")
	if base == "" || base == "." {
		base = "documento"
	}
	return fmt.Sprintf("registrations/%s/%s-%s", registrationID, uuid.NewString(), base)
}
