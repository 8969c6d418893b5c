package document

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gestaozabele/registrocivil/internal/registration"
	"github.com/gestaozabele/registrocivil/internal/storage"
)

type stubDocStore struct {
	docs []Document
}

func (s *stubDocStore) Create(ctx context.Context, registrationID uuid.UUID, fileName, filePath string, fileType *string, uploadedBy uuid.UUID) (*Document, error) {
	doc := Document{
		ID:             uuid.New(),
		RegistrationID: registrationID,
		FileName:       fileName,
		FilePath:       filePath,
		FileType:       fileType,
		UploadedBy:     uploadedBy,
		CreatedAt:      time.Now().UTC(),
	}
	s.docs = append(s.docs, doc)
	return &doc, nil
}

func (s *stubDocStore) ListByRegistration(ctx context.Context, registrationID uuid.UUID) ([]Document, error) {
	var out []Document
	for _, doc := range s.docs {
		if doc.RegistrationID == registrationID {
			out = append(out, doc)
		}
	}
	return out, nil
}

type stubGetter struct {
	reg *registration.Registration
}

func (s *stubGetter) Get(ctx context.Context, id, caller uuid.UUID, isAdmin bool) (*registration.Registration, error) {
	if s.reg == nil || s.reg.ID != id {
		return nil, registration.ErrNotFound
	}
	if !isAdmin && s.reg.UserID != caller {
		return nil, registration.ErrNotFound
	}
	copied := *s.reg
	return &copied, nil
}

type stubUploader struct {
	keys []string
}

func (s *stubUploader) Upload(ctx context.Context, input storage.UploadInput) (*storage.UploadResult, error) {
	s.keys = append(s.keys, input.Key)
	return &storage.UploadResult{URL: "https://files.example/" + input.Key}, nil
}

func (s *stubUploader) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://files.example/%s?sig=abc&ttl=%d", key, int(ttl.Seconds())), nil
}

// plainUploader não sabe assinar URLs.
type plainUploader struct{}

func (plainUploader) Upload(ctx context.Context, input storage.UploadInput) (*storage.UploadResult, error) {
	return &storage.UploadResult{URL: "https://files.example/" + input.Key}, nil
}

func ownedRegistration(owner uuid.UUID) *registration.Registration {
	return &registration.Registration{
		ID:     uuid.New(),
		UserID: owner,
		Status: registration.StatusPending,
	}
}

func TestAttachValidatesBody(t *testing.T) {
	owner := uuid.New()
	reg := ownedRegistration(owner)
	svc := NewService(&stubDocStore{}, &stubGetter{reg: reg}, &stubUploader{}, nil)

	_, err := svc.Attach(context.Background(), AttachInput{
		RegistrationID: reg.ID,
		FileName:       "certidao.pdf",
		UploadedBy:     owner,
	}, false)
	require.ErrorIs(t, err, ErrEmptyFile)

	_, err = svc.Attach(context.Background(), AttachInput{
		RegistrationID: reg.ID,
		FileName:       "certidao.pdf",
		Body:           make([]byte, MaxFileSize+1),
		UploadedBy:     owner,
	}, false)
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestAttachScopesToOwner(t *testing.T) {
	owner := uuid.New()
	reg := ownedRegistration(owner)
	svc := NewService(&stubDocStore{}, &stubGetter{reg: reg}, &stubUploader{}, nil)

	_, err := svc.Attach(context.Background(), AttachInput{
		RegistrationID: reg.ID,
		FileName:       "certidao.pdf",
		Body:           []byte("conteúdo"),
		UploadedBy:     uuid.New(),
	}, false)
	require.ErrorIs(t, err, registration.ErrNotFound)
}

func TestAttachUploadsAndPersistsMetadata(t *testing.T) {
	owner := uuid.New()
	reg := ownedRegistration(owner)
	store := &stubDocStore{}
	uploader := &stubUploader{}
	svc := NewService(store, &stubGetter{reg: reg}, uploader, nil)

	doc, err := svc.Attach(context.Background(), AttachInput{
		RegistrationID: reg.ID,
		FileName:       "certidão de nascimento.pdf",
		ContentType:    "application/pdf",
		Body:           []byte("%PDF-1.4"),
		UploadedBy:     owner,
	}, false)
	require.NoError(t, err)

	require.Len(t, uploader.keys, 1)
	require.True(t, strings.HasPrefix(uploader.keys[0], "registrations/"+reg.ID.String()+"/"))
	require.NotContains(t, uploader.keys[0], " ")

	require.Equal(t, reg.ID, doc.RegistrationID)
	require.Equal(t, "certidão de nascimento.pdf", doc.FileName)
	require.Equal(t, uploader.keys[0], doc.FilePath)
	require.NotNil(t, doc.FileType)
	require.Equal(t, "application/pdf", *doc.FileType)
}

func TestListScopesToOwner(t *testing.T) {
	owner := uuid.New()
	reg := ownedRegistration(owner)
	store := &stubDocStore{}
	svc := NewService(store, &stubGetter{reg: reg}, &stubUploader{}, nil)

	_, err := svc.Attach(context.Background(), AttachInput{
		RegistrationID: reg.ID,
		FileName:       "doc.pdf",
		Body:           []byte("x"),
		UploadedBy:     owner,
	}, false)
	require.NoError(t, err)

	_, err = svc.List(context.Background(), reg.ID, uuid.New(), false)
	require.ErrorIs(t, err, registration.ErrNotFound)

	docs, err := svc.List(context.Background(), reg.ID, uuid.New(), true)
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestDownloadURLSignsExistingDocument(t *testing.T) {
	owner := uuid.New()
	reg := ownedRegistration(owner)
	store := &stubDocStore{}
	svc := NewService(store, &stubGetter{reg: reg}, &stubUploader{}, nil)

	doc, err := svc.Attach(context.Background(), AttachInput{
		RegistrationID: reg.ID,
		FileName:       "doc.pdf",
		Body:           []byte("x"),
		UploadedBy:     owner,
	}, false)
	require.NoError(t, err)

	url, err := svc.DownloadURL(context.Background(), reg.ID, doc.ID, owner, false)
	require.NoError(t, err)
	require.Contains(t, url, doc.FilePath)

	_, err = svc.DownloadURL(context.Background(), reg.ID, uuid.New(), owner, false)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDownloadURLRequiresSigner(t *testing.T) {
	owner := uuid.New()
	reg := ownedRegistration(owner)
	store := &stubDocStore{}
	svc := NewService(store, &stubGetter{reg: reg}, plainUploader{}, nil)

	doc, err := svc.Attach(context.Background(), AttachInput{
		RegistrationID: reg.ID,
		FileName:       "doc.pdf",
		Body:           []byte("x"),
		UploadedBy:     owner,
	}, false)
	require.NoError(t, err)

	_, err = svc.DownloadURL(context.Background(), reg.ID, doc.ID, owner, false)
	require.ErrorIs(t, err, storage.ErrNotConfigured)
}
