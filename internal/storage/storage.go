package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured indica que não há backend de storage disponível.
var ErrNotConfigured = errors.New("storage: uploader não configurado")

// UploadInput representa uma operação de upload simples.
type UploadInput struct {
	Key          string
	Body         []byte
	ContentType  string
	CacheControl string
}

// UploadResult descreve o artefato persistido.
type UploadResult struct {
	URL  string
	ETag string
}

// Uploader define comportamento básico para armazenar blobs.
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (*UploadResult, error)
}

// URLSigner gera URLs temporárias de leitura para objetos privados.
type URLSigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}
