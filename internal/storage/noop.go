package storage

import (
	"context"
	"time"
)

// NoopUploader devolve erro indicando que não há backend configurado.
type NoopUploader struct{}

// Upload sempre retorna erro, sinalizando que o recurso não está disponível.
func (NoopUploader) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	return nil, ErrNotConfigured
}

// PresignGet sempre retorna erro, sinalizando que o recurso não está disponível.
func (NoopUploader) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "", ErrNotConfigured
}
