package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const refreshTokenBytes = 32

// GenerateRefreshToken devolve o token em claro (vai no cookie) e o hash
// que é persistido. O valor em claro nunca toca banco ou Redis.
func GenerateRefreshToken() (raw string, hashed string, err error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}

	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, HashRefreshToken(raw), nil
}

// HashRefreshToken reduz o token a um digest SHA-256 em base64 URL-safe.
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// RefreshRedisKey monta a chave do marcador de sessão ativa, segmentada por
// audiência para que cidadão e administrador não colidam.
func RefreshRedisKey(audience, hash string) string {
	return fmt.Sprintf("registrocivil:refresh:%s:%s", audience, hash)
}
