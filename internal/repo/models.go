package repo

import (
	"time"

	"github.com/google/uuid"
)

// Papéis atribuídos fora de banda (cmd/adminctl); nunca via autoatendimento.
const (
	RoleCitizen = "citizen"
	RoleAdmin   = "admin"
)

// User representa uma conta autenticável (cidadão ou administrador).
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
}

// Profile guarda dados civis complementares do usuário.
type Profile struct {
	UserID     uuid.UUID `json:"id"`
	FullName   *string   `json:"full_name"`
	NationalID *string   `json:"national_id"`
	Phone      *string   `json:"phone"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// UserRole vincula usuário a exatamente um papel.
type UserRole struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Role      string
	CreatedAt time.Time
}

// RefreshToken modela a tabela de refresh tokens.
type RefreshToken struct {
	ID        uuid.UUID
	Subject   uuid.UUID
	Audience  string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// InsertRefreshTokenParams agrupa campos da emissão de refresh.
type InsertRefreshTokenParams struct {
	ID        uuid.UUID
	Subject   uuid.UUID
	Audience  string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// CreateUserParams agrupa campos do cadastro de conta.
type CreateUserParams struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
}
