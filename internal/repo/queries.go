package repo

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstrai pool ou transação pgx, permitindo reuso das queries.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries concentra acesso às tabelas de contas, papéis e sessões.
type Queries struct {
	db DBTX
}

// New cria Queries sobre pool ou transação.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// CreateUser insere nova conta.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	const query = `
        INSERT INTO users (id, name, email, password_hash, active)
        VALUES ($1, $2, $3, $4, TRUE)
        RETURNING id, name, email, password_hash, active, created_at
    `

	var u User
	err := q.db.QueryRow(ctx, query, arg.ID, strings.TrimSpace(arg.Name), strings.ToLower(strings.TrimSpace(arg.Email)), arg.PasswordHash).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Active, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return User{}, ErrDuplicateEmail
		}
		return User{}, err
	}
	return u, nil
}

// GetUserByEmail busca conta pelo e-mail normalizado.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	const query = `
        SELECT id, name, email, password_hash, active, created_at
        FROM users
        WHERE email = $1
    `

	var u User
	err := q.db.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Active, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// GetUserByID busca conta pelo identificador.
func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	const query = `
        SELECT id, name, email, password_hash, active, created_at
        FROM users
        WHERE id = $1
    `

	var u User
	err := q.db.QueryRow(ctx, query, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Active, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// AssignRole grava (ou substitui) o papel único do usuário.
func (q *Queries) AssignRole(ctx context.Context, userID uuid.UUID, role string) error {
	const query = `
        INSERT INTO user_roles (user_id, role)
        VALUES ($1, $2)
        ON CONFLICT (user_id) DO UPDATE SET role = EXCLUDED.role
    `

	_, err := q.db.Exec(ctx, query, userID, strings.ToLower(strings.TrimSpace(role)))
	return err
}

// GetRole devolve o papel do usuário.
func (q *Queries) GetRole(ctx context.Context, userID uuid.UUID) (string, error) {
	const query = `SELECT role FROM user_roles WHERE user_id = $1`

	var role string
	if err := q.db.QueryRow(ctx, query, userID).Scan(&role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return role, nil
}

// HasRole espelha a checagem has_role(user, role) aplicada no portal admin.
func (q *Queries) HasRole(ctx context.Context, userID uuid.UUID, role string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM user_roles WHERE user_id = $1 AND role = $2)`

	var ok bool
	if err := q.db.QueryRow(ctx, query, userID, strings.ToLower(strings.TrimSpace(role))).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// CreateProfile insere perfil civil vazio ou preenchido no cadastro.
func (q *Queries) CreateProfile(ctx context.Context, userID uuid.UUID, fullName, nationalID, phone *string) (Profile, error) {
	const query = `
        INSERT INTO profiles (id, full_name, national_id, phone)
        VALUES ($1, $2, $3, $4)
        RETURNING id, full_name, national_id, phone, created_at, updated_at
    `

	var p Profile
	err := q.db.QueryRow(ctx, query, userID, fullName, nationalID, phone).
		Scan(&p.UserID, &p.FullName, &p.NationalID, &p.Phone, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// GetProfile busca perfil do usuário.
func (q *Queries) GetProfile(ctx context.Context, userID uuid.UUID) (Profile, error) {
	const query = `
        SELECT id, full_name, national_id, phone, created_at, updated_at
        FROM profiles
        WHERE id = $1
    `

	var p Profile
	err := q.db.QueryRow(ctx, query, userID).
		Scan(&p.UserID, &p.FullName, &p.NationalID, &p.Phone, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

// UpdateProfile altera dados civis do próprio usuário.
func (q *Queries) UpdateProfile(ctx context.Context, userID uuid.UUID, fullName, nationalID, phone *string) (Profile, error) {
	const query = `
        UPDATE profiles
        SET full_name = $2, national_id = $3, phone = $4, updated_at = now()
        WHERE id = $1
        RETURNING id, full_name, national_id, phone, created_at, updated_at
    `

	var p Profile
	err := q.db.QueryRow(ctx, query, userID, fullName, nationalID, phone).
		Scan(&p.UserID, &p.FullName, &p.NationalID, &p.Phone, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

// InsertRefreshToken registra hash de refresh emitido.
func (q *Queries) InsertRefreshToken(ctx context.Context, arg InsertRefreshTokenParams) (RefreshToken, error) {
	const query = `
        INSERT INTO tokens_refresh (id, subject, audience, token_hash, expires_at, created_at, revoked)
        VALUES ($1, $2, $3, $4, $5, $6, FALSE)
        RETURNING id, subject, audience, token_hash, expires_at, created_at, revoked
    `

	var t RefreshToken
	err := q.db.QueryRow(ctx, query, arg.ID, arg.Subject, arg.Audience, arg.TokenHash, arg.ExpiresAt, arg.CreatedAt).
		Scan(&t.ID, &t.Subject, &t.Audience, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt, &t.Revoked)
	return t, err
}

// GetRefreshTokenByHash localiza refresh pelo hash.
func (q *Queries) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (RefreshToken, error) {
	const query = `
        SELECT id, subject, audience, token_hash, expires_at, created_at, revoked
        FROM tokens_refresh
        WHERE token_hash = $1
    `

	var t RefreshToken
	err := q.db.QueryRow(ctx, query, tokenHash).
		Scan(&t.ID, &t.Subject, &t.Audience, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt, &t.Revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RefreshToken{}, ErrNotFound
		}
		return RefreshToken{}, err
	}
	return t, nil
}

// RevokeRefreshToken marca refresh como revogado.
func (q *Queries) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	const query = `UPDATE tokens_refresh SET revoked = TRUE WHERE token_hash = $1`

	cmd, err := q.db.Exec(ctx, query, tokenHash)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RevokeAllRefreshTokens derruba todas as sessões do sujeito (sign-out forçado).
func (q *Queries) RevokeAllRefreshTokens(ctx context.Context, subject uuid.UUID) ([]RefreshToken, error) {
	const query = `
        UPDATE tokens_refresh
        SET revoked = TRUE
        WHERE subject = $1 AND NOT revoked
        RETURNING id, subject, audience, token_hash, expires_at, created_at, revoked
    `

	rows, err := q.db.Query(ctx, query, subject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []RefreshToken
	for rows.Next() {
		var t RefreshToken
		if err := rows.Scan(&t.ID, &t.Subject, &t.Audience, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt, &t.Revoked); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// InvalidateOtherRefreshTokens revoga sessões antigas mantendo a atual.
func (q *Queries) InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, audience, keepHash string) error {
	const query = `
        UPDATE tokens_refresh
        SET revoked = TRUE
        WHERE subject = $1 AND audience = $2 AND token_hash <> $3 AND NOT revoked
    `

	_, err := q.db.Exec(ctx, query, subject, audience, keepHash)
	return err
}
