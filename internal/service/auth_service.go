package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/registrocivil/internal/auth"
	"github.com/gestaozabele/registrocivil/internal/db"
	"github.com/gestaozabele/registrocivil/internal/repo"
	"github.com/gestaozabele/registrocivil/internal/util"
)

// Audiências aceitas nos tokens emitidos.
const (
	AudienceCitizen = "cidadao"
	AudienceAdmin   = "admin"
)

var (
	// ErrInvalidCredentials indica falha na autenticação.
	ErrInvalidCredentials = errors.New("credenciais inválidas")
	// ErrAccountDisabled indica conta desativada.
	ErrAccountDisabled = errors.New("conta desativada")
	// ErrRefreshInvalid indica refresh token inválido ou expirado.
	ErrRefreshInvalid = errors.New("refresh token inválido")
	// ErrNotAdmin indica tentativa de acesso administrativo sem papel admin.
	ErrNotAdmin = errors.New("usuário sem papel administrativo")
	// ErrEmailTaken indica cadastro com e-mail já utilizado.
	ErrEmailTaken = errors.New("email já cadastrado")
)

type authRepository interface {
	GetUserByEmail(ctx context.Context, email string) (repo.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (repo.User, error)
	GetRole(ctx context.Context, userID uuid.UUID) (string, error)
	HasRole(ctx context.Context, userID uuid.UUID, role string) (bool, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (repo.Profile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, fullName, nationalID, phone *string) (repo.Profile, error)
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (repo.RefreshToken, error)
	InsertRefreshToken(ctx context.Context, arg repo.InsertRefreshTokenParams) (repo.RefreshToken, error)
	InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, audience, keepHash string) error
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllRefreshTokens(ctx context.Context, subject uuid.UUID) ([]repo.RefreshToken, error)
}

type redisCommander interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AuthService concentra regras de autenticação, cadastro e sessões.
type AuthService struct {
	repo       authRepository
	redis      redisCommander
	jwt        *auth.JWTManager
	refreshTTL time.Duration
	pool       *pgxpool.Pool
}

// NewAuthService cria novo serviço.
func NewAuthService(r *repo.Queries, pool *pgxpool.Pool, redisClient *redis.Client, jwtMgr *auth.JWTManager, refreshTTL time.Duration) *AuthService {
	return &AuthService{repo: r, pool: pool, redis: redisClient, jwt: jwtMgr, refreshTTL: refreshTTL}
}

// JWT expõe gerenciador de JWT (útil em middlewares).
func (s *AuthService) JWT() *auth.JWTManager {
	return s.jwt
}

// LoginResult representa retorno padrão de autenticações.
type LoginResult struct {
	Audience      string
	AccessToken   string
	RefreshToken  string
	Subject       uuid.UUID
	Roles         []string
	Profile       *UserProfile
	RefreshHash   string
	RefreshExpiry time.Time
}

// UserProfile descreve a conta autenticada com os dados civis complementares.
type UserProfile struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Email      string  `json:"email"`
	FullName   *string `json:"full_name,omitempty"`
	NationalID *string `json:"national_id,omitempty"`
	Phone      *string `json:"phone,omitempty"`
}

// SignupInput agrupa dados do autoatendimento de cadastro.
type SignupInput struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"full_name"`
	NationalID string `json:"national_id"`
	Phone      string `json:"phone"`
}

// SignupCitizen cria conta de cidadão com papel e perfil em uma transação e
// já devolve sessão autenticada. Papel admin nunca nasce aqui.
func (s *AuthService) SignupCitizen(ctx context.Context, input SignupInput) (*LoginResult, error) {
	if err := util.ValidateEmail(input.Email); err != nil {
		return nil, err
	}
	if err := util.ValidatePassword(input.Password); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.New("nome obrigatório")
	}

	hash, err := auth.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	var user repo.User
	err = db.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		q := repo.New(tx)

		user, err = q.CreateUser(ctx, repo.CreateUserParams{
			ID:           uuid.New(),
			Name:         name,
			Email:        input.Email,
			PasswordHash: hash,
		})
		if err != nil {
			return err
		}
		if err := q.AssignRole(ctx, user.ID, repo.RoleCitizen); err != nil {
			return err
		}
		_, err = q.CreateProfile(ctx, user.ID,
			util.OptionalString(input.FullName),
			util.OptionalString(input.NationalID),
			util.OptionalString(input.Phone),
		)
		return err
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	log.Info().Str("user_id", user.ID.String()).Msg("cidadão cadastrado")
	return s.issueSession(ctx, user, AudienceCitizen, []string{repo.RoleCitizen})
}

// LoginCitizen autentica o portal do cidadão.
func (s *AuthService) LoginCitizen(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	roles := []string{repo.RoleCitizen}
	if role, err := s.repo.GetRole(ctx, user.ID); err == nil && role != "" {
		roles = []string{role}
	}
	return s.issueSession(ctx, user, AudienceCitizen, roles)
}

// LoginAdmin autentica o console administrativo. Exige papel admin vigente
// na tabela de papéis, não apenas credenciais válidas.
func (s *AuthService) LoginAdmin(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	isAdmin, err := s.repo.HasRole(ctx, user.ID, repo.RoleAdmin)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		log.Warn().Str("user_id", user.ID.String()).Msg("login admin: sem papel admin")
		return nil, ErrNotAdmin
	}

	return s.issueSession(ctx, user, AudienceAdmin, []string{repo.RoleAdmin})
}

func (s *AuthService) authenticate(ctx context.Context, email, password string) (repo.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(email))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn().Msg("login: usuário não encontrado")
			return repo.User{}, ErrInvalidCredentials
		}
		return repo.User{}, err
	}
	if !user.Active {
		return repo.User{}, ErrAccountDisabled
	}

	ok, err := auth.Verify(password, user.PasswordHash)
	if err != nil {
		log.Warn().Err(err).Msg("login: verificação de senha falhou")
		return repo.User{}, ErrInvalidCredentials
	}
	if !ok {
		log.Warn().Msg("login: senha inválida")
		return repo.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Refresh troca refresh token por novos tokens. Sessões de audiência admin
// revalidam o papel a cada rotação: papel removido derruba a sessão.
func (s *AuthService) Refresh(ctx context.Context, audience, rawToken string) (*LoginResult, error) {
	if rawToken == "" {
		return nil, ErrRefreshInvalid
	}

	hash := auth.HashRefreshToken(rawToken)
	record, err := s.repo.GetRefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRefreshInvalid
		}
		return nil, err
	}

	if record.Revoked || time.Now().UTC().After(record.ExpiresAt) || record.Audience != audience {
		return nil, ErrRefreshInvalid
	}

	redisKey := auth.RefreshRedisKey(audience, hash)
	status, err := s.redis.Get(ctx, redisKey).Result()
	if err == redis.Nil {
		return nil, ErrRefreshInvalid
	}
	if err != nil {
		return nil, err
	}
	if status != "active" {
		return nil, ErrRefreshInvalid
	}

	user, err := s.repo.GetUserByID(ctx, record.Subject)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, ErrAccountDisabled
	}

	roles := []string{repo.RoleCitizen}
	switch audience {
	case AudienceAdmin:
		isAdmin, err := s.repo.HasRole(ctx, user.ID, repo.RoleAdmin)
		if err != nil {
			return nil, err
		}
		if !isAdmin {
			if err := s.RevokeAllSessions(ctx, user.ID); err != nil {
				log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("falha ao derrubar sessões sem papel")
			}
			return nil, ErrNotAdmin
		}
		roles = []string{repo.RoleAdmin}
	case AudienceCitizen:
		if role, err := s.repo.GetRole(ctx, user.ID); err == nil && role != "" {
			roles = []string{role}
		}
	default:
		return nil, ErrRefreshInvalid
	}

	result, err := s.issueSession(ctx, user, audience, roles)
	if err != nil {
		return nil, err
	}

	// Rotação: revoga o token anterior (DB + Redis).
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && err != redis.Nil {
		return nil, err
	}

	return result, nil
}

// Logout revoga refresh token atual.
func (s *AuthService) Logout(ctx context.Context, audience, rawToken string) error {
	if rawToken == "" {
		return nil
	}
	hash := auth.HashRefreshToken(rawToken)
	if err := s.repo.RevokeRefreshToken(ctx, hash); err != nil && !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	redisKey := auth.RefreshRedisKey(audience, hash)
	if err := s.redis.Del(ctx, redisKey).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// GetMe retorna perfil completo para o sujeito autenticado.
func (s *AuthService) GetMe(ctx context.Context, subject uuid.UUID) (*UserProfile, []string, error) {
	user, err := s.repo.GetUserByID(ctx, subject)
	if err != nil {
		return nil, nil, err
	}

	profile := &UserProfile{
		ID:    user.ID.String(),
		Name:  user.Name,
		Email: user.Email,
	}
	if p, err := s.repo.GetProfile(ctx, subject); err == nil {
		profile.FullName = p.FullName
		profile.NationalID = p.NationalID
		profile.Phone = p.Phone
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, nil, err
	}

	roles := []string{repo.RoleCitizen}
	if role, err := s.repo.GetRole(ctx, subject); err == nil && role != "" {
		roles = []string{role}
	}
	return profile, roles, nil
}

// UpdateMyProfile altera dados civis do próprio usuário.
func (s *AuthService) UpdateMyProfile(ctx context.Context, subject uuid.UUID, fullName, nationalID, phone *string) (*UserProfile, error) {
	if _, err := s.repo.UpdateProfile(ctx, subject, fullName, nationalID, phone); err != nil {
		return nil, err
	}
	profile, _, err := s.GetMe(ctx, subject)
	return profile, err
}

// IsAdmin consulta o papel vigente direto no banco, ignorando claims antigas.
func (s *AuthService) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	return s.repo.HasRole(ctx, userID, repo.RoleAdmin)
}

// RevokeAllSessions derruba todas as sessões do usuário (sign-out forçado).
func (s *AuthService) RevokeAllSessions(ctx context.Context, subject uuid.UUID) error {
	tokens, err := s.repo.RevokeAllRefreshTokens(ctx, subject)
	if err != nil {
		return err
	}
	for _, t := range tokens {
		key := auth.RefreshRedisKey(t.Audience, t.TokenHash)
		if err := s.redis.Del(ctx, key).Err(); err != nil && err != redis.Nil {
			return err
		}
	}
	log.Info().Str("user_id", subject.String()).Int("sessions", len(tokens)).Msg("sessões revogadas")
	return nil
}

func (s *AuthService) issueSession(ctx context.Context, user repo.User, audience string, roles []string) (*LoginResult, error) {
	token, _, err := s.jwt.GenerateAccessToken(user.ID.String(), audience, roles)
	if err != nil {
		return nil, err
	}

	rawRefresh, refreshHash, err := auth.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	expires := time.Now().UTC().Add(s.refreshTTL)
	if err := s.persistRefresh(ctx, user.ID, audience, refreshHash, expires); err != nil {
		return nil, err
	}

	profile := &UserProfile{
		ID:    user.ID.String(),
		Name:  user.Name,
		Email: user.Email,
	}
	if p, err := s.repo.GetProfile(ctx, user.ID); err == nil {
		profile.FullName = p.FullName
		profile.NationalID = p.NationalID
		profile.Phone = p.Phone
	}

	return &LoginResult{
		Audience:      audience,
		AccessToken:   token,
		RefreshToken:  rawRefresh,
		Subject:       user.ID,
		Roles:         roles,
		Profile:       profile,
		RefreshHash:   refreshHash,
		RefreshExpiry: expires,
	}, nil
}

func (s *AuthService) persistRefresh(ctx context.Context, subject uuid.UUID, audience, hash string, expires time.Time) error {
	_, err := s.repo.InsertRefreshToken(ctx, repo.InsertRefreshTokenParams{
		ID:        uuid.New(),
		Subject:   subject,
		Audience:  audience,
		TokenHash: hash,
		ExpiresAt: expires,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if err := s.repo.InvalidateOtherRefreshTokens(ctx, subject, audience, hash); err != nil {
		return err
	}

	return s.redis.Set(ctx, auth.RefreshRedisKey(audience, hash), "active", time.Until(expires)).Err()
}
