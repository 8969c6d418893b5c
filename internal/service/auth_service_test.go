package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gestaozabele/registrocivil/internal/auth"
	"github.com/gestaozabele/registrocivil/internal/repo"
)

type stubAuthRepo struct {
	user    repo.User
	role    string
	profile *repo.Profile
	tokens  map[string]repo.RefreshToken
}

func newStubAuthRepo(user repo.User, role string) *stubAuthRepo {
	return &stubAuthRepo{user: user, role: role, tokens: make(map[string]repo.RefreshToken)}
}

func (s *stubAuthRepo) GetUserByEmail(ctx context.Context, email string) (repo.User, error) {
	if strings.EqualFold(email, s.user.Email) {
		return s.user, nil
	}
	return repo.User{}, repo.ErrNotFound
}

func (s *stubAuthRepo) GetUserByID(ctx context.Context, id uuid.UUID) (repo.User, error) {
	if id == s.user.ID {
		return s.user, nil
	}
	return repo.User{}, repo.ErrNotFound
}

func (s *stubAuthRepo) GetRole(ctx context.Context, userID uuid.UUID) (string, error) {
	if s.role == "" {
		return "", repo.ErrNotFound
	}
	return s.role, nil
}

func (s *stubAuthRepo) HasRole(ctx context.Context, userID uuid.UUID, role string) (bool, error) {
	return s.role == role, nil
}

func (s *stubAuthRepo) GetProfile(ctx context.Context, userID uuid.UUID) (repo.Profile, error) {
	if s.profile == nil {
		return repo.Profile{}, repo.ErrNotFound
	}
	return *s.profile, nil
}

func (s *stubAuthRepo) UpdateProfile(ctx context.Context, userID uuid.UUID, fullName, nationalID, phone *string) (repo.Profile, error) {
	s.profile = &repo.Profile{UserID: userID, FullName: fullName, NationalID: nationalID, Phone: phone}
	return *s.profile, nil
}

func (s *stubAuthRepo) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (repo.RefreshToken, error) {
	t, ok := s.tokens[tokenHash]
	if !ok {
		return repo.RefreshToken{}, repo.ErrNotFound
	}
	return t, nil
}

func (s *stubAuthRepo) InsertRefreshToken(ctx context.Context, arg repo.InsertRefreshTokenParams) (repo.RefreshToken, error) {
	t := repo.RefreshToken{
		ID:        arg.ID,
		Subject:   arg.Subject,
		Audience:  arg.Audience,
		TokenHash: arg.TokenHash,
		ExpiresAt: arg.ExpiresAt,
		CreatedAt: arg.CreatedAt,
	}
	s.tokens[arg.TokenHash] = t
	return t, nil
}

func (s *stubAuthRepo) InvalidateOtherRefreshTokens(ctx context.Context, subject uuid.UUID, audience, keepHash string) error {
	for hash, t := range s.tokens {
		if t.Subject == subject && t.Audience == audience && hash != keepHash {
			t.Revoked = true
			s.tokens[hash] = t
		}
	}
	return nil
}

func (s *stubAuthRepo) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	t, ok := s.tokens[tokenHash]
	if !ok {
		return repo.ErrNotFound
	}
	t.Revoked = true
	s.tokens[tokenHash] = t
	return nil
}

func (s *stubAuthRepo) RevokeAllRefreshTokens(ctx context.Context, subject uuid.UUID) ([]repo.RefreshToken, error) {
	var revoked []repo.RefreshToken
	for hash, t := range s.tokens {
		if t.Subject == subject && !t.Revoked {
			t.Revoked = true
			s.tokens[hash] = t
			revoked = append(revoked, t)
		}
	}
	return revoked, nil
}

type stubRedis struct {
	store map[string]string
}

func (s *stubRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	if s.store == nil {
		s.store = make(map[string]string)
	}
	s.store[key] = fmt.Sprint(value)
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("OK")
	return cmd
}

func (s *stubRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	val, ok := s.store[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(val)
	return cmd
}

func (s *stubRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := s.store[key]; ok {
			delete(s.store, key)
			removed++
		}
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(removed)
	return cmd
}

func newTestService(repoStub *stubAuthRepo) (*AuthService, *stubRedis) {
	redisStub := &stubRedis{}
	return &AuthService{
		repo:       repoStub,
		redis:      redisStub,
		jwt:        auth.NewJWTManager(strings.Repeat("a", 32), time.Minute),
		refreshTTL: time.Hour,
	}, redisStub
}

func citizenUser(t *testing.T, password string) repo.User {
	t.Helper()
	hash, err := auth.Hash(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return repo.User{
		ID:           uuid.New(),
		Name:         "Maria da Silva",
		Email:        "maria@example.com",
		PasswordHash: hash,
		Active:       true,
	}
}

func TestLoginCitizenIssuesSession(t *testing.T) {
	password := "SenhaForte123!"
	repoStub := newStubAuthRepo(citizenUser(t, password), repo.RoleCitizen)
	svc, redisStub := newTestService(repoStub)

	result, err := svc.LoginCitizen(context.Background(), "maria@example.com", password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if result.Audience != AudienceCitizen {
		t.Fatalf("expected audience cidadao, got %s", result.Audience)
	}
	if len(result.Roles) != 1 || result.Roles[0] != repo.RoleCitizen {
		t.Fatalf("expected roles [citizen], got %v", result.Roles)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if redisStub.store[auth.RefreshRedisKey(AudienceCitizen, result.RefreshHash)] != "active" {
		t.Fatal("expected refresh marked active in redis")
	}
}

func TestLoginCitizenRejectsWrongPassword(t *testing.T) {
	repoStub := newStubAuthRepo(citizenUser(t, "SenhaForte123!"), repo.RoleCitizen)
	svc, _ := newTestService(repoStub)

	if _, err := svc.LoginCitizen(context.Background(), "maria@example.com", "errada"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginAdminRequiresAdminRole(t *testing.T) {
	password := "SenhaForte123!"
	repoStub := newStubAuthRepo(citizenUser(t, password), repo.RoleCitizen)
	svc, _ := newTestService(repoStub)

	if _, err := svc.LoginAdmin(context.Background(), "maria@example.com", password); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}

	repoStub.role = repo.RoleAdmin
	result, err := svc.LoginAdmin(context.Background(), "maria@example.com", password)
	if err != nil {
		t.Fatalf("login admin: %v", err)
	}
	if result.Audience != AudienceAdmin {
		t.Fatalf("expected audience admin, got %s", result.Audience)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	password := "SenhaForte123!"
	repoStub := newStubAuthRepo(citizenUser(t, password), repo.RoleCitizen)
	svc, _ := newTestService(repoStub)
	ctx := context.Background()

	login, err := svc.LoginCitizen(ctx, "maria@example.com", password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	rotated, err := svc.Refresh(ctx, AudienceCitizen, login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == login.RefreshToken {
		t.Fatal("expected a new refresh token")
	}

	// O token antigo não serve mais.
	if _, err := svc.Refresh(ctx, AudienceCitizen, login.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid for reused token, got %v", err)
	}
}

func TestRefreshRejectsWrongAudience(t *testing.T) {
	password := "SenhaForte123!"
	repoStub := newStubAuthRepo(citizenUser(t, password), repo.RoleCitizen)
	svc, _ := newTestService(repoStub)
	ctx := context.Background()

	login, err := svc.LoginCitizen(ctx, "maria@example.com", password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := svc.Refresh(ctx, AudienceAdmin, login.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid, got %v", err)
	}
}

func TestRefreshAdminAfterRoleRemovalDropsSessions(t *testing.T) {
	password := "SenhaForte123!"
	repoStub := newStubAuthRepo(citizenUser(t, password), repo.RoleAdmin)
	svc, redisStub := newTestService(repoStub)
	ctx := context.Background()

	login, err := svc.LoginAdmin(ctx, "maria@example.com", password)
	if err != nil {
		t.Fatalf("login admin: %v", err)
	}

	// Papel removido fora de banda.
	repoStub.role = repo.RoleCitizen

	if _, err := svc.Refresh(ctx, AudienceAdmin, login.RefreshToken); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}

	for _, tok := range repoStub.tokens {
		if tok.Subject == repoStub.user.ID && !tok.Revoked {
			t.Fatal("expected all sessions revoked after role removal")
		}
	}
	if len(redisStub.store) != 0 {
		t.Fatalf("expected redis state cleared, got %v", redisStub.store)
	}
}

func TestLogoutRevokesRefresh(t *testing.T) {
	password := "SenhaForte123!"
	repoStub := newStubAuthRepo(citizenUser(t, password), repo.RoleCitizen)
	svc, _ := newTestService(repoStub)
	ctx := context.Background()

	login, err := svc.LoginCitizen(ctx, "maria@example.com", password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.Logout(ctx, AudienceCitizen, login.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}

	if _, err := svc.Refresh(ctx, AudienceCitizen, login.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid after logout, got %v", err)
	}
}
