package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/registrocivil/internal/auth"
	"github.com/gestaozabele/registrocivil/internal/db"
	"github.com/gestaozabele/registrocivil/internal/repo"
	"github.com/gestaozabele/registrocivil/internal/util"
)

// adminctl cria contas administrativas e troca papéis fora de banda. Nenhuma
// rota da API concede papel admin; toda elevação passa por aqui.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	ctx := context.Background()

	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		log.Fatal().Msg("defina DB_DSN ou DATABASE_URL")
	}

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("não foi possível conectar ao banco")
	}
	defer pool.Close()

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "create-admin":
		if err := runCreateAdmin(ctx, pool, args); err != nil {
			log.Fatal().Err(err).Msg("falha ao criar administrador")
		}
	case "assign-role":
		if err := runAssignRole(ctx, repo.New(pool), args); err != nil {
			log.Fatal().Err(err).Msg("falha ao atribuir papel")
		}
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "adminctl")
	fmt.Fprintln(os.Stderr, "uso:")
	fmt.Fprintln(os.Stderr, "  adminctl create-admin --name \"Fulana\" --email fulana@example.org --password segredo123")
	fmt.Fprintln(os.Stderr, "  adminctl assign-role --email fulana@example.org --role admin|citizen")
}

func runCreateAdmin(ctx context.Context, pool *pgxpool.Pool, args []string) error {
	fs := flag.NewFlagSet("create-admin", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		name     = fs.String("name", "", "nome exibido")
		email    = fs.String("email", "", "email de login")
		password = fs.String("password", "", "senha inicial")
	)

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *name == "" || *email == "" || *password == "" {
		return errors.New("name, email e password são obrigatórios")
	}
	if err := util.ValidateEmail(*email); err != nil {
		return err
	}
	if err := util.ValidatePassword(*password); err != nil {
		return err
	}

	hash, err := auth.Hash(*password)
	if err != nil {
		return err
	}

	var user repo.User
	err = db.WithTx(ctx, pool, func(ctx context.Context, tx pgx.Tx) error {
		q := repo.New(tx)
		user, err = q.CreateUser(ctx, repo.CreateUserParams{
			ID:           uuid.New(),
			Name:         *name,
			Email:        *email,
			PasswordHash: hash,
		})
		if err != nil {
			return err
		}
		if err := q.AssignRole(ctx, user.ID, repo.RoleAdmin); err != nil {
			return err
		}
		_, err = q.CreateProfile(ctx, user.ID, util.OptionalString(*name), nil, nil)
		return err
	})
	if err != nil {
		return err
	}

	output, _ := json.MarshalIndent(map[string]string{
		"id":    user.ID.String(),
		"email": user.Email,
		"role":  repo.RoleAdmin,
	}, "", "  ")
	fmt.Println(string(output))
	return nil
}

func runAssignRole(ctx context.Context, q *repo.Queries, args []string) error {
	fs := flag.NewFlagSet("assign-role", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		email = fs.String("email", "", "email da conta")
		role  = fs.String("role", "", "papel (admin ou citizen)")
	)

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" || *role == "" {
		return errors.New("email e role são obrigatórios")
	}

	normalized := strings.ToLower(strings.TrimSpace(*role))
	if normalized != repo.RoleAdmin && normalized != repo.RoleCitizen {
		return fmt.Errorf("papel desconhecido: %s", *role)
	}

	user, err := q.GetUserByEmail(ctx, *email)
	if err != nil {
		return err
	}

	if err := q.AssignRole(ctx, user.ID, normalized); err != nil {
		return err
	}

	fmt.Printf("papel %s atribuído a %s\n", normalized, user.Email)
	return nil
}
