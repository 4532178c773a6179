// seed_admin creates the initial administrator account. The API only exposes
// self-registration as accountant, so the first admin has to be seeded
// directly against the database.
//
// Usage: go run ./cmd/seed_admin -email admin@example.com -password <pw>
// Connection settings come from the same env vars as the API (DATABASE_URL
// or DB_HOST/DB_PORT/...).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/okiehn/rechnung-api/internal/domain"
	"github.com/okiehn/rechnung-api/internal/domain/entity"
	"github.com/okiehn/rechnung-api/internal/infrastructure/postgres"
	"github.com/okiehn/rechnung-api/pkg/config"
)

func main() {
	email := flag.String("email", "", "admin email (required)")
	password := flag.String("password", "", "admin password, min. 8 characters (required)")
	username := flag.String("username", "admin", "admin username")
	fullName := flag.String("name", "Administrator", "display name")
	flag.Parse()

	if *email == "" || len(*password) < 8 {
		fmt.Fprintln(os.Stderr, "usage: seed_admin -email <email> -password <min 8 chars>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "PostgreSQL connection: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash password: %v\n", err)
		os.Exit(1)
	}

	user := &entity.User{
		Username:       *username,
		Email:          *email,
		HashedPassword: string(hash),
		FullName:       *fullName,
		Role:           entity.RoleAdmin,
		IsActive:       true,
	}
	if err := postgres.NewUserRepository(pool).Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailAlreadyExists) {
			fmt.Fprintf(os.Stderr, "a user with email %s already exists\n", *email)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "create admin: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("admin user created: id=%d email=%s\n", user.ID, user.Email)
}
