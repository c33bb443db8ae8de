// Command seed creates or updates a user account with a hashed password.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tasktrack/tasktrack/internal/auth"
	"github.com/tasktrack/tasktrack/internal/model"
	"github.com/tasktrack/tasktrack/internal/repository"
)

type output struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type options struct {
	databaseURL string
	email       string
	fullName    string
	role        string
	password    string
	format      string
	migrate     bool
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	flag.StringVar(&opts.email, "email", "admin@tasktrack.local", "User email (login name)")
	flag.StringVar(&opts.fullName, "full-name", "", "Display name")
	flag.StringVar(&opts.role, "role", string(model.RoleAdmin), "Role: user or admin")
	flag.StringVar(&opts.password, "password", os.Getenv("SEED_PASSWORD"), "Plaintext password (defaults to $SEED_PASSWORD)")
	flag.StringVar(&opts.format, "format", "plain", "Output format: plain or json")
	flag.BoolVar(&opts.migrate, "migrate", false, "Apply migrations before seeding")
	flag.Parse()

	user, err := buildUser(opts, auth.NewHasher(auth.DefaultParams))
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	if opts.databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, opts.databaseURL, repository.PoolConfig{MaxConns: 2, MinConns: 0})
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	if opts.migrate {
		if err := repo.Migrate(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
	}

	if err := repo.UpsertUserByEmail(ctx, user); err != nil {
		fmt.Fprintln(os.Stderr, "upsert user:", err)
		os.Exit(1)
	}

	if err := writeOutput(os.Stdout, opts.format, user); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func buildUser(opts options, hasher *auth.Hasher) (*model.User, error) {
	email := strings.TrimSpace(opts.email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email: %q", opts.email)
	}

	role, ok := model.ParseRole(strings.ToLower(strings.TrimSpace(opts.role)))
	if !ok {
		return nil, fmt.Errorf("invalid role: %s", opts.role)
	}

	if opts.password == "" {
		return nil, errors.New("password is required (use -password or SEED_PASSWORD)")
	}

	hash, err := hasher.Hash(opts.password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	return &model.User{
		ID:           ulid.Make().String(),
		Email:        email,
		FullName:     strings.TrimSpace(opts.fullName),
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

func writeOutput(w io.Writer, format string, user *model.User) error {
	out := output{
		UserID:   user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     string(user.Role),
	}

	switch strings.ToLower(format) {
	case "plain":
		_, err := fmt.Fprintf(w, "%s %s %s\n", out.UserID, out.Email, out.Role)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	default:
		return errors.New("invalid format; use plain or json")
	}
}
