// Command apikey creates an API key directly in the database. Use it to
// bootstrap the first admin key when AUTH_ENABLED is on.
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

	"github.com/joho/godotenv"
	"github.com/oklog/ulid/v2"

	"github.com/usersapi/usersapi/internal/auth"
	"github.com/usersapi/usersapi/internal/model"
	"github.com/usersapi/usersapi/internal/repository"
)

type output struct {
	KeyID     string   `json:"key_id"`
	Key       string   `json:"key"`
	KeyPrefix string   `json:"key_prefix"`
	Name      string   `json:"name"`
	Scopes    []string `json:"scopes"`
}

type options struct {
	databaseURL string
	name        string
	scopes      string
	env         string
	format      string
	migrate     bool
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "read .env:", err)
	}

	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	flag.StringVar(&opts.name, "name", "bootstrap", "API key name")
	flag.StringVar(&opts.scopes, "scopes", model.ScopeAdmin, "Comma-separated scopes (read,write,admin)")
	flag.StringVar(&opts.env, "env", auth.EnvLive, "Key environment: live or test")
	flag.StringVar(&opts.format, "format", "plain", "Output format: plain or json")
	flag.BoolVar(&opts.migrate, "migrate", true, "Apply migrations before creating the key")
	flag.Parse()

	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(opts options, stdout io.Writer) error {
	if opts.databaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if opts.format != "plain" && opts.format != "json" {
		return errors.New("invalid format; use plain or json")
	}

	scopes, err := model.ParseScopes(opts.scopes)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, opts.databaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer repo.Close()

	if opts.migrate {
		if _, err := repo.Migrate(ctx); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}

	generated, err := auth.GenerateKey(strings.ToLower(opts.env), auth.DefaultParams)
	if err != nil {
		return fmt.Errorf("generate api key: %w", err)
	}

	key := &model.APIKey{
		ID:        ulid.Make().String(),
		Name:      opts.name,
		KeyHash:   generated.Hash,
		KeyPrefix: generated.Prefix,
		Scopes:    scopes,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.CreateAPIKey(ctx, key); err != nil {
		return fmt.Errorf("create api key: %w", err)
	}

	return writeOutput(stdout, opts.format, output{
		KeyID:     key.ID,
		Key:       generated.Plaintext,
		KeyPrefix: key.KeyPrefix,
		Name:      key.Name,
		Scopes:    key.Scopes,
	})
}

func writeOutput(w io.Writer, format string, out output) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	default:
		_, err := fmt.Fprintln(w, out.Key)
		return err
	}
}
