package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"
)

//go:embed seed/categories.yaml
var categoriesYAML []byte

const (
	DemoTherapistEmail    = "demo.therapist@example.com"
	DemoTherapistPassword = "demo123"
	DemoTherapistLicense  = "DEMO-12345"
)

type CategorySeed struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	ScaleMin    int    `yaml:"scale_min"`
	ScaleMax    int    `yaml:"scale_max"`
	Default     bool   `yaml:"default"`
}

type categoryCatalog struct {
	Categories []CategorySeed `yaml:"categories"`
}

// ParseCategoryCatalog decodes a category catalog, filling in the 1-5 scale
// when bounds are omitted.
func ParseCategoryCatalog(data []byte) ([]CategorySeed, error) {
	var catalog categoryCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse category catalog: %w", err)
	}
	seen := make(map[string]bool, len(catalog.Categories))
	for i := range catalog.Categories {
		c := &catalog.Categories[i]
		if c.Name == "" {
			return nil, fmt.Errorf("category %d: name required", i)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("category %q listed twice", c.Name)
		}
		seen[c.Name] = true
		if c.ScaleMin == 0 && c.ScaleMax == 0 {
			c.ScaleMin, c.ScaleMax = 1, 5
		}
		if c.ScaleMin >= c.ScaleMax {
			return nil, fmt.Errorf("category %q: scale_min must be below scale_max", c.Name)
		}
	}
	return catalog.Categories, nil
}

func DefaultCategories() ([]CategorySeed, error) {
	return ParseCategoryCatalog(categoriesYAML)
}

type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

type SeedOptions struct {
	Demo   bool
	Hasher PasswordHasher
}

// Seed inserts the category catalog and, optionally, the demo therapist.
// Existing rows are left untouched so it is safe to run on every start.
func Seed(ctx context.Context, pool *pgxpool.Pool, opts SeedOptions) error {
	categories, err := DefaultCategories()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, c := range categories {
		_, err := tx.Exec(ctx, `INSERT INTO tracking_categories (name, description, scale_min, scale_max, is_default)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (name) DO NOTHING`, c.Name, c.Description, c.ScaleMin, c.ScaleMax, c.Default)
		if err != nil {
			return fmt.Errorf("seed category %q: %w", c.Name, err)
		}
	}

	if opts.Demo {
		if opts.Hasher == nil {
			return errors.New("seed demo: password hasher required")
		}
		if err := seedDemoTherapist(ctx, tx, opts.Hasher); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func seedDemoTherapist(ctx context.Context, tx pgx.Tx, hasher PasswordHasher) error {
	hash, err := hasher.HashPassword(DemoTherapistPassword)
	if err != nil {
		return err
	}
	var userID string
	err = tx.QueryRow(ctx, `INSERT INTO users (email, password_hash, role)
		VALUES ($1, $2, 'therapist')
		ON CONFLICT (email) DO NOTHING
		RETURNING id`, DemoTherapistEmail, hash).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed demo user: %w", err)
	}
	_, err = tx.Exec(ctx, `INSERT INTO therapists (user_id, license_number, name, organization, specializations)
		VALUES ($1, $2, 'Dr. Demo Therapist', 'Demo Mental Health Clinic', $3)`,
		userID, DemoTherapistLicense, []string{"Anxiety", "Depression", "Stress Management"})
	if err != nil {
		return fmt.Errorf("seed demo therapist: %w", err)
	}
	log.Printf("demo therapist created: %s", DemoTherapistEmail)
	return nil
}
