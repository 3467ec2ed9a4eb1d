package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evanmaskanazi/socialworkboard/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrEmailTaken      = errors.New("email already registered")
	ErrLicenseTaken    = errors.New("license number already registered")
	ErrSerialTaken     = errors.New("client serial already in use")
	ErrInvalidCategory = errors.New("unknown tracking category")
	ErrValueOutOfRange = errors.New("value outside category scale")
)

type Repo struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repo {
	return &Repo{Pool: pool}
}

// constraint name -> sentinel for unique violations callers can act on.
var uniqueErrors = map[string]error{
	"users_email_key":               ErrEmailTaken,
	"therapists_license_number_key": ErrLicenseTaken,
	"clients_client_serial_key":     ErrSerialTaken,
}

func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if mapped, ok := uniqueErrors[pgErr.ConstraintName]; ok {
			return mapped
		}
	}
	return err
}

const userColumns = `id, email, password_hash, role, is_active, created_at, last_login`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.LastLogin)
	if errors.Is(err, pgx.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

func (r *Repo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return scanUser(r.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
}

func (r *Repo) GetUserByID(ctx context.Context, userID string) (models.User, error) {
	return scanUser(r.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID))
}

func (r *Repo) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	cmd, err := r.Pool.Exec(ctx, `UPDATE users SET last_login=$1 WHERE id=$2`, at, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type NewTherapist struct {
	Email           string
	PasswordHash    string
	Name            string
	LicenseNumber   string
	Organization    string
	Specializations []string
}

func (r *Repo) CreateTherapist(ctx context.Context, in NewTherapist) (models.User, models.Therapist, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return models.User{}, models.Therapist{}, err
	}
	defer tx.Rollback(ctx)

	user, err := insertUser(ctx, tx, in.Email, in.PasswordHash, "therapist")
	if err != nil {
		return models.User{}, models.Therapist{}, err
	}
	specs := in.Specializations
	if specs == nil {
		specs = []string{}
	}
	t := models.Therapist{
		UserID:          user.ID,
		LicenseNumber:   in.LicenseNumber,
		Name:            in.Name,
		Organization:    in.Organization,
		Specializations: specs,
	}
	err = tx.QueryRow(ctx, `INSERT INTO therapists (user_id, license_number, name, organization, specializations)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		user.ID, t.LicenseNumber, t.Name, t.Organization, specs).Scan(&t.ID)
	if err != nil {
		return models.User{}, models.Therapist{}, mapUniqueViolation(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return models.User{}, models.Therapist{}, err
	}
	return user, t, nil
}

func insertUser(ctx context.Context, tx pgx.Tx, email, passwordHash, role string) (models.User, error) {
	user, err := scanUser(tx.QueryRow(ctx, `INSERT INTO users (email, password_hash, role)
		VALUES ($1, $2, $3) RETURNING `+userColumns, email, passwordHash, role))
	if err != nil {
		return models.User{}, mapUniqueViolation(err)
	}
	return user, nil
}

func (r *Repo) GetTherapistByUserID(ctx context.Context, userID string) (models.Therapist, error) {
	var t models.Therapist
	err := r.Pool.QueryRow(ctx, `SELECT id, user_id, license_number, name, organization, specializations
		FROM therapists WHERE user_id=$1`, userID).
		Scan(&t.ID, &t.UserID, &t.LicenseNumber, &t.Name, &t.Organization, &t.Specializations)
	if errors.Is(err, pgx.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}

func (r *Repo) ListCategories(ctx context.Context) ([]models.TrackingCategory, error) {
	rows, err := r.Pool.Query(ctx, `SELECT id, name, description, scale_min, scale_max, is_default
		FROM tracking_categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collectCategories(rows)
}

func collectCategories(rows pgx.Rows) ([]models.TrackingCategory, error) {
	defer rows.Close()
	var res []models.TrackingCategory
	for rows.Next() {
		var c models.TrackingCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.ScaleMin, &c.ScaleMax, &c.IsDefault); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func wrapf(err error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
