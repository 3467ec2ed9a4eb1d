package repo

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/evanmaskanazi/socialworkboard/internal/models"

	"github.com/jackc/pgx/v5"
)

// NewClient describes a client account to create. An empty CategoryIDs
// attaches every default category.
type NewClient struct {
	Email        string
	PasswordHash string
	Serial       string
	TherapistID  *string
	StartDate    time.Time
	CategoryIDs  []int
	InitialGoals []string
	GoalWeek     time.Time
	WelcomeNote  string
}

// CreateClient writes the user, client profile, tracking plans, initial goals
// and welcome note in one transaction. A serial collision rolls everything
// back and returns ErrSerialTaken so the caller can retry with a new serial.
func (r *Repo) CreateClient(ctx context.Context, in NewClient) (models.User, models.Client, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return models.User{}, models.Client{}, err
	}
	defer tx.Rollback(ctx)

	user, err := insertUser(ctx, tx, in.Email, in.PasswordHash, "client")
	if err != nil {
		return models.User{}, models.Client{}, err
	}

	client, err := scanClient(tx.QueryRow(ctx, `INSERT INTO clients (user_id, client_serial, therapist_id, start_date)
		VALUES ($1, $2, $3, $4) RETURNING `+clientColumns,
		user.ID, in.Serial, in.TherapistID, in.StartDate))
	if err != nil {
		return models.User{}, models.Client{}, mapUniqueViolation(err)
	}

	if err := attachPlans(ctx, tx, client.ID, in.CategoryIDs); err != nil {
		return models.User{}, models.Client{}, err
	}

	if in.TherapistID != nil {
		for _, text := range in.InitialGoals {
			if _, err := tx.Exec(ctx, `INSERT INTO weekly_goals (client_id, therapist_id, goal_text, week_start)
				VALUES ($1, $2, $3, $4)`, client.ID, *in.TherapistID, text, in.GoalWeek); err != nil {
				return models.User{}, models.Client{}, err
			}
		}
		if in.WelcomeNote != "" {
			if _, err := tx.Exec(ctx, `INSERT INTO therapist_notes (client_id, therapist_id, note_type, content)
				VALUES ($1, $2, 'welcome', $3)`, client.ID, *in.TherapistID, in.WelcomeNote); err != nil {
				return models.User{}, models.Client{}, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.User{}, models.Client{}, err
	}
	return user, client, nil
}

func attachPlans(ctx context.Context, tx pgx.Tx, clientID string, categoryIDs []int) error {
	if len(categoryIDs) == 0 {
		_, err := tx.Exec(ctx, `INSERT INTO client_tracking_plans (client_id, category_id)
			SELECT $1, id FROM tracking_categories WHERE is_default ORDER BY id`, clientID)
		return err
	}
	ids := uniqueInts(categoryIDs)
	cmd, err := tx.Exec(ctx, `INSERT INTO client_tracking_plans (client_id, category_id)
		SELECT $1, id FROM tracking_categories WHERE id = ANY($2) ORDER BY id`, clientID, ids)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() != int64(len(ids)) {
		return ErrInvalidCategory
	}
	return nil
}

func uniqueInts(in []int) []int {
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

const clientColumns = `id, user_id, client_serial, therapist_id, start_date, is_active, created_at`

func scanClient(row pgx.Row) (models.Client, error) {
	var c models.Client
	err := row.Scan(&c.ID, &c.UserID, &c.Serial, &c.TherapistID, &c.StartDate, &c.IsActive, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

func (r *Repo) GetClientByUserID(ctx context.Context, userID string) (models.Client, error) {
	return scanClient(r.Pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE user_id=$1`, userID))
}

// GetClientForTherapist returns ErrNotFound both when the client does not
// exist and when it belongs to another therapist.
func (r *Repo) GetClientForTherapist(ctx context.Context, therapistID, clientID string) (models.Client, error) {
	return scanClient(r.Pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id=$1 AND therapist_id=$2`, clientID, therapistID))
}

func (r *Repo) ClientEmail(ctx context.Context, clientID string) (string, error) {
	var email string
	err := r.Pool.QueryRow(ctx, `SELECT u.email FROM clients c JOIN users u ON u.id=c.user_id WHERE c.id=$1`, clientID).Scan(&email)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return email, err
}

func (r *Repo) ClientCategories(ctx context.Context, clientID string) ([]models.TrackingCategory, error) {
	rows, err := r.Pool.Query(ctx, `SELECT tc.id, tc.name, tc.description, tc.scale_min, tc.scale_max, tc.is_default
		FROM client_tracking_plans p
		JOIN tracking_categories tc ON tc.id=p.category_id
		WHERE p.client_id=$1 AND p.is_active
		ORDER BY tc.id`, clientID)
	if err != nil {
		return nil, err
	}
	return collectCategories(rows)
}

const (
	StatusAll      = "all"
	StatusActive   = "active"
	StatusInactive = "inactive"

	SortStartDate = "start_date"
	SortSerial    = "serial"
)

type ClientFilter struct {
	Status string
	SortBy string
}

type ClientOverview struct {
	models.Client
	Email        string     `json:"email"`
	LastCheckin  *time.Time `json:"last_checkin"`
	WeekCheckins int        `json:"week_checkins"`
	Categories   []string   `json:"tracking_categories"`
}

// ListClients returns the therapist's clients with their check-in count for
// the seven days starting at weekStart.
func (r *Repo) ListClients(ctx context.Context, therapistID string, filter ClientFilter, weekStart time.Time) ([]ClientOverview, error) {
	query := `SELECT c.id, c.user_id, c.client_serial, c.therapist_id, c.start_date, c.is_active, c.created_at, u.email,
			(SELECT max(d.checkin_date) FROM daily_checkins d WHERE d.client_id=c.id),
			(SELECT count(*) FROM daily_checkins d WHERE d.client_id=c.id AND d.checkin_date BETWEEN $2 AND $3),
			COALESCE((SELECT array_agg(tc.name ORDER BY tc.id)
				FROM client_tracking_plans p JOIN tracking_categories tc ON tc.id=p.category_id
				WHERE p.client_id=c.id AND p.is_active), '{}')
		FROM clients c JOIN users u ON u.id=c.user_id
		WHERE c.therapist_id=$1`
	switch filter.Status {
	case StatusActive:
		query += ` AND c.is_active`
	case StatusInactive:
		query += ` AND NOT c.is_active`
	}
	if filter.SortBy == SortSerial {
		query += ` ORDER BY c.client_serial`
	} else {
		query += ` ORDER BY c.start_date DESC, c.client_serial`
	}

	rows, err := r.Pool.Query(ctx, query, therapistID, weekStart, weekStart.AddDate(0, 0, 6))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []ClientOverview{}
	for rows.Next() {
		var o ClientOverview
		if err := rows.Scan(&o.ID, &o.UserID, &o.Serial, &o.TherapistID, &o.StartDate, &o.IsActive, &o.CreatedAt, &o.Email,
			&o.LastCheckin, &o.WeekCheckins, &o.Categories); err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

type TherapistStats struct {
	TotalClients    int `json:"total_clients"`
	ActiveClients   int `json:"active_clients"`
	RecentCheckins  int `json:"recent_checkins"`
	PendingMissions int `json:"pending_missions"`
}

func (r *Repo) TherapistStats(ctx context.Context, therapistID string, since time.Time) (TherapistStats, error) {
	var s TherapistStats
	err := r.Pool.QueryRow(ctx, `SELECT
			(SELECT count(*) FROM clients WHERE therapist_id=$1),
			(SELECT count(*) FROM clients WHERE therapist_id=$1 AND is_active),
			(SELECT count(*) FROM daily_checkins d JOIN clients c ON c.id=d.client_id
				WHERE c.therapist_id=$1 AND d.checkin_date >= $2),
			(SELECT count(*) FROM therapist_notes WHERE therapist_id=$1 AND is_mission AND NOT mission_completed)`,
		therapistID, since).Scan(&s.TotalClients, &s.ActiveClients, &s.RecentCheckins, &s.PendingMissions)
	return s, err
}
