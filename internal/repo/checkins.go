package repo

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/evanmaskanazi/socialworkboard/internal/models"

	"github.com/jackc/pgx/v5"
)

// CheckinWrite is one client's submission for one date. Category and goal
// maps may be empty.
type CheckinWrite struct {
	ClientID   string
	Date       time.Time
	Time       time.Time
	Emotional  models.Rating
	Medication models.Rating
	Activity   models.Rating
	Categories map[int]int
	Goals      map[string]bool
}

// SubmitCheckin upserts the day's check-in, category responses and goal
// completions in a single transaction. Every row is keyed by its natural key
// and written with ON CONFLICT DO UPDATE, so resubmitting the same day
// overwrites in place and a concurrent insert turns into an update.
func (r *Repo) SubmitCheckin(ctx context.Context, in CheckinWrite) (string, error) {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx)

	var id string
	err = tx.QueryRow(ctx, `INSERT INTO daily_checkins (client_id, checkin_date, checkin_time,
			emotional_value, emotional_notes, medication_value, medication_notes, activity_value, activity_notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (client_id, checkin_date) DO UPDATE SET
			checkin_time=EXCLUDED.checkin_time,
			emotional_value=EXCLUDED.emotional_value,
			emotional_notes=EXCLUDED.emotional_notes,
			medication_value=EXCLUDED.medication_value,
			medication_notes=EXCLUDED.medication_notes,
			activity_value=EXCLUDED.activity_value,
			activity_notes=EXCLUDED.activity_notes,
			updated_at=now()
		RETURNING id`,
		in.ClientID, in.Date, in.Time,
		in.Emotional.Value, in.Emotional.Notes,
		in.Medication.Value, in.Medication.Notes,
		in.Activity.Value, in.Activity.Notes).Scan(&id)
	if err != nil {
		return "", err
	}

	categoryIDs := make([]int, 0, len(in.Categories))
	for categoryID := range in.Categories {
		categoryIDs = append(categoryIDs, categoryID)
	}
	sort.Ints(categoryIDs)
	for _, categoryID := range categoryIDs {
		value := in.Categories[categoryID]
		var scaleMin, scaleMax int
		err := tx.QueryRow(ctx, `SELECT scale_min, scale_max FROM tracking_categories WHERE id=$1`, categoryID).Scan(&scaleMin, &scaleMax)
		if errors.Is(err, pgx.ErrNoRows) {
			return "", wrapf(ErrInvalidCategory, "category %d", categoryID)
		}
		if err != nil {
			return "", err
		}
		if value < scaleMin || value > scaleMax {
			return "", wrapf(ErrValueOutOfRange, "category %d expects %d-%d, got %d", categoryID, scaleMin, scaleMax, value)
		}
		_, err = tx.Exec(ctx, `INSERT INTO category_responses (client_id, category_id, response_date, value)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (client_id, category_id, response_date) DO UPDATE SET
				value=EXCLUDED.value,
				updated_at=now()`, in.ClientID, categoryID, in.Date, value)
		if err != nil {
			return "", err
		}
	}

	goalIDs := make([]string, 0, len(in.Goals))
	for goalID := range in.Goals {
		goalIDs = append(goalIDs, goalID)
	}
	sort.Strings(goalIDs)
	for _, goalID := range goalIDs {
		// The SELECT only yields a row for the client's own goal.
		cmd, err := tx.Exec(ctx, `INSERT INTO goal_completions (goal_id, completion_date, completed)
			SELECT id, $2, $3 FROM weekly_goals WHERE id=$1 AND client_id=$4
			ON CONFLICT (goal_id, completion_date) DO UPDATE SET
				completed=EXCLUDED.completed,
				updated_at=now()`, goalID, in.Date, in.Goals[goalID], in.ClientID)
		if err != nil {
			return "", err
		}
		if cmd.RowsAffected() == 0 {
			return "", wrapf(ErrNotFound, "goal %s", goalID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

const checkinColumns = `id, client_id, checkin_date, checkin_time,
	emotional_value, emotional_notes, medication_value, medication_notes, activity_value, activity_notes, created_at`

func scanCheckin(row pgx.Row) (models.DailyCheckin, error) {
	var c models.DailyCheckin
	err := row.Scan(&c.ID, &c.ClientID, &c.Date, &c.Time,
		&c.Emotional.Value, &c.Emotional.Notes,
		&c.Medication.Value, &c.Medication.Notes,
		&c.Activity.Value, &c.Activity.Notes,
		&c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ErrNotFound
	}
	return c, err
}

func collectCheckins(rows pgx.Rows) ([]models.DailyCheckin, error) {
	defer rows.Close()
	res := []models.DailyCheckin{}
	for rows.Next() {
		c, err := scanCheckin(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *Repo) GetCheckin(ctx context.Context, clientID string, date time.Time) (models.DailyCheckin, error) {
	return scanCheckin(r.Pool.QueryRow(ctx, `SELECT `+checkinColumns+` FROM daily_checkins
		WHERE client_id=$1 AND checkin_date=$2`, clientID, date))
}

// ListCheckins returns check-ins with from <= date <= to, oldest first.
func (r *Repo) ListCheckins(ctx context.Context, clientID string, from, to time.Time) ([]models.DailyCheckin, error) {
	rows, err := r.Pool.Query(ctx, `SELECT `+checkinColumns+` FROM daily_checkins
		WHERE client_id=$1 AND checkin_date BETWEEN $2 AND $3
		ORDER BY checkin_date`, clientID, from, to)
	if err != nil {
		return nil, err
	}
	return collectCheckins(rows)
}

func (r *Repo) RecentCheckins(ctx context.Context, clientID string, limit int) ([]models.DailyCheckin, error) {
	rows, err := r.Pool.Query(ctx, `SELECT `+checkinColumns+` FROM daily_checkins
		WHERE client_id=$1 ORDER BY checkin_date DESC LIMIT $2`, clientID, limit)
	if err != nil {
		return nil, err
	}
	return collectCheckins(rows)
}

func (r *Repo) ListCategoryResponses(ctx context.Context, clientID string, from, to time.Time) ([]models.CategoryResponse, error) {
	rows, err := r.Pool.Query(ctx, `SELECT client_id, category_id, response_date, value, notes
		FROM category_responses
		WHERE client_id=$1 AND response_date BETWEEN $2 AND $3
		ORDER BY response_date, category_id`, clientID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.CategoryResponse{}
	for rows.Next() {
		var c models.CategoryResponse
		if err := rows.Scan(&c.ClientID, &c.CategoryID, &c.Date, &c.Value, &c.Notes); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}
