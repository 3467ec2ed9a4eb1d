package repo

import (
	"context"
	"errors"
	"time"

	"github.com/evanmaskanazi/socialworkboard/internal/models"

	"github.com/jackc/pgx/v5"
)

const goalColumns = `id, client_id, therapist_id, goal_text, week_start, is_active, created_at`

func scanGoal(row pgx.Row) (models.WeeklyGoal, error) {
	var g models.WeeklyGoal
	err := row.Scan(&g.ID, &g.ClientID, &g.TherapistID, &g.Text, &g.WeekStart, &g.IsActive, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return g, ErrNotFound
	}
	return g, err
}

// CreateGoal inserts a goal only when the client belongs to the therapist.
func (r *Repo) CreateGoal(ctx context.Context, therapistID, clientID, text string, weekStart time.Time) (models.WeeklyGoal, error) {
	return scanGoal(r.Pool.QueryRow(ctx, `INSERT INTO weekly_goals (client_id, therapist_id, goal_text, week_start)
		SELECT id, therapist_id, $3, $4 FROM clients WHERE id=$1 AND therapist_id=$2
		RETURNING `+goalColumns, clientID, therapistID, text, weekStart))
}

func (r *Repo) ListGoals(ctx context.Context, clientID string, weekStart time.Time) ([]models.WeeklyGoal, error) {
	rows, err := r.Pool.Query(ctx, `SELECT `+goalColumns+` FROM weekly_goals
		WHERE client_id=$1 AND week_start=$2 AND is_active
		ORDER BY created_at`, clientID, weekStart)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.WeeklyGoal{}
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

// ListCompletions returns completion marks of the client's goals dated
// between from and to inclusive.
func (r *Repo) ListCompletions(ctx context.Context, clientID string, from, to time.Time) ([]models.GoalCompletion, error) {
	rows, err := r.Pool.Query(ctx, `SELECT gc.goal_id, gc.completion_date, gc.completed, gc.notes
		FROM goal_completions gc
		JOIN weekly_goals g ON g.id=gc.goal_id
		WHERE g.client_id=$1 AND gc.completion_date BETWEEN $2 AND $3
		ORDER BY gc.completion_date`, clientID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.GoalCompletion{}
	for rows.Next() {
		var c models.GoalCompletion
		if err := rows.Scan(&c.GoalID, &c.Date, &c.Completed, &c.Notes); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

const noteColumns = `id, client_id, therapist_id, note_type, content, is_mission, mission_completed, created_at, completed_at`

func scanNote(row pgx.Row) (models.TherapistNote, error) {
	var n models.TherapistNote
	err := row.Scan(&n.ID, &n.ClientID, &n.TherapistID, &n.Type, &n.Content, &n.IsMission, &n.MissionCompleted, &n.CreatedAt, &n.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return n, ErrNotFound
	}
	return n, err
}

func collectNotes(rows pgx.Rows) ([]models.TherapistNote, error) {
	defer rows.Close()
	res := []models.TherapistNote{}
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

// CreateNote inserts a note only when the client belongs to the therapist.
func (r *Repo) CreateNote(ctx context.Context, therapistID, clientID, noteType, content string, isMission bool) (models.TherapistNote, error) {
	return scanNote(r.Pool.QueryRow(ctx, `INSERT INTO therapist_notes (client_id, therapist_id, note_type, content, is_mission)
		SELECT id, therapist_id, $3, $4, $5 FROM clients WHERE id=$1 AND therapist_id=$2
		RETURNING `+noteColumns, clientID, therapistID, noteType, content, isMission))
}

// ListNotes returns notes created in [from, to), oldest first.
func (r *Repo) ListNotes(ctx context.Context, clientID string, from, to time.Time) ([]models.TherapistNote, error) {
	rows, err := r.Pool.Query(ctx, `SELECT `+noteColumns+` FROM therapist_notes
		WHERE client_id=$1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at`, clientID, from, to)
	if err != nil {
		return nil, err
	}
	return collectNotes(rows)
}

func (r *Repo) RecentNotes(ctx context.Context, clientID string, limit int) ([]models.TherapistNote, error) {
	rows, err := r.Pool.Query(ctx, `SELECT `+noteColumns+` FROM therapist_notes
		WHERE client_id=$1 ORDER BY created_at DESC LIMIT $2`, clientID, limit)
	if err != nil {
		return nil, err
	}
	return collectNotes(rows)
}

func (r *Repo) PendingMissions(ctx context.Context, clientID string) ([]models.TherapistNote, error) {
	rows, err := r.Pool.Query(ctx, `SELECT `+noteColumns+` FROM therapist_notes
		WHERE client_id=$1 AND is_mission AND NOT mission_completed
		ORDER BY created_at`, clientID)
	if err != nil {
		return nil, err
	}
	return collectNotes(rows)
}

// CompleteMission marks one of the client's missions done. Completing an
// already completed mission keeps the original completion time.
func (r *Repo) CompleteMission(ctx context.Context, clientID, noteID string, at time.Time) (models.TherapistNote, error) {
	return scanNote(r.Pool.QueryRow(ctx, `UPDATE therapist_notes
		SET mission_completed=true, completed_at=COALESCE(completed_at, $3)
		WHERE id=$1 AND client_id=$2 AND is_mission
		RETURNING `+noteColumns, noteID, clientID, at))
}
