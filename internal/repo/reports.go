package repo

import (
	"context"
	"errors"
	"time"

	"github.com/evanmaskanazi/socialworkboard/internal/models"

	"github.com/jackc/pgx/v5"
)

const reminderColumns = `id, client_id, reminder_type, reminder_time, is_active, last_sent`

func scanReminder(row pgx.Row) (models.Reminder, error) {
	var m models.Reminder
	err := row.Scan(&m.ID, &m.ClientID, &m.Type, &m.TimeOfDay, &m.IsActive, &m.LastSent)
	if errors.Is(err, pgx.ErrNoRows) {
		return m, ErrNotFound
	}
	return m, err
}

func (r *Repo) CreateReminder(ctx context.Context, clientID, reminderType, timeOfDay string) (models.Reminder, error) {
	return scanReminder(r.Pool.QueryRow(ctx, `INSERT INTO reminders (client_id, reminder_type, reminder_time)
		VALUES ($1, $2, $3) RETURNING `+reminderColumns, clientID, reminderType, timeOfDay))
}

func (r *Repo) ListReminders(ctx context.Context, clientID string) ([]models.Reminder, error) {
	rows, err := r.Pool.Query(ctx, `SELECT `+reminderColumns+` FROM reminders
		WHERE client_id=$1 AND is_active ORDER BY reminder_time`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.Reminder{}
	for rows.Next() {
		m, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r *Repo) DeactivateReminder(ctx context.Context, clientID, reminderID string) error {
	cmd, err := r.Pool.Exec(ctx, `UPDATE reminders SET is_active=false WHERE id=$1 AND client_id=$2`, reminderID, clientID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// LogReport records a generated report and its JSON summary.
func (r *Repo) LogReport(ctx context.Context, clientID, therapistID, reportType string, weekStart time.Time, data []byte) (models.Report, error) {
	rep := models.Report{ClientID: clientID, TherapistID: therapistID, Type: reportType, WeekStart: weekStart, Data: data}
	err := r.Pool.QueryRow(ctx, `INSERT INTO reports (client_id, therapist_id, report_type, week_start, data)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, generated_at`,
		clientID, therapistID, reportType, weekStart, string(data)).Scan(&rep.ID, &rep.GeneratedAt)
	return rep, err
}
