package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/evanmaskanazi/socialworkboard/internal/models"
	"github.com/evanmaskanazi/socialworkboard/internal/report"
	"github.com/evanmaskanazi/socialworkboard/internal/repo"

	"github.com/google/uuid"
)

const (
	ratingMin     = 1
	ratingMax     = 5
	progressDays  = 30
	maxNoteLength = 2000
)

type TodayGoal struct {
	models.WeeklyGoal
	CompletedToday *bool `json:"completed_today"`
}

type ClientDashboard struct {
	Client         models.Client             `json:"client"`
	Today          time.Time                 `json:"today"`
	TodayCheckin   *models.DailyCheckin      `json:"today_checkin"`
	Categories     []models.TrackingCategory `json:"tracking_categories"`
	TodayResponses map[int]int               `json:"today_responses"`
	Goals          []TodayGoal               `json:"goals"`
	Missions       []models.TherapistNote    `json:"missions"`
	Reminders      []models.Reminder         `json:"reminders"`
}

func (s *Service) ClientDashboard(ctx context.Context, userID string) (ClientDashboard, error) {
	client, err := s.client(ctx, userID)
	if err != nil {
		return ClientDashboard{}, err
	}
	today := s.today()
	d := ClientDashboard{Client: client, Today: today, TodayResponses: map[int]int{}}

	checkin, err := s.Store.GetCheckin(ctx, client.ID, today)
	switch {
	case errors.Is(err, repo.ErrNotFound):
	case err != nil:
		return ClientDashboard{}, err
	default:
		decrypted, err := s.decryptCheckins(ctx, []models.DailyCheckin{checkin})
		if err != nil {
			return ClientDashboard{}, err
		}
		d.TodayCheckin = &decrypted[0]
	}

	if d.Categories, err = s.Store.ClientCategories(ctx, client.ID); err != nil {
		return ClientDashboard{}, err
	}
	responses, err := s.Store.ListCategoryResponses(ctx, client.ID, today, today)
	if err != nil {
		return ClientDashboard{}, err
	}
	for _, r := range responses {
		d.TodayResponses[r.CategoryID] = r.Value
	}

	goals, err := s.weekGoals(ctx, client.ID, report.MondayOf(today))
	if err != nil {
		return ClientDashboard{}, err
	}
	dayIndex := int(today.Sub(report.MondayOf(today)).Hours() / 24)
	d.Goals = make([]TodayGoal, len(goals))
	for i, g := range goals {
		d.Goals[i] = TodayGoal{WeeklyGoal: g.WeeklyGoal, CompletedToday: g.Days[dayIndex]}
	}

	if d.Missions, err = s.Store.PendingMissions(ctx, client.ID); err != nil {
		return ClientDashboard{}, err
	}
	if d.Reminders, err = s.Store.ListReminders(ctx, client.ID); err != nil {
		return ClientDashboard{}, err
	}
	return d, nil
}

// RatingInput carries a rated field as submitted. An empty Value means the
// field was left out.
type RatingInput struct {
	Value string
	Notes string
}

type CheckinInput struct {
	Date       string
	Emotional  RatingInput
	Medication RatingInput
	Activity   RatingInput
	Categories map[string]string
	Goals      map[string]bool
}

// SubmitCheckin validates the whole submission, then upserts it for the
// given date (today when empty) in one transaction.
func (s *Service) SubmitCheckin(ctx context.Context, userID string, in CheckinInput) (models.DailyCheckin, error) {
	write, err := s.parseCheckin(in)
	if err != nil {
		return models.DailyCheckin{}, err
	}
	client, err := s.client(ctx, userID)
	if err != nil {
		return models.DailyCheckin{}, err
	}
	write.ClientID = client.ID

	for _, r := range []*models.Rating{&write.Emotional, &write.Medication, &write.Activity} {
		if r.Notes, err = s.Notes.Encrypt(ctx, r.Notes); err != nil {
			return models.DailyCheckin{}, err
		}
	}

	_, err = s.Store.SubmitCheckin(ctx, write)
	switch {
	case errors.Is(err, repo.ErrInvalidCategory), errors.Is(err, repo.ErrValueOutOfRange):
		return models.DailyCheckin{}, invalid("%v", err)
	case errors.Is(err, repo.ErrNotFound):
		return models.DailyCheckin{}, ErrNotFound
	case err != nil:
		return models.DailyCheckin{}, err
	}

	stored, err := s.Store.GetCheckin(ctx, client.ID, write.Date)
	if err != nil {
		return models.DailyCheckin{}, err
	}
	decrypted, err := s.decryptCheckins(ctx, []models.DailyCheckin{stored})
	if err != nil {
		return models.DailyCheckin{}, err
	}
	return decrypted[0], nil
}

func (s *Service) parseCheckin(in CheckinInput) (repo.CheckinWrite, error) {
	w := repo.CheckinWrite{
		Date:       s.today(),
		Time:       s.Now(),
		Categories: make(map[int]int, len(in.Categories)),
		Goals:      make(map[string]bool, len(in.Goals)),
	}
	if date := strings.TrimSpace(in.Date); date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return w, invalid("date must be formatted YYYY-MM-DD")
		}
		w.Date = parsed
	}

	fields := []struct {
		name string
		in   RatingInput
		out  *models.Rating
	}{
		{"emotional", in.Emotional, &w.Emotional},
		{"medication", in.Medication, &w.Medication},
		{"activity", in.Activity, &w.Activity},
	}
	for _, f := range fields {
		if len(f.in.Notes) > maxNoteLength {
			return w, invalid("%s notes must be at most %d characters", f.name, maxNoteLength)
		}
		f.out.Notes = strings.TrimSpace(f.in.Notes)
		raw := strings.TrimSpace(f.in.Value)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return w, invalid("%s value must be a number", f.name)
		}
		if v < ratingMin || v > ratingMax {
			return w, invalid("%s value must be between %d and %d", f.name, ratingMin, ratingMax)
		}
		f.out.Value = &v
	}

	for key, raw := range in.Categories {
		id, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return w, invalid("category id %q must be a number", key)
		}
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return w, invalid("value for category %d must be a number", id)
		}
		w.Categories[id] = v
	}

	for key, done := range in.Goals {
		id, err := uuid.Parse(strings.TrimSpace(key))
		if err != nil {
			return w, invalid("goal id %q is not valid", key)
		}
		w.Goals[id.String()] = done
	}
	return w, nil
}

type ClientProgress struct {
	From       time.Time                 `json:"from"`
	To         time.Time                 `json:"to"`
	Categories []models.TrackingCategory `json:"tracking_categories"`
	Checkins   []models.DailyCheckin     `json:"checkins"`
	Responses  []models.CategoryResponse `json:"category_responses"`
}

// ClientProgress returns the last thirty days of the caller's data.
func (s *Service) ClientProgress(ctx context.Context, userID string) (ClientProgress, error) {
	client, err := s.client(ctx, userID)
	if err != nil {
		return ClientProgress{}, err
	}
	to := s.today()
	p := ClientProgress{From: to.AddDate(0, 0, -(progressDays - 1)), To: to}
	checkins, err := s.Store.ListCheckins(ctx, client.ID, p.From, p.To)
	if err != nil {
		return ClientProgress{}, err
	}
	if p.Checkins, err = s.decryptCheckins(ctx, checkins); err != nil {
		return ClientProgress{}, err
	}
	if p.Responses, err = s.Store.ListCategoryResponses(ctx, client.ID, p.From, p.To); err != nil {
		return ClientProgress{}, err
	}
	if p.Categories, err = s.Store.ClientCategories(ctx, client.ID); err != nil {
		return ClientProgress{}, err
	}
	return p, nil
}

func (s *Service) CompleteMission(ctx context.Context, userID, noteID string) (models.TherapistNote, error) {
	if _, err := uuid.Parse(noteID); err != nil {
		return models.TherapistNote{}, ErrNotFound
	}
	client, err := s.client(ctx, userID)
	if err != nil {
		return models.TherapistNote{}, err
	}
	note, err := s.Store.CompleteMission(ctx, client.ID, noteID, s.Now())
	if errors.Is(err, repo.ErrNotFound) {
		return models.TherapistNote{}, ErrNotFound
	}
	return note, err
}

func (s *Service) ListReminders(ctx context.Context, userID string) ([]models.Reminder, error) {
	client, err := s.client(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Store.ListReminders(ctx, client.ID)
}

// AddReminder stores a daily reminder at timeOfDay ("HH:MM", 24h clock).
func (s *Service) AddReminder(ctx context.Context, userID, reminderType, timeOfDay string) (models.Reminder, error) {
	timeOfDay = strings.TrimSpace(timeOfDay)
	if _, err := time.Parse("15:04", timeOfDay); err != nil {
		return models.Reminder{}, invalid("reminder_time must be formatted HH:MM")
	}
	reminderType = strings.TrimSpace(reminderType)
	if reminderType == "" {
		reminderType = "checkin"
	}
	client, err := s.client(ctx, userID)
	if err != nil {
		return models.Reminder{}, err
	}
	return s.Store.CreateReminder(ctx, client.ID, reminderType, timeOfDay)
}

func (s *Service) RemoveReminder(ctx context.Context, userID, reminderID string) error {
	if _, err := uuid.Parse(reminderID); err != nil {
		return ErrNotFound
	}
	client, err := s.client(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.Store.DeactivateReminder(ctx, client.ID, reminderID); errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return nil
}
