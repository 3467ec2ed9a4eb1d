package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evanmaskanazi/socialworkboard/internal/models"
	"github.com/evanmaskanazi/socialworkboard/internal/report"
	"github.com/evanmaskanazi/socialworkboard/internal/repo"

	"github.com/google/uuid"
)

const (
	detailCheckinLimit = 7
	detailNoteLimit    = 10
)

type TherapistDashboard struct {
	Therapist models.Therapist    `json:"therapist"`
	Stats     repo.TherapistStats `json:"stats"`
}

func (s *Service) TherapistDashboard(ctx context.Context, userID string) (TherapistDashboard, error) {
	therapist, err := s.therapist(ctx, userID)
	if err != nil {
		return TherapistDashboard{}, err
	}
	stats, err := s.Store.TherapistStats(ctx, therapist.ID, s.today().AddDate(0, 0, -7))
	if err != nil {
		return TherapistDashboard{}, err
	}
	return TherapistDashboard{Therapist: therapist, Stats: stats}, nil
}

type ClientListItem struct {
	repo.ClientOverview
	WeekCompletion string `json:"week_completion"`
}

func (s *Service) ListClients(ctx context.Context, userID string, filter repo.ClientFilter) ([]ClientListItem, error) {
	switch filter.Status {
	case "":
		filter.Status = repo.StatusAll
	case repo.StatusAll, repo.StatusActive, repo.StatusInactive:
	default:
		return nil, invalid("status must be all, active or inactive")
	}
	switch filter.SortBy {
	case "":
		filter.SortBy = repo.SortStartDate
	case repo.SortStartDate, repo.SortSerial:
	default:
		return nil, invalid("sort_by must be start_date or serial")
	}
	therapist, err := s.therapist(ctx, userID)
	if err != nil {
		return nil, err
	}
	clients, err := s.Store.ListClients(ctx, therapist.ID, filter, report.MondayOf(s.today()))
	if err != nil {
		return nil, err
	}
	items := make([]ClientListItem, 0, len(clients))
	for _, c := range clients {
		items = append(items, ClientListItem{ClientOverview: c, WeekCompletion: completionText(c.WeekCheckins)})
	}
	return items, nil
}

func completionText(days int) string {
	return fmt.Sprintf("%d/7", days)
}

// ownedClient resolves a client id for a therapist. Malformed, missing and
// foreign ids all yield ErrClientNotFound.
func (s *Service) ownedClient(ctx context.Context, therapist models.Therapist, clientID string) (models.Client, error) {
	if _, err := uuid.Parse(clientID); err != nil {
		return models.Client{}, ErrClientNotFound
	}
	client, err := s.Store.GetClientForTherapist(ctx, therapist.ID, clientID)
	if errors.Is(err, repo.ErrNotFound) {
		return models.Client{}, ErrClientNotFound
	}
	return client, err
}

type GoalProgress struct {
	models.WeeklyGoal
	Days [7]*bool `json:"days"`
	Rate float64  `json:"completion_rate"`
}

type ClientDetails struct {
	Client         models.Client             `json:"client"`
	Email          string                    `json:"email"`
	Categories     []models.TrackingCategory `json:"tracking_categories"`
	WeekStart      time.Time                 `json:"week_start"`
	Goals          []GoalProgress            `json:"goals"`
	RecentCheckins []models.DailyCheckin     `json:"recent_checkins"`
	RecentNotes    []models.TherapistNote    `json:"recent_notes"`
}

func (s *Service) ClientDetails(ctx context.Context, userID, clientID string) (ClientDetails, error) {
	therapist, err := s.therapist(ctx, userID)
	if err != nil {
		return ClientDetails{}, err
	}
	client, err := s.ownedClient(ctx, therapist, clientID)
	if err != nil {
		return ClientDetails{}, err
	}
	d := ClientDetails{Client: client, WeekStart: report.MondayOf(s.today())}
	if d.Email, err = s.Store.ClientEmail(ctx, client.ID); err != nil {
		return ClientDetails{}, err
	}
	if d.Categories, err = s.Store.ClientCategories(ctx, client.ID); err != nil {
		return ClientDetails{}, err
	}
	if d.Goals, err = s.weekGoals(ctx, client.ID, d.WeekStart); err != nil {
		return ClientDetails{}, err
	}
	checkins, err := s.Store.RecentCheckins(ctx, client.ID, detailCheckinLimit)
	if err != nil {
		return ClientDetails{}, err
	}
	if d.RecentCheckins, err = s.decryptCheckins(ctx, checkins); err != nil {
		return ClientDetails{}, err
	}
	if d.RecentNotes, err = s.Store.RecentNotes(ctx, client.ID, detailNoteLimit); err != nil {
		return ClientDetails{}, err
	}
	return d, nil
}

func (s *Service) weekGoals(ctx context.Context, clientID string, weekStart time.Time) ([]GoalProgress, error) {
	goals, err := s.Store.ListGoals(ctx, clientID, weekStart)
	if err != nil {
		return nil, err
	}
	completions, err := s.Store.ListCompletions(ctx, clientID, weekStart, weekStart.AddDate(0, 0, 6))
	if err != nil {
		return nil, err
	}
	grid := report.GoalGrid(goals, completions, weekStart)
	out := make([]GoalProgress, len(goals))
	for i, g := range goals {
		out[i] = GoalProgress{WeeklyGoal: g, Days: grid[i].Days, Rate: grid[i].Rate}
	}
	return out, nil
}

// AddGoal adds a goal for the week containing weekOf, or the current week
// when weekOf is nil.
func (s *Service) AddGoal(ctx context.Context, userID, clientID, text string, weekOf *time.Time) (models.WeeklyGoal, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.WeeklyGoal{}, invalid("goal_text is required")
	}
	week := report.MondayOf(s.today())
	if weekOf != nil {
		week = report.MondayOf(*weekOf)
	}
	therapist, err := s.therapist(ctx, userID)
	if err != nil {
		return models.WeeklyGoal{}, err
	}
	if _, err := s.ownedClient(ctx, therapist, clientID); err != nil {
		return models.WeeklyGoal{}, err
	}
	goal, err := s.Store.CreateGoal(ctx, therapist.ID, clientID, text, week)
	if errors.Is(err, repo.ErrNotFound) {
		return models.WeeklyGoal{}, ErrClientNotFound
	}
	return goal, err
}

type NoteInput struct {
	Type      string
	Content   string
	IsMission bool
}

func (s *Service) AddNote(ctx context.Context, userID, clientID string, in NoteInput) (models.TherapistNote, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return models.TherapistNote{}, invalid("content is required")
	}
	noteType := strings.TrimSpace(in.Type)
	if noteType == "" {
		noteType = "general"
		if in.IsMission {
			noteType = "mission"
		}
	}
	therapist, err := s.therapist(ctx, userID)
	if err != nil {
		return models.TherapistNote{}, err
	}
	if _, err := s.ownedClient(ctx, therapist, clientID); err != nil {
		return models.TherapistNote{}, err
	}
	note, err := s.Store.CreateNote(ctx, therapist.ID, clientID, noteType, content, in.IsMission)
	if errors.Is(err, repo.ErrNotFound) {
		return models.TherapistNote{}, ErrClientNotFound
	}
	return note, err
}

func (s *Service) decryptCheckins(ctx context.Context, checkins []models.DailyCheckin) ([]models.DailyCheckin, error) {
	for i := range checkins {
		c := &checkins[i]
		for _, r := range []*models.Rating{&c.Emotional, &c.Medication, &c.Activity} {
			plain, err := s.Notes.Decrypt(ctx, r.Notes)
			if err != nil {
				return nil, err
			}
			r.Notes = plain
		}
	}
	return checkins, nil
}
