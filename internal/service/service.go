package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evanmaskanazi/socialworkboard/internal/auth"
	"github.com/evanmaskanazi/socialworkboard/internal/mail"
	"github.com/evanmaskanazi/socialworkboard/internal/models"
	"github.com/evanmaskanazi/socialworkboard/internal/queue"
	"github.com/evanmaskanazi/socialworkboard/internal/repo"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is deactivated")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrNotFound           = errors.New("not found")
	ErrSerialExhausted    = errors.New("could not allocate a unique client serial")
	ErrMailDisabled       = errors.New("email delivery is not configured")
)

// ErrClientNotFound covers both a missing client and one owned by another
// therapist.
var ErrClientNotFound = errors.New("client not found")

// ValidationError is returned for bad input, always before anything is
// written.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Store is the persistence the service needs. *repo.Repo implements it.
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, userID string) (models.User, error)
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
	CreateTherapist(ctx context.Context, in repo.NewTherapist) (models.User, models.Therapist, error)
	CreateClient(ctx context.Context, in repo.NewClient) (models.User, models.Client, error)
	GetTherapistByUserID(ctx context.Context, userID string) (models.Therapist, error)
	GetClientByUserID(ctx context.Context, userID string) (models.Client, error)
	GetClientForTherapist(ctx context.Context, therapistID, clientID string) (models.Client, error)
	ClientEmail(ctx context.Context, clientID string) (string, error)
	ClientCategories(ctx context.Context, clientID string) ([]models.TrackingCategory, error)
	ListCategories(ctx context.Context) ([]models.TrackingCategory, error)
	ListClients(ctx context.Context, therapistID string, filter repo.ClientFilter, weekStart time.Time) ([]repo.ClientOverview, error)
	TherapistStats(ctx context.Context, therapistID string, since time.Time) (repo.TherapistStats, error)

	SubmitCheckin(ctx context.Context, in repo.CheckinWrite) (string, error)
	GetCheckin(ctx context.Context, clientID string, date time.Time) (models.DailyCheckin, error)
	ListCheckins(ctx context.Context, clientID string, from, to time.Time) ([]models.DailyCheckin, error)
	RecentCheckins(ctx context.Context, clientID string, limit int) ([]models.DailyCheckin, error)
	ListCategoryResponses(ctx context.Context, clientID string, from, to time.Time) ([]models.CategoryResponse, error)

	CreateGoal(ctx context.Context, therapistID, clientID, text string, weekStart time.Time) (models.WeeklyGoal, error)
	ListGoals(ctx context.Context, clientID string, weekStart time.Time) ([]models.WeeklyGoal, error)
	ListCompletions(ctx context.Context, clientID string, from, to time.Time) ([]models.GoalCompletion, error)
	CreateNote(ctx context.Context, therapistID, clientID, noteType, content string, isMission bool) (models.TherapistNote, error)
	ListNotes(ctx context.Context, clientID string, from, to time.Time) ([]models.TherapistNote, error)
	RecentNotes(ctx context.Context, clientID string, limit int) ([]models.TherapistNote, error)
	PendingMissions(ctx context.Context, clientID string) ([]models.TherapistNote, error)
	CompleteMission(ctx context.Context, clientID, noteID string, at time.Time) (models.TherapistNote, error)

	CreateReminder(ctx context.Context, clientID, reminderType, timeOfDay string) (models.Reminder, error)
	ListReminders(ctx context.Context, clientID string) ([]models.Reminder, error)
	DeactivateReminder(ctx context.Context, clientID, reminderID string) error
	LogReport(ctx context.Context, clientID, therapistID, reportType string, weekStart time.Time, data []byte) (models.Report, error)
}

// NoteCipher protects free-text check-in notes at rest.
type NoteCipher interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}

type PlainNotes struct{}

func (PlainNotes) Encrypt(_ context.Context, s string) (string, error) { return s, nil }
func (PlainNotes) Decrypt(_ context.Context, s string) (string, error) { return s, nil }

type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

type JobQueue interface {
	EnqueueReport(ctx context.Context, job queue.ReportJob) error
}

type Service struct {
	Store    Store
	Auth     *auth.Manager
	Notes    NoteCipher
	Mailer   Mailer
	Queue    JobQueue
	TokenTTL time.Duration
	Now      func() time.Time
	Serials  func() (string, error)
}

func New(store Store, authManager *auth.Manager) *Service {
	return &Service{
		Store:    store,
		Auth:     authManager,
		Notes:    PlainNotes{},
		TokenTTL: 24 * time.Hour,
		Now:      time.Now,
		Serials:  NewSerial,
	}
}

// today is the current UTC calendar date.
func (s *Service) today() time.Time {
	now := s.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// activeUser rejects callers whose account was deactivated after their
// token was issued.
func (s *Service) activeUser(ctx context.Context, userID string) error {
	u, err := s.Store.GetUserByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrProfileNotFound
	}
	if err != nil {
		return err
	}
	if !u.IsActive {
		return ErrAccountInactive
	}
	return nil
}

func (s *Service) therapist(ctx context.Context, userID string) (models.Therapist, error) {
	if err := s.activeUser(ctx, userID); err != nil {
		return models.Therapist{}, err
	}
	t, err := s.Store.GetTherapistByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return t, ErrProfileNotFound
	}
	return t, err
}

func (s *Service) client(ctx context.Context, userID string) (models.Client, error) {
	if err := s.activeUser(ctx, userID); err != nil {
		return models.Client{}, err
	}
	c, err := s.Store.GetClientByUserID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return c, ErrProfileNotFound
	}
	return c, err
}
