package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/mail"
	"strings"

	"github.com/evanmaskanazi/socialworkboard/internal/auth"
	"github.com/evanmaskanazi/socialworkboard/internal/models"
	"github.com/evanmaskanazi/socialworkboard/internal/report"
	"github.com/evanmaskanazi/socialworkboard/internal/repo"
)

const (
	minPasswordLength = 6
	welcomeNote       = "Welcome! I'm looking forward to working with you. Check in daily and we'll review your progress together."
)

type Profile struct {
	User      models.User       `json:"user"`
	Therapist *models.Therapist `json:"therapist,omitempty"`
	Client    *models.Client    `json:"client,omitempty"`
}

type Session struct {
	Token     string  `json:"token"`
	ExpiresIn int64   `json:"expires_in"`
	Profile   Profile `json:"profile"`
}

type RegisterInput struct {
	Email           string
	Password        string
	Role            string
	Name            string
	LicenseNumber   string
	Organization    string
	Specializations []string
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("a valid email address is required")
	}
	return email, nil
}

// Register creates a therapist or a self-registered client and signs them
// in. Clients start with the default tracking plan and no therapist.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return Session{}, err
	}
	if len(in.Password) < minPasswordLength {
		return Session{}, invalid("password must be at least %d characters", minPasswordLength)
	}
	switch in.Role {
	case auth.RoleTherapist:
		if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.LicenseNumber) == "" {
			return Session{}, invalid("name and license_number are required for therapists")
		}
	case auth.RoleClient:
	default:
		return Session{}, invalid("role must be therapist or client")
	}

	hash, err := s.Auth.HashPassword(in.Password)
	if err != nil {
		return Session{}, err
	}

	if in.Role == auth.RoleTherapist {
		user, therapist, err := s.Store.CreateTherapist(ctx, repo.NewTherapist{
			Email:           email,
			PasswordHash:    hash,
			Name:            strings.TrimSpace(in.Name),
			LicenseNumber:   strings.TrimSpace(in.LicenseNumber),
			Organization:    strings.TrimSpace(in.Organization),
			Specializations: in.Specializations,
		})
		if err != nil {
			return Session{}, err
		}
		return s.session(Profile{User: user, Therapist: &therapist})
	}

	user, client, err := s.createClient(ctx, repo.NewClient{
		Email:        email,
		PasswordHash: hash,
		StartDate:    s.today(),
	})
	if err != nil {
		return Session{}, err
	}
	return s.session(Profile{User: user, Client: &client})
}

// createClient fills in a fresh serial and retries on collision.
func (s *Service) createClient(ctx context.Context, in repo.NewClient) (models.User, models.Client, error) {
	for attempt := 0; attempt < maxSerialAttempts; attempt++ {
		serial, err := s.Serials()
		if err != nil {
			return models.User{}, models.Client{}, err
		}
		in.Serial = serial
		user, client, err := s.Store.CreateClient(ctx, in)
		if errors.Is(err, repo.ErrSerialTaken) {
			continue
		}
		if errors.Is(err, repo.ErrInvalidCategory) {
			return models.User{}, models.Client{}, invalid("unknown tracking category")
		}
		return user, client, err
	}
	return models.User{}, models.Client{}, ErrSerialExhausted
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.Store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repo.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if err := s.Auth.ComparePassword(user.PasswordHash, password); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return Session{}, ErrAccountInactive
	}
	now := s.Now()
	if err := s.Store.TouchLastLogin(ctx, user.ID, now); err != nil {
		return Session{}, err
	}
	user.LastLogin = &now

	profile, err := s.profileFor(ctx, user)
	if err != nil {
		return Session{}, err
	}
	return s.session(profile)
}

func (s *Service) session(profile Profile) (Session, error) {
	token, err := s.Auth.GenerateToken(profile.User.ID, profile.User.Role, s.TokenTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresIn: int64(s.TokenTTL.Seconds()), Profile: profile}, nil
}

func (s *Service) Me(ctx context.Context, userID string) (Profile, error) {
	user, err := s.Store.GetUserByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	return s.profileFor(ctx, user)
}

func (s *Service) profileFor(ctx context.Context, user models.User) (Profile, error) {
	p := Profile{User: user}
	switch user.Role {
	case auth.RoleTherapist:
		t, err := s.therapist(ctx, user.ID)
		if err != nil {
			return Profile{}, err
		}
		p.Therapist = &t
	case auth.RoleClient:
		c, err := s.client(ctx, user.ID)
		if err != nil {
			return Profile{}, err
		}
		p.Client = &c
	}
	return p, nil
}

type CreateClientInput struct {
	Email        string
	Password     string
	CategoryIDs  []int
	InitialGoals []string
}

type CreatedClient struct {
	Client            models.Client `json:"client"`
	Email             string        `json:"email"`
	TemporaryPassword string        `json:"temporary_password,omitempty"`
}

// CreateClient is the therapist-side client intake. Without a password a
// temporary one is generated and returned once.
func (s *Service) CreateClient(ctx context.Context, therapistUserID string, in CreateClientInput) (CreatedClient, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return CreatedClient{}, err
	}
	password, temporary := in.Password, ""
	if password == "" {
		if password, err = temporaryPassword(); err != nil {
			return CreatedClient{}, err
		}
		temporary = password
	} else if len(password) < minPasswordLength {
		return CreatedClient{}, invalid("password must be at least %d characters", minPasswordLength)
	}
	var goals []string
	for _, g := range in.InitialGoals {
		if g = strings.TrimSpace(g); g != "" {
			goals = append(goals, g)
		}
	}

	therapist, err := s.therapist(ctx, therapistUserID)
	if err != nil {
		return CreatedClient{}, err
	}
	hash, err := s.Auth.HashPassword(password)
	if err != nil {
		return CreatedClient{}, err
	}
	today := s.today()
	_, client, err := s.createClient(ctx, repo.NewClient{
		Email:        email,
		PasswordHash: hash,
		TherapistID:  &therapist.ID,
		StartDate:    today,
		CategoryIDs:  in.CategoryIDs,
		InitialGoals: goals,
		GoalWeek:     report.MondayOf(today),
		WelcomeNote:  welcomeNote,
	})
	if err != nil {
		return CreatedClient{}, err
	}
	return CreatedClient{Client: client, Email: email, TemporaryPassword: temporary}, nil
}

func temporaryPassword() (string, error) {
	buf := make([]byte, 9)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
