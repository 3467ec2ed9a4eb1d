package models

import "time"

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login"`
}

type Therapist struct {
	ID              string   `json:"id"`
	UserID          string   `json:"user_id"`
	LicenseNumber   string   `json:"license_number"`
	Name            string   `json:"name"`
	Organization    string   `json:"organization"`
	Specializations []string `json:"specializations"`
}

type Client struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Serial      string    `json:"client_serial"`
	TherapistID *string   `json:"therapist_id"`
	StartDate   time.Time `json:"start_date"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type TrackingCategory struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ScaleMin    int    `json:"scale_min"`
	ScaleMax    int    `json:"scale_max"`
	IsDefault   bool   `json:"is_default"`
}

type ClientTrackingPlan struct {
	ClientID   string    `json:"client_id"`
	CategoryID int       `json:"category_id"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// Rating is one rated field of a daily check-in.
type Rating struct {
	Value *int   `json:"value"`
	Notes string `json:"notes"`
}

type DailyCheckin struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"client_id"`
	Date       time.Time `json:"checkin_date"`
	Time       time.Time `json:"checkin_time"`
	Emotional  Rating    `json:"emotional"`
	Medication Rating    `json:"medication"`
	Activity   Rating    `json:"activity"`
	CreatedAt  time.Time `json:"created_at"`
}

type CategoryResponse struct {
	ClientID   string    `json:"client_id"`
	CategoryID int       `json:"category_id"`
	Date       time.Time `json:"response_date"`
	Value      int       `json:"value"`
	Notes      string    `json:"notes"`
}

type WeeklyGoal struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"client_id"`
	TherapistID string    `json:"therapist_id"`
	Text        string    `json:"goal_text"`
	WeekStart   time.Time `json:"week_start"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type GoalCompletion struct {
	GoalID    string    `json:"goal_id"`
	Date      time.Time `json:"completion_date"`
	Completed bool      `json:"completed"`
	Notes     string    `json:"notes"`
}

type TherapistNote struct {
	ID               string     `json:"id"`
	ClientID         string     `json:"client_id"`
	TherapistID      string     `json:"therapist_id"`
	Type             string     `json:"note_type"`
	Content          string     `json:"content"`
	IsMission        bool       `json:"is_mission"`
	MissionCompleted bool       `json:"mission_completed"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at"`
}

type Reminder struct {
	ID        string     `json:"id"`
	ClientID  string     `json:"client_id"`
	Type      string     `json:"reminder_type"`
	TimeOfDay string     `json:"reminder_time"`
	IsActive  bool       `json:"is_active"`
	LastSent  *time.Time `json:"last_sent"`
}

type Report struct {
	ID          string    `json:"id"`
	ClientID    string    `json:"client_id"`
	TherapistID string    `json:"therapist_id"`
	Type        string    `json:"report_type"`
	WeekStart   time.Time `json:"week_start"`
	GeneratedAt time.Time `json:"generated_at"`
	Data        []byte    `json:"data"`
}
