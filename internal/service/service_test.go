package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/evanmaskanazi/socialworkboard/internal/auth"
	"github.com/evanmaskanazi/socialworkboard/internal/mail"
	"github.com/evanmaskanazi/socialworkboard/internal/models"
	"github.com/evanmaskanazi/socialworkboard/internal/queue"
	"github.com/evanmaskanazi/socialworkboard/internal/report"
	"github.com/evanmaskanazi/socialworkboard/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	therapistUser = "user-therapist-1"
	otherUser     = "user-therapist-2"
	clientUser    = "user-client-1"
	ownClientID   = "0b7c1a43-3f7e-4f8e-9d1c-6a2f5b0e9a11"
	otherClientID = "5d0f8a2e-1c44-4b6f-8e3a-9f7d2c1b0e22"
	missingID     = "9a1b2c3d-4e5f-4a6b-8c7d-0e1f2a3b4c5d"
)

// memStore implements the parts of Store these tests reach. Anything else
// panics through the nil embedded interface.
type memStore struct {
	Store

	users      map[string]models.User
	therapists map[string]models.Therapist
	clients    map[string]models.Client
	checkins   []models.DailyCheckin
	submitted  []repo.CheckinWrite
	reports    [][]byte
	responses  []models.CategoryResponse

	lookups       int
	createClients int
	createErr     func(call int) error
}

func newMemStore() *memStore {
	t1, t2 := "therapist-1", "therapist-2"
	return &memStore{
		users: map[string]models.User{
			therapistUser: {ID: therapistUser, Email: "dr.one@example.com", Role: auth.RoleTherapist, IsActive: true},
			otherUser:     {ID: otherUser, Email: "dr.two@example.com", Role: auth.RoleTherapist, IsActive: true},
			clientUser:    {ID: clientUser, Email: "client@example.com", Role: auth.RoleClient, IsActive: true},
		},
		therapists: map[string]models.Therapist{
			therapistUser: {ID: t1, UserID: therapistUser, Name: "Dr One"},
			otherUser:     {ID: t2, UserID: otherUser, Name: "Dr Two"},
		},
		clients: map[string]models.Client{
			ownClientID:   {ID: ownClientID, UserID: clientUser, Serial: "C12345678", TherapistID: &t1, IsActive: true},
			otherClientID: {ID: otherClientID, UserID: "user-client-2", Serial: "C87654321", TherapistID: &t2, IsActive: true},
		},
	}
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, repo.ErrNotFound
}

func (m *memStore) GetUserByID(_ context.Context, id string) (models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return models.User{}, repo.ErrNotFound
	}
	return u, nil
}

func (m *memStore) TouchLastLogin(context.Context, string, time.Time) error { return nil }

func (m *memStore) GetTherapistByUserID(_ context.Context, userID string) (models.Therapist, error) {
	m.lookups++
	t, ok := m.therapists[userID]
	if !ok {
		return models.Therapist{}, repo.ErrNotFound
	}
	return t, nil
}

func (m *memStore) GetClientByUserID(_ context.Context, userID string) (models.Client, error) {
	m.lookups++
	for _, c := range m.clients {
		if c.UserID == userID {
			return c, nil
		}
	}
	return models.Client{}, repo.ErrNotFound
}

func (m *memStore) GetClientForTherapist(_ context.Context, therapistID, clientID string) (models.Client, error) {
	m.lookups++
	c, ok := m.clients[clientID]
	if !ok || c.TherapistID == nil || *c.TherapistID != therapistID {
		return models.Client{}, repo.ErrNotFound
	}
	return c, nil
}

func (m *memStore) CreateClient(_ context.Context, in repo.NewClient) (models.User, models.Client, error) {
	m.createClients++
	if m.createErr != nil {
		if err := m.createErr(m.createClients); err != nil {
			return models.User{}, models.Client{}, err
		}
	}
	c := models.Client{ID: missingID, Serial: in.Serial, TherapistID: in.TherapistID, StartDate: in.StartDate, IsActive: true}
	return models.User{ID: "user-new-client", Email: in.Email, Role: auth.RoleClient, IsActive: true}, c, nil
}

func (m *memStore) SubmitCheckin(_ context.Context, in repo.CheckinWrite) (string, error) {
	m.submitted = append(m.submitted, in)
	m.checkins = append(m.checkins, models.DailyCheckin{
		ID: "checkin-1", ClientID: in.ClientID, Date: in.Date, Time: in.Time,
		Emotional: in.Emotional, Medication: in.Medication, Activity: in.Activity,
	})
	return "checkin-1", nil
}

func (m *memStore) GetCheckin(_ context.Context, clientID string, date time.Time) (models.DailyCheckin, error) {
	for i := len(m.checkins) - 1; i >= 0; i-- {
		c := m.checkins[i]
		if c.ClientID == clientID && c.Date.Equal(date) {
			return c, nil
		}
	}
	return models.DailyCheckin{}, repo.ErrNotFound
}

func (m *memStore) ListCheckins(_ context.Context, clientID string, from, to time.Time) ([]models.DailyCheckin, error) {
	var out []models.DailyCheckin
	for _, c := range m.checkins {
		if c.ClientID == clientID && !c.Date.Before(from) && !c.Date.After(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) ListGoals(context.Context, string, time.Time) ([]models.WeeklyGoal, error) {
	return nil, nil
}

func (m *memStore) ListCompletions(context.Context, string, time.Time, time.Time) ([]models.GoalCompletion, error) {
	return nil, nil
}

func (m *memStore) ListNotes(context.Context, string, time.Time, time.Time) ([]models.TherapistNote, error) {
	return nil, nil
}

func (m *memStore) LogReport(_ context.Context, clientID, therapistID, reportType string, weekStart time.Time, data []byte) (models.Report, error) {
	m.reports = append(m.reports, data)
	return models.Report{ClientID: clientID, TherapistID: therapistID, Type: reportType, WeekStart: weekStart, Data: data}, nil
}

func (m *memStore) ClientCategories(context.Context, string) ([]models.TrackingCategory, error) {
	return []models.TrackingCategory{{ID: 1, Name: "Sleep", ScaleMin: 1, ScaleMax: 5}}, nil
}

func (m *memStore) ListCategoryResponses(_ context.Context, clientID string, from, to time.Time) ([]models.CategoryResponse, error) {
	var out []models.CategoryResponse
	for _, r := range m.responses {
		if r.ClientID == clientID && !r.Date.Before(from) && !r.Date.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) PendingMissions(context.Context, string) ([]models.TherapistNote, error) {
	return nil, nil
}

func (m *memStore) ListReminders(context.Context, string) ([]models.Reminder, error) {
	return nil, nil
}

type fakeMailer struct{ sent []mail.Message }

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}

type fakeQueue struct{ jobs []queue.ReportJob }

func (f *fakeQueue) EnqueueReport(_ context.Context, job queue.ReportJob) error {
	f.jobs = append(f.jobs, job)
	return nil
}

// prefixNotes marks ciphertext so tests can see what reached the store.
type prefixNotes struct{}

func (prefixNotes) Encrypt(_ context.Context, s string) (string, error) {
	if s == "" {
		return "", nil
	}
	return "enc:" + s, nil
}

func (prefixNotes) Decrypt(_ context.Context, s string) (string, error) {
	if s == "" {
		return "", nil
	}
	if !strings.HasPrefix(s, "enc:") {
		return "", errors.New("not encrypted")
	}
	return strings.TrimPrefix(s, "enc:"), nil
}

var fixedNow = time.Date(2024, 1, 3, 10, 30, 0, 0, time.UTC)

func newTestService(store *memStore) *Service {
	svc := New(store, auth.NewManager("test-secret"))
	svc.Now = func() time.Time { return fixedNow }
	return svc
}

func isValidation(t *testing.T, err error) {
	t.Helper()
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
}

func TestNewSerialShape(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		s, err := NewSerial()
		require.NoError(t, err)
		assert.True(t, ValidSerial(s), s)
		seen[s] = true
	}
	assert.GreaterOrEqual(t, len(seen), 199)
	assert.False(t, ValidSerial("C1234567"))
	assert.False(t, ValidSerial("c12345678"))
}

func TestCreateClientRetriesSerialCollisions(t *testing.T) {
	store := newMemStore()
	store.createErr = func(call int) error {
		if call <= 3 {
			return repo.ErrSerialTaken
		}
		return nil
	}
	svc := newTestService(store)
	serials := []string{"C00000001", "C00000002", "C00000003", "C00000004"}
	svc.Serials = func() (string, error) {
		s := serials[0]
		serials = serials[1:]
		return s, nil
	}

	created, err := svc.CreateClient(context.Background(), therapistUser, CreateClientInput{Email: "New@Example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, 4, store.createClients)
	assert.Equal(t, "C00000004", created.Client.Serial)
	assert.Equal(t, "new@example.com", created.Email)
	assert.Empty(t, created.TemporaryPassword)
}

func TestCreateClientGivesUpAfterMaxAttempts(t *testing.T) {
	store := newMemStore()
	store.createErr = func(int) error { return repo.ErrSerialTaken }
	svc := newTestService(store)
	svc.Serials = func() (string, error) { return "C00000001", nil }

	_, err := svc.CreateClient(context.Background(), therapistUser, CreateClientInput{Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrSerialExhausted)
	assert.Equal(t, maxSerialAttempts, store.createClients)
}

func TestCreateClientGeneratesTemporaryPassword(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	created, err := svc.CreateClient(context.Background(), therapistUser, CreateClientInput{Email: "b@example.com"})
	require.NoError(t, err)
	assert.Len(t, created.TemporaryPassword, 12)
	assert.True(t, ValidSerial(created.Client.Serial))
}

func TestSubmitCheckinValidatesBeforeWrite(t *testing.T) {
	cases := map[string]CheckinInput{
		"out of range": {Emotional: RatingInput{Value: "6"}},
		"zero":         {Activity: RatingInput{Value: "0"}},
		"not a number": {Medication: RatingInput{Value: "lots"}},
		"bad date":     {Date: "03/01/2024"},
		"bad category": {Categories: map[string]string{"x": "3"}},
		"bad goal id":  {Goals: map[string]bool{"goal-1": true}},
		"long note":    {Emotional: RatingInput{Value: "3", Notes: strings.Repeat("a", maxNoteLength+1)}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			store := newMemStore()
			svc := newTestService(store)
			_, err := svc.SubmitCheckin(context.Background(), clientUser, in)
			isValidation(t, err)
			assert.Empty(t, store.submitted)
			assert.Zero(t, store.lookups)
		})
	}
}

func TestSubmitCheckinEncryptsNotes(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	svc.Notes = prefixNotes{}

	got, err := svc.SubmitCheckin(context.Background(), clientUser, CheckinInput{
		Emotional:  RatingInput{Value: " 4 ", Notes: "calm"},
		Medication: RatingInput{Value: "5"},
	})
	require.NoError(t, err)
	require.Len(t, store.submitted, 1)

	w := store.submitted[0]
	assert.Equal(t, ownClientID, w.ClientID)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), w.Date)
	assert.Equal(t, "enc:calm", w.Emotional.Notes)
	assert.Nil(t, w.Activity.Value)

	assert.Equal(t, "calm", got.Emotional.Notes)
	require.NotNil(t, got.Emotional.Value)
	assert.Equal(t, 4, *got.Emotional.Value)
}

func TestClientDetailsUniformNotFound(t *testing.T) {
	svc := newTestService(newMemStore())
	for _, id := range []string{"not-a-uuid", missingID, otherClientID} {
		_, err := svc.ClientDetails(context.Background(), therapistUser, id)
		assert.ErrorIs(t, err, ErrClientNotFound, id)
	}
}

func TestAddGoalForeignClient(t *testing.T) {
	svc := newTestService(newMemStore())
	_, err := svc.AddGoal(context.Background(), therapistUser, otherClientID, "walk daily", nil)
	assert.ErrorIs(t, err, ErrClientNotFound)

	_, err = svc.AddGoal(context.Background(), therapistUser, ownClientID, "   ", nil)
	isValidation(t, err)
}

func TestGenerateReportRejectsBadWeekFirst(t *testing.T) {
	for _, week := range []string{"2024-07", "2024-W0", "2024-W54", "W07-2024", ""} {
		store := newMemStore()
		svc := newTestService(store)
		_, err := svc.GenerateReport(context.Background(), therapistUser, ownClientID, week)
		isValidation(t, err)
		assert.Zero(t, store.lookups, week)
	}
}

func TestGenerateReportEmptyWeek(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	file, err := svc.GenerateReport(context.Background(), therapistUser, ownClientID, "2024-W1")
	require.NoError(t, err)
	assert.Equal(t, "report_C12345678_2024-W01.xlsx", file.Filename)
	assert.NotEmpty(t, file.Content)
	assert.Equal(t, 0, file.Summary.DaysCheckedIn)
	assert.Equal(t, report.NeedsImprovement, file.Summary.CompletionBucket)
	assert.Equal(t, report.NotAvailable, file.Summary.Emotional.Bucket)
	assert.Len(t, store.reports, 1)
}

func TestGenerateReportCountsWeekCheckins(t *testing.T) {
	store := newMemStore()
	v := 5
	for _, day := range []int{1, 2, 3, 8} {
		store.checkins = append(store.checkins, models.DailyCheckin{
			ClientID:  ownClientID,
			Date:      time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
			Emotional: models.Rating{Value: &v, Notes: "enc:ok"},
		})
	}
	svc := newTestService(store)
	svc.Notes = prefixNotes{}

	file, err := svc.GenerateReport(context.Background(), therapistUser, ownClientID, "2024-W01")
	require.NoError(t, err)
	assert.Equal(t, 3, file.Summary.DaysCheckedIn)
	require.NotNil(t, file.Summary.Emotional.Mean)
	assert.Equal(t, 5.0, *file.Summary.Emotional.Mean)
}

func TestGenerateReportForeignClient(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	_, err := svc.GenerateReport(context.Background(), therapistUser, otherClientID, "2024-W01")
	assert.ErrorIs(t, err, ErrClientNotFound)
	assert.Empty(t, store.reports)
}

func TestEmailReportDirect(t *testing.T) {
	store := newMemStore()
	mailer := &fakeMailer{}
	svc := newTestService(store)
	svc.Mailer = mailer

	queued, err := svc.EmailReport(context.Background(), therapistUser, ownClientID, "2024-W01", "")
	require.NoError(t, err)
	assert.False(t, queued)
	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "dr.one@example.com", msg.To)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "report_C12345678_2024-W01.xlsx", msg.Attachments[0].Filename)
	assert.Equal(t, report.ContentType, msg.Attachments[0].ContentType)
}

func TestEmailReportQueued(t *testing.T) {
	store := newMemStore()
	mailer := &fakeMailer{}
	q := &fakeQueue{}
	svc := newTestService(store)
	svc.Mailer = mailer
	svc.Queue = q

	queued, err := svc.EmailReport(context.Background(), therapistUser, ownClientID, "2024-W1", "Supervisor@Example.com")
	require.NoError(t, err)
	assert.True(t, queued)
	assert.Empty(t, mailer.sent)
	assert.Empty(t, store.reports)
	require.Len(t, q.jobs, 1)
	assert.Equal(t, queue.ReportJob{
		ClientID:        ownClientID,
		TherapistUserID: therapistUser,
		Week:            "2024-W01",
		Recipient:       "supervisor@example.com",
		RequestedAt:     fixedNow,
	}, q.jobs[0])

	require.NoError(t, svc.ProcessReportJob(context.Background(), q.jobs[0]))
	assert.Len(t, mailer.sent, 1)
}

func TestEmailReportErrors(t *testing.T) {
	svc := newTestService(newMemStore())
	_, err := svc.EmailReport(context.Background(), therapistUser, ownClientID, "2024-W01", "")
	assert.ErrorIs(t, err, ErrMailDisabled)

	q := &fakeQueue{}
	svc.Mailer = &fakeMailer{}
	svc.Queue = q
	_, err = svc.EmailReport(context.Background(), therapistUser, otherClientID, "2024-W01", "")
	assert.ErrorIs(t, err, ErrClientNotFound)
	_, err = svc.EmailReport(context.Background(), therapistUser, ownClientID, "2024-W01", "not an address")
	isValidation(t, err)
	assert.Empty(t, q.jobs)
}

func TestProcessReportJobDropsForeignClient(t *testing.T) {
	mailer := &fakeMailer{}
	svc := newTestService(newMemStore())
	svc.Mailer = mailer
	err := svc.ProcessReportJob(context.Background(), queue.ReportJob{
		ClientID: otherClientID, TherapistUserID: therapistUser, Week: "2024-W01", Recipient: "x@example.com",
	})
	assert.NoError(t, err)
	assert.Empty(t, mailer.sent)
}

func TestLogin(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	hash, err := svc.Auth.HashPassword("secret1")
	require.NoError(t, err)
	u := store.users[therapistUser]
	u.PasswordHash = hash
	store.users[therapistUser] = u

	session, err := svc.Login(context.Background(), " DR.ONE@example.com ", "secret1")
	require.NoError(t, err)
	require.NotNil(t, session.Profile.Therapist)
	claims, err := svc.Auth.ParseToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, therapistUser, claims.UserID)
	assert.Equal(t, auth.RoleTherapist, claims.Role)

	_, err = svc.Login(context.Background(), "dr.one@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(context.Background(), "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	u.IsActive = false
	store.users[therapistUser] = u
	_, err = svc.Login(context.Background(), "dr.one@example.com", "secret1")
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(newMemStore())
	cases := []RegisterInput{
		{Email: "bad", Password: "secret1", Role: auth.RoleClient},
		{Email: "a@example.com", Password: "123", Role: auth.RoleClient},
		{Email: "a@example.com", Password: "secret1", Role: "admin"},
		{Email: "a@example.com", Password: "secret1", Role: auth.RoleTherapist, Name: "Dr"},
	}
	for _, in := range cases {
		_, err := svc.Register(context.Background(), in)
		isValidation(t, err)
	}
}

func TestAddReminderValidatesTime(t *testing.T) {
	svc := newTestService(newMemStore())
	for _, v := range []string{"25:00", "9am", ""} {
		_, err := svc.AddReminder(context.Background(), clientUser, "checkin", v)
		isValidation(t, err)
	}
}

func TestClientDashboardShowsToday(t *testing.T) {
	store := newMemStore()
	today := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	store.checkins = []models.DailyCheckin{{ClientID: ownClientID, Date: today, Emotional: models.Rating{Notes: "enc:fine"}}}
	store.responses = []models.CategoryResponse{
		{ClientID: ownClientID, CategoryID: 1, Date: today, Value: 4},
		{ClientID: ownClientID, CategoryID: 1, Date: today.AddDate(0, 0, -1), Value: 2},
	}
	svc := newTestService(store)
	svc.Notes = prefixNotes{}

	d, err := svc.ClientDashboard(context.Background(), clientUser)
	require.NoError(t, err)
	assert.Equal(t, today, d.Today)
	require.NotNil(t, d.TodayCheckin)
	assert.Equal(t, "fine", d.TodayCheckin.Emotional.Notes)
	assert.Equal(t, map[int]int{1: 4}, d.TodayResponses)
	assert.Len(t, d.Categories, 1)
}

func TestClientProgressCoversThirtyDays(t *testing.T) {
	store := newMemStore()
	today := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	store.checkins = []models.DailyCheckin{
		{ClientID: ownClientID, Date: today.AddDate(0, 0, -29)},
		{ClientID: ownClientID, Date: today.AddDate(0, 0, -30)},
		{ClientID: otherClientID, Date: today},
	}
	svc := newTestService(store)

	p, err := svc.ClientProgress(context.Background(), clientUser)
	require.NoError(t, err)
	assert.Equal(t, today, p.To)
	assert.Equal(t, today.AddDate(0, 0, -29), p.From)
	require.Len(t, p.Checkins, 1)
	assert.Equal(t, p.From, p.Checkins[0].Date)

	_, err = svc.ClientProgress(context.Background(), therapistUser)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestRegisterClientSignsIn(t *testing.T) {
	svc := newTestService(newMemStore())
	session, err := svc.Register(context.Background(), RegisterInput{Email: " New@Example.com", Password: "secret1", Role: auth.RoleClient})
	require.NoError(t, err)
	require.NotNil(t, session.Profile.Client)
	assert.Equal(t, "new@example.com", session.Profile.User.Email)
	assert.Equal(t, int64(24*60*60), session.ExpiresIn)

	claims, err := svc.Auth.ParseToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "user-new-client", claims.UserID)
	assert.Equal(t, auth.RoleClient, claims.Role)
}

func deactivate(store *memStore, userID string) {
	u := store.users[userID]
	u.IsActive = false
	store.users[userID] = u
}

func TestDeactivatedClientIsLockedOut(t *testing.T) {
	store := newMemStore()
	deactivate(store, clientUser)
	svc := newTestService(store)
	ctx := context.Background()

	_, err := svc.SubmitCheckin(ctx, clientUser, CheckinInput{Emotional: RatingInput{Value: "4"}})
	assert.ErrorIs(t, err, ErrAccountInactive)
	assert.Empty(t, store.submitted)

	_, err = svc.ClientDashboard(ctx, clientUser)
	assert.ErrorIs(t, err, ErrAccountInactive)
	_, err = svc.Me(ctx, clientUser)
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestDeactivatedTherapistIsLockedOut(t *testing.T) {
	store := newMemStore()
	deactivate(store, therapistUser)
	svc := newTestService(store)
	mailer := &fakeMailer{}
	svc.Mailer = mailer
	ctx := context.Background()

	_, err := svc.ClientDetails(ctx, therapistUser, ownClientID)
	assert.ErrorIs(t, err, ErrAccountInactive)
	_, err = svc.GenerateReport(ctx, therapistUser, ownClientID, "2024-W01")
	assert.ErrorIs(t, err, ErrAccountInactive)
	assert.Empty(t, store.reports)

	// queued jobs for a deactivated therapist are dropped, not retried
	err = svc.ProcessReportJob(ctx, queue.ReportJob{
		ClientID: ownClientID, TherapistUserID: therapistUser, Week: "2024-W01", Recipient: "dr.one@example.com",
	})
	assert.NoError(t, err)
	assert.Empty(t, mailer.sent)
}
