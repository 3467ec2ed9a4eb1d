package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/evanmaskanazi/socialworkboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

func TestWeekStartPinnedDates(t *testing.T) {
	assert.Equal(t, date(2024, time.January, 1), WeekStart(2024, 1))
	assert.Equal(t, date(2023, time.January, 2), WeekStart(2023, 1))
	assert.Equal(t, date(2024, time.January, 8), WeekStart(2024, 2))
	assert.Equal(t, date(2023, time.March, 6), WeekStart(2023, 10))
	assert.Equal(t, date(2022, time.January, 3), WeekStart(2022, 1))
}

func TestWeekStartIsMonday(t *testing.T) {
	for year := 2015; year <= 2030; year++ {
		for week := 1; week <= 53; week++ {
			start := WeekStart(year, week)
			require.Equal(t, time.Monday, start.Weekday(), "%d-W%d", year, week)
		}
	}
}

func TestParseWeek(t *testing.T) {
	w, err := ParseWeek("2024-W1")
	require.NoError(t, err)
	assert.Equal(t, Week{Year: 2024, Number: 1}, w)
	assert.Equal(t, "2024-W01", w.String())
	assert.Equal(t, date(2024, time.January, 7), w.End())

	w, err = ParseWeek("2023-W52")
	require.NoError(t, err)
	assert.Equal(t, 52, w.Number)

	for _, bad := range []string{"", "2024", "2024-01", "2024-W0", "2024-W54", "2024-w01", "24-W01", "2024-W001", " 2024-W01"} {
		_, err := ParseWeek(bad)
		assert.ErrorIs(t, err, ErrInvalidWeek, bad)
	}
}

func TestMondayOf(t *testing.T) {
	assert.Equal(t, date(2024, time.January, 1), MondayOf(date(2024, time.January, 1)))
	assert.Equal(t, date(2024, time.January, 1), MondayOf(time.Date(2024, time.January, 7, 23, 30, 0, 0, time.UTC)))
	assert.Equal(t, date(2024, time.January, 8), MondayOf(date(2024, time.January, 10)))
}

func TestCompletionBucketBoundaries(t *testing.T) {
	assert.Equal(t, Excellent, CompletionBucket(0.80))
	assert.Equal(t, Excellent, CompletionBucket(1))
	assert.Equal(t, Good, CompletionBucket(0.7999))
	assert.Equal(t, Good, CompletionBucket(0.60))
	assert.Equal(t, NeedsImprovement, CompletionBucket(0.5999))
	assert.Equal(t, NeedsImprovement, CompletionBucket(0))
}

func TestRatingBuckets(t *testing.T) {
	assert.Equal(t, Excellent, EmotionalBucket(4))
	assert.Equal(t, Good, EmotionalBucket(3))
	assert.Equal(t, NeedsImprovement, EmotionalBucket(2.99))

	assert.Equal(t, Excellent, MedicationBucket(4.5))
	assert.Equal(t, Good, MedicationBucket(4.4))
	assert.Equal(t, Good, MedicationBucket(3.5))
	assert.Equal(t, NeedsImprovement, MedicationBucket(3.49))
}

func sampleData() Data {
	week := Week{Year: 2024, Number: 1}
	return Data{
		ClientSerial: "C12345678",
		Week:         week,
		Checkins: []models.DailyCheckin{
			{
				Date:       date(2024, time.January, 1),
				Time:       time.Date(2024, time.January, 1, 9, 15, 0, 0, time.UTC),
				Emotional:  models.Rating{Value: intPtr(4), Notes: "calm"},
				Medication: models.Rating{Value: intPtr(5)},
				Activity:   models.Rating{Value: intPtr(2)},
			},
			{
				Date:      date(2024, time.January, 3),
				Time:      time.Date(2024, time.January, 3, 20, 0, 0, 0, time.UTC),
				Emotional: models.Rating{Value: intPtr(3)},
			},
			{
				// outside the week
				Date:      date(2024, time.January, 8),
				Emotional: models.Rating{Value: intPtr(1)},
			},
		},
		Goals: []models.WeeklyGoal{{ID: "g1", Text: "Walk 20 minutes", WeekStart: week.Start()}},
		Completions: []models.GoalCompletion{
			{GoalID: "g1", Date: date(2024, time.January, 1), Completed: true},
			{GoalID: "g1", Date: date(2024, time.January, 2), Completed: false},
			{GoalID: "g1", Date: date(2024, time.January, 3), Completed: true},
		},
		Notes: []models.TherapistNote{
			{Type: "general", Content: "second", CreatedAt: time.Date(2024, time.January, 4, 10, 0, 0, 0, time.UTC)},
			{Type: "mission", Content: "first", IsMission: true, CreatedAt: time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC)},
		},
	}
}

func TestSummarizeMeansSkipMissingDays(t *testing.T) {
	s := Summarize(sampleData())

	assert.Equal(t, 2, s.DaysCheckedIn)
	assert.InDelta(t, 2.0/7, s.CompletionRate, 1e-9)
	assert.Equal(t, NeedsImprovement, s.CompletionBucket)

	require.NotNil(t, s.Emotional.Mean)
	assert.InDelta(t, 3.5, *s.Emotional.Mean, 1e-9)
	assert.Equal(t, 2, s.Emotional.Days)
	assert.Equal(t, Good, s.Emotional.Bucket)

	require.NotNil(t, s.Medication.Mean)
	assert.InDelta(t, 5.0, *s.Medication.Mean, 1e-9)
	assert.Equal(t, 1, s.Medication.Days)
	assert.Equal(t, Excellent, s.Medication.Bucket)

	require.NotNil(t, s.Activity.Mean)
	assert.Equal(t, NeedsImprovement, s.Activity.Bucket)

	require.Len(t, s.Goals, 1)
	g := s.Goals[0]
	require.NotNil(t, g.Days[0])
	assert.True(t, *g.Days[0])
	require.NotNil(t, g.Days[1])
	assert.False(t, *g.Days[1])
	assert.Nil(t, g.Days[3])
	assert.InDelta(t, 2.0/7, g.Rate, 1e-9)

	assert.Equal(t, 2, s.Notes)
	assert.Equal(t, 1, s.Missions)
	assert.Equal(t, 0, s.MissionsCompleted)
}

func TestSummarizeNoCheckins(t *testing.T) {
	s := Summarize(Data{Week: Week{Year: 2024, Number: 5}})
	assert.Equal(t, 0, s.DaysCheckedIn)
	assert.Nil(t, s.Emotional.Mean)
	assert.Equal(t, NotAvailable, s.Emotional.Bucket)
	assert.Empty(t, s.Goals)
}

func openWorkbook(t *testing.T, d Data) *excelize.File {
	t.Helper()
	raw, _, err := Render(d)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWorkbookSheetsAndRows(t *testing.T) {
	f := openWorkbook(t, sampleData())
	assert.Equal(t, Sheets, f.GetSheetList())

	rows, err := f.GetRows(SheetCheckins)
	require.NoError(t, err)
	require.Len(t, rows, 8)
	assert.Equal(t, "Checked In", rows[0][9])
	assert.Equal(t, []string{"2024-01-01", "Monday", "09:15", "4", "calm", "5", "", "2", "", "Yes"}, rows[1])
	assert.Equal(t, "-", rows[2][2])
	assert.Equal(t, "No", rows[2][9])

	rows, err = f.GetRows(SheetGoals)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Walk 20 minutes", "✓", "✗", "✓", "", "", "", "", "29%"}, rows[1])

	rows, err = f.GetRows(SheetNotes)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "first", rows[1][2])
	assert.Equal(t, "Pending", rows[1][4])
	assert.Equal(t, "second", rows[2][2])
	assert.Equal(t, "-", rows[2][4])

	rows, err = f.GetRows(SheetSummary)
	require.NoError(t, err)
	assert.Equal(t, []string{"Check-in Completion", "2/7 (29%)", NeedsImprovement}, rows[3])
	assert.Equal(t, []string{"Average Emotional", "3.50", Good}, rows[4])
}

func TestWorkbookKeepsEmptySections(t *testing.T) {
	f := openWorkbook(t, Data{ClientSerial: "C00000001", Week: Week{Year: 2023, Number: 1}})
	assert.Equal(t, Sheets, f.GetSheetList())

	goals, err := f.GetRows(SheetGoals)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, "Goal", goals[0][0])

	notes, err := f.GetRows(SheetNotes)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Date", notes[0][0])

	checkins, err := f.GetRows(SheetCheckins)
	require.NoError(t, err)
	require.Len(t, checkins, 8)
	assert.Equal(t, "2023-01-02", checkins[1][0])
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "report_C12345678_2024-W03.xlsx", Filename("C12345678", Week{Year: 2024, Number: 3}))
}
