package report

import (
	"time"

	"github.com/evanmaskanazi/socialworkboard/internal/models"
)

const (
	Excellent        = "Excellent"
	Good             = "Good"
	NeedsImprovement = "Needs Improvement"
	NotAvailable     = "N/A"
)

const daysPerWeek = 7

type thresholds struct {
	excellent float64
	good      float64
}

func (t thresholds) bucket(v float64) string {
	switch {
	case v >= t.excellent:
		return Excellent
	case v >= t.good:
		return Good
	default:
		return NeedsImprovement
	}
}

var (
	completionThresholds = thresholds{excellent: 0.80, good: 0.60}
	moodThresholds       = thresholds{excellent: 4, good: 3}
	medicationThresholds = thresholds{excellent: 4.5, good: 3.5}
)

func CompletionBucket(rate float64) string { return completionThresholds.bucket(rate) }

// EmotionalBucket also applies to the activity mean.
func EmotionalBucket(mean float64) string { return moodThresholds.bucket(mean) }

func MedicationBucket(mean float64) string { return medicationThresholds.bucket(mean) }

// Data is everything the compiler needs for one client-week.
type Data struct {
	ClientSerial string
	Week         Week
	Checkins     []models.DailyCheckin
	Goals        []models.WeeklyGoal
	Completions  []models.GoalCompletion
	Notes        []models.TherapistNote
}

type Metric struct {
	Mean   *float64 `json:"mean"`
	Days   int      `json:"days"`
	Bucket string   `json:"bucket"`
}

type GoalSummary struct {
	GoalID string   `json:"goal_id"`
	Text   string   `json:"goal_text"`
	Days   [7]*bool `json:"days"`
	Rate   float64  `json:"completion_rate"`
}

type Summary struct {
	Week              string        `json:"week"`
	WeekStart         string        `json:"week_start"`
	DaysCheckedIn     int           `json:"days_checked_in"`
	CompletionRate    float64       `json:"completion_rate"`
	CompletionBucket  string        `json:"completion_bucket"`
	Emotional         Metric        `json:"emotional"`
	Medication        Metric        `json:"medication"`
	Activity          Metric        `json:"activity"`
	Goals             []GoalSummary `json:"goals"`
	Notes             int           `json:"notes"`
	Missions          int           `json:"missions"`
	MissionsCompleted int           `json:"missions_completed"`
}

func Summarize(d Data) Summary {
	start := d.Week.Start()
	days := weekDays(start)
	byDate := checkinsByDate(d.Checkins)

	var emotional, medication, activity []int
	checkedIn := 0
	for _, day := range days {
		c, ok := byDate[dateKey(day)]
		if !ok {
			continue
		}
		checkedIn++
		if c.Emotional.Value != nil {
			emotional = append(emotional, *c.Emotional.Value)
		}
		if c.Medication.Value != nil {
			medication = append(medication, *c.Medication.Value)
		}
		if c.Activity.Value != nil {
			activity = append(activity, *c.Activity.Value)
		}
	}

	rate := float64(checkedIn) / daysPerWeek
	s := Summary{
		Week:             d.Week.String(),
		WeekStart:        dateKey(start),
		DaysCheckedIn:    checkedIn,
		CompletionRate:   rate,
		CompletionBucket: CompletionBucket(rate),
		Emotional:        metric(emotional, EmotionalBucket),
		Medication:       metric(medication, MedicationBucket),
		Activity:         metric(activity, EmotionalBucket),
		Goals:            GoalGrid(d.Goals, d.Completions, start),
	}
	for _, n := range d.Notes {
		s.Notes++
		if n.IsMission {
			s.Missions++
			if n.MissionCompleted {
				s.MissionsCompleted++
			}
		}
	}
	return s
}

func metric(values []int, bucket func(float64) string) Metric {
	if len(values) == 0 {
		return Metric{Bucket: NotAvailable}
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	mean := float64(sum) / float64(len(values))
	return Metric{Mean: &mean, Days: len(values), Bucket: bucket(mean)}
}

// GoalGrid lays out each goal's completion marks over the seven days from
// start. Days without a mark stay nil.
func GoalGrid(goals []models.WeeklyGoal, completions []models.GoalCompletion, start time.Time) []GoalSummary {
	days := weekDays(start)
	marks := make(map[string]map[string]bool, len(goals))
	for _, c := range completions {
		if marks[c.GoalID] == nil {
			marks[c.GoalID] = make(map[string]bool)
		}
		marks[c.GoalID][dateKey(c.Date)] = c.Completed
	}
	out := make([]GoalSummary, 0, len(goals))
	for _, g := range goals {
		gs := GoalSummary{GoalID: g.ID, Text: g.Text}
		done := 0
		for i, day := range days {
			completed, ok := marks[g.ID][dateKey(day)]
			if !ok {
				continue
			}
			v := completed
			gs.Days[i] = &v
			if completed {
				done++
			}
		}
		gs.Rate = float64(done) / daysPerWeek
		out = append(out, gs)
	}
	return out
}

func weekDays(start time.Time) []time.Time {
	days := make([]time.Time, daysPerWeek)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

func checkinsByDate(checkins []models.DailyCheckin) map[string]models.DailyCheckin {
	out := make(map[string]models.DailyCheckin, len(checkins))
	for _, c := range checkins {
		out[dateKey(c.Date)] = c
	}
	return out
}
