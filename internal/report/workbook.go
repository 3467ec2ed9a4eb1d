package report

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"
)

// Sheet names in workbook order. Consumers rely on both the names and the
// order, so every sheet is written even when it has no rows.
const (
	SheetCheckins = "Daily Check-ins"
	SheetSummary  = "Summary"
	SheetGoals    = "Goals"
	SheetNotes    = "Notes"
)

var Sheets = []string{SheetCheckins, SheetSummary, SheetGoals, SheetNotes}

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var (
	checkinHeader = []interface{}{"Date", "Day", "Time", "Emotional", "Emotional Notes", "Medication", "Medication Notes", "Activity", "Activity Notes", "Checked In"}
	summaryHeader = []interface{}{"Metric", "Value", "Assessment"}
	goalHeader    = []interface{}{"Goal", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun", "Completion %"}
	noteHeader    = []interface{}{"Date", "Type", "Content", "Mission", "Status"}
)

func Filename(serial string, week Week) string {
	return fmt.Sprintf("report_%s_%s.xlsx", serial, week)
}

// Build compiles d into a four-sheet workbook. The caller owns the returned
// file and must Close it.
func Build(d Data) (*excelize.File, Summary, error) {
	summary := Summarize(d)
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetCheckins); err != nil {
		f.Close()
		return nil, summary, err
	}
	for _, name := range Sheets[1:] {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, summary, err
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, summary, err
	}

	w := &sheetWriter{f: f, header: header}
	w.checkins(d)
	w.summary(d, summary)
	w.goals(summary)
	w.notes(d)
	if w.err != nil {
		f.Close()
		return nil, summary, w.err
	}
	f.SetActiveSheet(0)
	return f, summary, nil
}

// Render is Build followed by serialisation to xlsx bytes.
func Render(d Data) ([]byte, Summary, error) {
	f, summary, err := Build(d)
	if err != nil {
		return nil, summary, err
	}
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, summary, err
	}
	return buf.Bytes(), summary, nil
}

type sheetWriter struct {
	f      *excelize.File
	header int
	err    error
}

func (w *sheetWriter) row(sheet string, row int, values []interface{}) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetSheetRow(sheet, cell, &values)
}

func (w *sheetWriter) headerRow(sheet string, values []interface{}, width float64) {
	w.row(sheet, 1, values)
	if w.err != nil {
		return
	}
	last, err := excelize.ColumnNumberToName(len(values))
	if err != nil {
		w.err = err
		return
	}
	if w.err = w.f.SetCellStyle(sheet, "A1", last+"1", w.header); w.err != nil {
		return
	}
	w.err = w.f.SetColWidth(sheet, "A", last, width)
}

func (w *sheetWriter) checkins(d Data) {
	w.headerRow(SheetCheckins, checkinHeader, 16)
	byDate := checkinsByDate(d.Checkins)
	for i, day := range weekDays(d.Week.Start()) {
		values := []interface{}{dateKey(day), day.Weekday().String()}
		c, ok := byDate[dateKey(day)]
		if !ok {
			values = append(values, "-", "", "", "", "", "", "", "No")
			w.row(SheetCheckins, i+2, values)
			continue
		}
		values = append(values,
			c.Time.Format("15:04"),
			ratingValue(c.Emotional.Value), c.Emotional.Notes,
			ratingValue(c.Medication.Value), c.Medication.Notes,
			ratingValue(c.Activity.Value), c.Activity.Notes,
			"Yes",
		)
		w.row(SheetCheckins, i+2, values)
	}
}

func (w *sheetWriter) summary(d Data, s Summary) {
	w.headerRow(SheetSummary, summaryHeader, 24)
	end := d.Week.End()
	rows := [][]interface{}{
		{"Client", d.ClientSerial, ""},
		{"Week", fmt.Sprintf("%s (%s to %s)", d.Week, s.WeekStart, dateKey(end)), ""},
		{"Check-in Completion", fmt.Sprintf("%d/7 (%.0f%%)", s.DaysCheckedIn, s.CompletionRate*100), s.CompletionBucket},
		{"Average Emotional", meanText(s.Emotional), s.Emotional.Bucket},
		{"Average Medication", meanText(s.Medication), s.Medication.Bucket},
		{"Average Activity", meanText(s.Activity), s.Activity.Bucket},
		{"Goals", len(s.Goals), ""},
		{"Missions Completed", fmt.Sprintf("%d/%d", s.MissionsCompleted, s.Missions), ""},
	}
	for i, values := range rows {
		w.row(SheetSummary, i+2, values)
	}
}

func (w *sheetWriter) goals(s Summary) {
	w.headerRow(SheetGoals, goalHeader, 12)
	if w.err == nil {
		w.err = w.f.SetColWidth(SheetGoals, "A", "A", 40)
	}
	for i, g := range s.Goals {
		values := []interface{}{g.Text}
		for _, mark := range g.Days {
			switch {
			case mark == nil:
				values = append(values, "")
			case *mark:
				values = append(values, "✓")
			default:
				values = append(values, "✗")
			}
		}
		values = append(values, fmt.Sprintf("%.0f%%", g.Rate*100))
		w.row(SheetGoals, i+2, values)
	}
}

func (w *sheetWriter) notes(d Data) {
	w.headerRow(SheetNotes, noteHeader, 18)
	if w.err == nil {
		w.err = w.f.SetColWidth(SheetNotes, "C", "C", 60)
	}
	notes := append(d.Notes[:0:0], d.Notes...)
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].CreatedAt.Before(notes[j].CreatedAt) })
	for i, n := range notes {
		mission, status := "No", "-"
		if n.IsMission {
			mission, status = "Yes", "Pending"
			if n.MissionCompleted {
				status = "Completed"
			}
		}
		w.row(SheetNotes, i+2, []interface{}{n.CreatedAt.Format("2006-01-02 15:04"), n.Type, n.Content, mission, status})
	}
}

func ratingValue(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func meanText(m Metric) string {
	if m.Mean == nil {
		return NotAvailable
	}
	return fmt.Sprintf("%.2f", *m.Mean)
}
