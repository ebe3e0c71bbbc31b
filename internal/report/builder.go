// Package report turns a student's progress data into a self-contained
// HTML document. Content is assembled as markdown and rendered with goldmark.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"formafit/trainer-app/internal/domain"
)

// Photo is a progress photo with a time-limited download link.
type Photo struct {
	Date        time.Time
	Angle       domain.PhotoAngle
	Description string
	URL         string
}

// Data is everything a report can show. Sections are emitted according to
// the include flags of Type.
type Data struct {
	Title       string
	TrainerName string
	Student     domain.Student
	Type        domain.ReportType
	PeriodStart time.Time
	PeriodEnd   time.Time
	GeneratedOn time.Time

	Measurements      []domain.BodyMeasurement // any order
	Monthly           []domain.MonthlyTracking
	Attendance        []domain.AttendanceRecord
	CompletedSessions int
	Photos            []Photo
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", `*`, `\*`, `_`, `\_`, `[`, `\[`, `]`, `\]`,
	`<`, `&lt;`, `>`, `&gt;`, `|`, `\|`, `#`, `\#`,
)

// esc makes user-entered text safe to embed in markdown.
func esc(s string) string {
	return mdEscaper.Replace(strings.TrimSpace(s))
}

func day(t time.Time) string { return t.Format("02/01/2006") }

func num(v *float64, unit string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%s", *v, unit)
}

// BuildMarkdown assembles the report body.
func BuildMarkdown(d Data) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", esc(d.Title))
	fmt.Fprintf(&b, "**Student:** %s  \n", esc(d.Student.Name))
	fmt.Fprintf(&b, "**Report type:** %s  \n", esc(d.Type.Name))
	fmt.Fprintf(&b, "**Period:** %s to %s  \n", day(d.PeriodStart), day(d.PeriodEnd))
	if d.TrainerName != "" {
		fmt.Fprintf(&b, "**Trainer:** %s  \n", esc(d.TrainerName))
	}
	b.WriteString("\n")

	writeProfile(&b, d)
	if d.Type.IncludeMeasurements {
		writeMeasurements(&b, d)
	}
	if d.Type.IncludeCharts {
		writeMonthly(&b, d)
	}
	if d.Type.IncludeAttendance {
		writeAttendance(&b, d)
	}
	if d.Type.IncludePhotos {
		writePhotos(&b, d)
	}

	fmt.Fprintf(&b, "\n---\n\nGenerated on %s.\n", day(d.GeneratedOn))
	return b.String()
}

func writeProfile(b *strings.Builder, d Data) {
	s := d.Student
	bmi := s.InitialBMI()
	if latest := latestMeasurement(d.Measurements); latest != nil {
		bmi = latest.BMI(s.HeightM)
	}
	category := domain.ClassifyBMI(bmi)

	b.WriteString("## Profile\n\n")
	fmt.Fprintf(b, "- Age: %d\n", s.AgeOn(d.GeneratedOn))
	fmt.Fprintf(b, "- Height: %.2f m\n", s.HeightM)
	if s.Objective != "" {
		fmt.Fprintf(b, "- Objective: %s\n", esc(s.Objective))
	}
	fmt.Fprintf(b, "- BMI: %s (%s)\n\n", num(bmi, ""), category.Label())
}

func latestMeasurement(ms []domain.BodyMeasurement) *domain.BodyMeasurement {
	var latest *domain.BodyMeasurement
	for i := range ms {
		if latest == nil || ms[i].Date.After(latest.Date) {
			latest = &ms[i]
		}
	}
	return latest
}

func writeMeasurements(b *strings.Builder, d Data) {
	b.WriteString("## Body measurements\n\n")
	if len(d.Measurements) == 0 {
		b.WriteString("No measurements recorded in this period.\n\n")
		return
	}

	ms := sortedMeasurements(d.Measurements)
	b.WriteString("| Date | Weight | BMI | Body fat | Waist | Hip |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, m := range ms {
		w := m.WeightKg
		fmt.Fprintf(b, "| %s | %s | %s | %s | %s | %s |\n",
			day(m.Date), num(&w, " kg"), num(m.BMI(d.Student.HeightM), ""),
			num(m.BodyFatPct, "%"), num(m.WaistCm, " cm"), num(m.HipCm, " cm"))
	}

	if len(ms) > 1 {
		delta := ms[len(ms)-1].WeightKg - ms[0].WeightKg
		fmt.Fprintf(b, "\nWeight change over the period: **%+.1f kg**\n", delta)
	}
	b.WriteString("\n")
}

// sortedMeasurements returns a copy ordered oldest first.
func sortedMeasurements(in []domain.BodyMeasurement) []domain.BodyMeasurement {
	out := make([]domain.BodyMeasurement, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func writeMonthly(b *strings.Builder, d Data) {
	b.WriteString("## Monthly evolution\n\n")
	if len(d.Monthly) == 0 {
		b.WriteString("No monthly check-ins in this period.\n\n")
		return
	}
	b.WriteString("| Month | Weight | BMI | Category |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, m := range d.Monthly {
		w := m.WeightKg
		fmt.Fprintf(b, "| %02d/%d | %s | %s | %s |\n",
			m.Month, m.Year, num(&w, " kg"), num(m.BMI, ""), m.Category().Label())
	}
	b.WriteString("\n")
}

func writeAttendance(b *strings.Builder, d Data) {
	var present, absent, excused int
	for _, a := range d.Attendance {
		switch a.Status {
		case domain.AttendancePresent:
			present++
		case domain.AttendanceAbsent:
			absent++
		case domain.AttendanceExcused:
			excused++
		}
	}

	b.WriteString("## Attendance\n\n")
	fmt.Fprintf(b, "- Present: %d\n- Absent: %d\n- Excused: %d\n", present, absent, excused)
	if d.CompletedSessions > 0 {
		fmt.Fprintf(b, "- Attendance rate: %.0f%%\n", AttendanceRate(present, d.CompletedSessions))
	}
	b.WriteString("\n")
}

// AttendanceRate is present records over completed sessions, as a percentage
// capped at 100.
func AttendanceRate(present, completed int) float64 {
	if completed <= 0 {
		return 0
	}
	rate := float64(present) / float64(completed) * 100
	if rate > 100 {
		rate = 100
	}
	return rate
}

func writePhotos(b *strings.Builder, d Data) {
	b.WriteString("## Progress photos\n\n")
	if len(d.Photos) == 0 {
		b.WriteString("No photos in this period.\n\n")
		return
	}
	for _, p := range d.Photos {
		caption := fmt.Sprintf("%s, %s", day(p.Date), p.Angle)
		if p.Description != "" {
			caption += ": " + esc(p.Description)
		}
		fmt.Fprintf(b, "![%s](%s)  \n%s\n\n", string(p.Angle), p.URL, caption)
	}
}
