package metrics

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// Overview bundles the three summaries rendered into the clinical-note prompt.
type Overview struct {
	HeartRate Summary `json:"heart_rate"`
	Steps     Summary `json:"steps"`
	Sleep     Summary `json:"sleep"`
}

// Text renders the overview as the plain-text block fed to the note generator.
func (o Overview) Text() string {
	var b strings.Builder

	b.WriteString("Cardiovascular metrics:\n")
	fmt.Fprintf(&b, "- Monthly average BPM: %s\n", bpm(o.HeartRate.Monthly))
	fmt.Fprintf(&b, "- BPM average so far this month: %s\n", bpm(o.HeartRate.ThisMonth))
	fmt.Fprintf(&b, "- BPM average this week: %s\n", bpm(o.HeartRate.ThisWeek))
	fmt.Fprintf(&b, "- BPM average today: %s\n", bpm(o.HeartRate.Today))
	b.WriteString("\n")

	b.WriteString("Sleep metrics:\n")
	fmt.Fprintf(&b, "- Monthly average sleep: %s\n", hours(o.Sleep.Monthly, " / night"))
	fmt.Fprintf(&b, "- Sleep average so far this month: %s\n", hours(o.Sleep.ThisMonth, " / night"))
	fmt.Fprintf(&b, "- Sleep average this week: %s\n", hours(o.Sleep.ThisWeek, " / night"))
	fmt.Fprintf(&b, "- Sleep last night: %s\n", hours(o.Sleep.Today, ""))
	b.WriteString("\n")

	b.WriteString("Steps metrics:\n")
	fmt.Fprintf(&b, "- Monthly average steps per day: %s\n", steps(o.Steps.Monthly))
	fmt.Fprintf(&b, "- Steps average so far this month: %s\n", steps(o.Steps.ThisMonth))
	fmt.Fprintf(&b, "- Steps average this week: %s\n", steps(o.Steps.ThisWeek))
	fmt.Fprintf(&b, "- Steps yesterday: %s", steps(o.Steps.Today))

	return b.String()
}

func bpm(v Value) string {
	return v.format("%.0f")
}

func hours(v Value, suffix string) string {
	if !v.IsNumber() {
		return v.Reason()
	}
	return fmt.Sprintf("%.1f hours%s", v.Number, suffix)
}

// steps groups thousands, e.g. 12,345.
func steps(v Value) string {
	if !v.IsNumber() {
		return v.Reason()
	}
	return printer.Sprintf("%d", int64(v.Number+0.5))
}
