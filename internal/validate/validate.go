package validate

import (
	"regexp"
	"strconv"
	"strings"
)

// Result is the outcome of checking one proposed field value. Either the
// value was accepted (OK with the normalized Value) or rejected (Prompt holds
// the localized corrective question to show instead of the planner's text).
type Result struct {
	OK     bool
	Value  string
	Prompt string
}

var (
	nonDigit = regexp.MustCompile(`\D+`)
	digitRun = regexp.MustCompile(`\d+`)

	// Exam and board names that signal the model misread a subject answer as
	// a locality.
	subjectLeak = regexp.MustCompile(`(?i)\b(neet|jee|sat|ib|cbse|icse|olympiad|ntse|foundation|school)\b`)

	// Three consecutive letters in any script we collect leads in.
	letterRun = regexp.MustCompile(`[\p{Latin}\p{Devanagari}\p{Telugu}]{3}`)

	weekday   = regexp.MustCompile(`(?i)\b(mon|tue|wed|thu|fri|sat|sun)`)
	timeOfDay = regexp.MustCompile(`(?i)\b\d{1,2}(?::\d{2})?\s*(?:am|pm)?\b`)
)

// Check validates a planner-proposed value for one field. It is pure: no
// conversation state, no side effects. Unknown field keys accept the trimmed
// value as-is.
func Check(field, raw, lang string) Result {
	switch field {
	case "phone":
		return checkPhone(raw, lang)
	case "grade":
		return checkGrade(raw, lang)
	case "mode":
		return checkMode(raw, lang)
	case "area":
		return checkArea(raw, lang)
	case "schedule":
		return checkSchedule(raw, lang)
	default:
		return accepted(strings.TrimSpace(raw))
	}
}

func checkPhone(raw, lang string) Result {
	digits := nonDigit.ReplaceAllString(raw, "")
	switch {
	case len(digits) == 10:
		return accepted(digits)
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		return accepted(digits[2:])
	default:
		return rejected("phone", lang)
	}
}

func checkGrade(raw, lang string) Result {
	run := digitRun.FindString(raw)
	if run != "" {
		if n, err := strconv.Atoi(run); err == nil && n >= 1 && n <= 12 {
			return accepted(strconv.Itoa(n))
		}
	}
	return rejected("grade", lang)
}

func checkMode(raw, lang string) Result {
	low := strings.ToLower(raw)
	if strings.Contains(low, "home") {
		return accepted("home")
	}
	if strings.Contains(low, "online") || strings.Contains(low, "zoom") {
		return accepted("online")
	}
	return rejected("mode", lang)
}

func checkArea(raw, lang string) Result {
	if subjectLeak.MatchString(raw) {
		return rejected("area", lang)
	}
	trimmed := strings.TrimSpace(raw)
	if letterRun.MatchString(trimmed) {
		return accepted(trimmed)
	}
	return rejected("area", lang)
}

func checkSchedule(raw, lang string) Result {
	trimmed := strings.TrimSpace(raw)
	low := strings.ToLower(trimmed)
	// A bare mode word here means the model leaked the mode answer.
	if low == "online" || low == "home" {
		return rejected("schedule", lang)
	}
	if weekday.MatchString(trimmed) || timeOfDay.MatchString(trimmed) {
		return accepted(trimmed)
	}
	return rejected("schedule", lang)
}

func accepted(value string) Result {
	return Result{OK: true, Value: value}
}

func rejected(field, lang string) Result {
	return Result{Prompt: promptFor(field, lang)}
}
