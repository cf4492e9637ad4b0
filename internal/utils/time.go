package utils

import (
	"fmt"
	"time"
)

// SaudiTimezone is the zone every date is shown in.
const SaudiTimezone = "Asia/Riyadh"

var saudiLocation = loadSaudiLocation()

func loadSaudiLocation() *time.Location {
	loc, err := time.LoadLocation(SaudiTimezone)
	if err != nil {
		// Riyadh has no DST
		return time.FixedZone("AST", 3*60*60)
	}
	return loc
}

// ToSaudiTime converts t for display.
func ToSaudiTime(t time.Time) time.Time {
	return t.In(saudiLocation)
}

var arabicWeekdays = [...]string{"الأحد", "الاثنين", "الثلاثاء", "الأربعاء", "الخميس", "الجمعة", "السبت"}

var arabicMonths = [...]string{"يناير", "فبراير", "مارس", "أبريل", "مايو", "يونيو", "يوليو", "أغسطس", "سبتمبر", "أكتوبر", "نوفمبر", "ديسمبر"}

// FormatArabicDate renders t like "الثلاثاء، 20 أكتوبر 2026".
func FormatArabicDate(t time.Time) string {
	st := ToSaudiTime(t)
	return fmt.Sprintf("%s، %d %s %d", arabicWeekdays[st.Weekday()], st.Day(), arabicMonths[st.Month()-1], st.Year())
}

// FormatArabicTime renders the clock time with a ص/م suffix.
func FormatArabicTime(t time.Time) string {
	st := ToSaudiTime(t)
	hour := st.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	suffix := "ص"
	if st.Hour() >= 12 {
		suffix = "م"
	}
	return fmt.Sprintf("%d:%02d %s", hour, st.Minute(), suffix)
}

// FormatArabicDateTime joins FormatArabicDate and FormatArabicTime.
func FormatArabicDateTime(t time.Time) string {
	return FormatArabicDate(t) + " - " + FormatArabicTime(t)
}
