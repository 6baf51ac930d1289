package utils

import (
	"time"
)

// KST is the Korea Standard Time location (UTC+9).
var KST *time.Location

func init() {
	var err error
	KST, err = time.LoadLocation("Asia/Seoul")
	if err != nil {
		// Fallback: create fixed zone if tz database is not available
		KST = time.FixedZone("KST", 9*60*60)
	}
}

// NowKST returns the current time in KST.
func NowKST() time.Time {
	return time.Now().In(KST)
}

// IsTradingDay checks if the given date is a KRX trading day
// (not weekend, not holiday).
func IsTradingDay(t time.Time) bool {
	t = t.In(KST)
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !IsTradingHoliday(t)
}

// IsTradingHoliday checks if the given date is a KRX market holiday.
func IsTradingHoliday(t time.Time) bool {
	_, isHoliday := krxHolidays[t.In(KST).Format("2006-01-02")]
	return isHoliday
}

// PrevTradingDay returns the previous trading day before the given date.
func PrevTradingDay(from time.Time) time.Time {
	prev := from.In(KST).AddDate(0, 0, -1)
	for !IsTradingDay(prev) {
		prev = prev.AddDate(0, 0, -1)
	}
	return prev
}

// NextTradingDay returns the next trading day after the given date.
func NextTradingDay(from time.Time) time.Time {
	next := from.In(KST).AddDate(0, 0, 1)
	for !IsTradingDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// NthPrevTradingDay walks n trading days back from the given date.
// n == 0 returns the date unchanged.
func NthPrevTradingDay(from time.Time, n int) time.Time {
	d := from.In(KST)
	for i := 0; i < n; i++ {
		d = PrevTradingDay(d)
	}
	return d
}

// MostRecentTradingDay returns the date itself when it is a trading day,
// otherwise the nearest earlier trading day.
func MostRecentTradingDay(from time.Time) time.Time {
	d := from.In(KST)
	if IsTradingDay(d) {
		return d
	}
	return PrevTradingDay(d)
}

// TradingDaysBetween returns the number of trading days in [start, end).
func TradingDaysBetween(start, end time.Time) int {
	start = start.In(KST)
	end = end.In(KST)
	count := 0
	for cur := start; cur.Before(end); cur = cur.AddDate(0, 0, 1) {
		if IsTradingDay(cur) {
			count++
		}
	}
	return count
}

// KRX market holidays. Weekend closures are handled separately; this map
// carries statutory holidays, substitute holidays, election days, and the
// year-end closing day (update annually, source: KRX holiday schedule).
var krxHolidays = map[string]string{
	// 2024
	"2024-01-01": "신정",
	"2024-02-09": "설날 연휴",
	"2024-02-12": "설날 대체공휴일",
	"2024-03-01": "삼일절",
	"2024-04-10": "국회의원 선거일",
	"2024-05-01": "근로자의 날",
	"2024-05-06": "어린이날 대체공휴일",
	"2024-05-15": "부처님 오신 날",
	"2024-06-06": "현충일",
	"2024-08-15": "광복절",
	"2024-09-16": "추석 연휴",
	"2024-09-17": "추석",
	"2024-09-18": "추석 연휴",
	"2024-10-01": "국군의 날 임시공휴일",
	"2024-10-03": "개천절",
	"2024-10-09": "한글날",
	"2024-12-25": "성탄절",
	"2024-12-31": "연말 휴장일",

	// 2025
	"2025-01-01": "신정",
	"2025-01-27": "설 연휴 임시공휴일",
	"2025-01-28": "설날 연휴",
	"2025-01-29": "설날",
	"2025-01-30": "설날 연휴",
	"2025-03-03": "삼일절 대체공휴일",
	"2025-05-01": "근로자의 날",
	"2025-05-05": "어린이날·부처님 오신 날",
	"2025-05-06": "대체공휴일",
	"2025-06-03": "대통령 선거일",
	"2025-06-06": "현충일",
	"2025-08-15": "광복절",
	"2025-10-03": "개천절",
	"2025-10-06": "추석",
	"2025-10-07": "추석 연휴",
	"2025-10-08": "추석 대체공휴일",
	"2025-10-09": "한글날",
	"2025-12-25": "성탄절",
	"2025-12-31": "연말 휴장일",

	// 2026
	"2026-01-01": "신정",
	"2026-02-16": "설날 연휴",
	"2026-02-17": "설날",
	"2026-02-18": "설날 연휴",
	"2026-03-02": "삼일절 대체공휴일",
	"2026-05-01": "근로자의 날",
	"2026-05-05": "어린이날",
	"2026-05-25": "부처님 오신 날 대체공휴일",
	"2026-06-03": "지방선거일",
	"2026-08-17": "광복절 대체공휴일",
	"2026-09-24": "추석 연휴",
	"2026-09-25": "추석",
	"2026-09-28": "추석 대체공휴일",
	"2026-10-05": "개천절 대체공휴일",
	"2026-10-09": "한글날",
	"2026-12-25": "성탄절",
	"2026-12-31": "연말 휴장일",
}

// GetTradingHolidays returns the known KRX holiday map.
func GetTradingHolidays() map[string]string {
	return krxHolidays
}

// ParseDateKST parses a date string in "2006-01-02" format and returns it in KST.
func ParseDateKST(dateStr string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", dateStr, KST)
}

// FormatDateKST formats a time.Time to "2006-01-02" in KST.
func FormatDateKST(t time.Time) string {
	return t.In(KST).Format("2006-01-02")
}

// FormatDateTimeKST formats a time.Time to "2006-01-02 15:04:05 KST".
func FormatDateTimeKST(t time.Time) string {
	return t.In(KST).Format("2006-01-02 15:04:05 KST")
}

// MarketStatus returns the current KRX session status string. The regular
// session runs 09:00-15:30 KST.
func MarketStatus() string {
	now := NowKST()

	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return "CLOSED (Weekend)"
	}
	if IsTradingHoliday(now) {
		return "CLOSED (" + krxHolidays[now.Format("2006-01-02")] + ")"
	}

	open := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, KST)
	close := time.Date(now.Year(), now.Month(), now.Day(), 15, 30, 0, 0, KST)

	switch {
	case now.Before(open):
		return "PRE-MARKET"
	case !now.After(close):
		return "OPEN"
	default:
		return "CLOSED"
	}
}
