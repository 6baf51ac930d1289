package utils

import (
	"testing"
	"time"
)

func date(s string) time.Time {
	t, err := ParseDateKST(s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestIsTradingDay(t *testing.T) {
	cases := []struct {
		day  string
		want bool
	}{
		{"2025-06-11", true},  // Wednesday
		{"2025-06-14", false}, // Saturday
		{"2025-06-15", false}, // Sunday
		{"2025-06-06", false}, // 현충일
		{"2025-01-01", false}, // 신정
		{"2025-12-31", false}, // year-end closing
		{"2025-06-09", true},  // Monday
	}
	for _, tc := range cases {
		if got := IsTradingDay(date(tc.day)); got != tc.want {
			t.Errorf("IsTradingDay(%s) = %v, want %v", tc.day, got, tc.want)
		}
	}
}

func TestPrevTradingDay(t *testing.T) {
	// Monday walks back over the weekend.
	got := PrevTradingDay(date("2025-06-09"))
	if FormatDateKST(got) != "2025-06-05" {
		// 2025-06-06 is 현충일, so Thursday the 5th.
		t.Errorf("PrevTradingDay(2025-06-09) = %s, want 2025-06-05", FormatDateKST(got))
	}
}

func TestNextTradingDay(t *testing.T) {
	got := NextTradingDay(date("2025-06-13"))
	if FormatDateKST(got) != "2025-06-16" {
		t.Errorf("NextTradingDay(2025-06-13) = %s, want 2025-06-16", FormatDateKST(got))
	}
}

func TestNthPrevTradingDay(t *testing.T) {
	got := NthPrevTradingDay(date("2025-06-11"), 3)
	if FormatDateKST(got) != "2025-06-05" {
		// 10th, 9th, then across the weekend and 현충일 to the 5th.
		t.Errorf("NthPrevTradingDay(2025-06-11, 3) = %s, want 2025-06-05", FormatDateKST(got))
	}
	same := NthPrevTradingDay(date("2025-06-11"), 0)
	if FormatDateKST(same) != "2025-06-11" {
		t.Errorf("NthPrevTradingDay(..., 0) = %s, want 2025-06-11", FormatDateKST(same))
	}
}

func TestMostRecentTradingDay(t *testing.T) {
	if got := MostRecentTradingDay(date("2025-06-11")); FormatDateKST(got) != "2025-06-11" {
		t.Errorf("trading day should map to itself, got %s", FormatDateKST(got))
	}
	if got := MostRecentTradingDay(date("2025-06-14")); FormatDateKST(got) != "2025-06-13" {
		t.Errorf("Saturday should map to Friday, got %s", FormatDateKST(got))
	}
}

func TestTradingDaysBetween(t *testing.T) {
	// 2025-06-02 (Mon) .. 2025-06-11 (Wed) exclusive: 2nd, 4th, 5th, 9th, 10th.
	// The 3rd is the election day and the 6th is 현충일.
	got := TradingDaysBetween(date("2025-06-02"), date("2025-06-11"))
	if got != 5 {
		t.Errorf("TradingDaysBetween = %d, want 5", got)
	}
}
