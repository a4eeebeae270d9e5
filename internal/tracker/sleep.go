package tracker

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SleepDuration returns the hours slept between bedtime and wake, both "HH:MM".
// A bedtime later in the day than the wake time is taken to cross midnight.
func SleepDuration(bedtime, wake string) (float64, error) {
	bed, err := hourFraction(bedtime)
	if err != nil {
		return 0, fmt.Errorf("bedtime: %w", err)
	}
	up, err := hourFraction(wake)
	if err != nil {
		return 0, fmt.Errorf("wake time: %w", err)
	}

	if bed > up {
		up += 24
	}
	return math.Round((up-bed)*100) / 100, nil
}

// hourFraction converts "HH:MM" to hours since midnight.
func hourFraction(s string) (float64, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("%q is not HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%q has an invalid hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || len(mm) != 2 {
		return 0, fmt.Errorf("%q has an invalid minute", s)
	}
	return float64(h) + float64(m)/60, nil
}
