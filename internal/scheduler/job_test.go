// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package scheduler

import (
	"testing"
	"time"
)

func TestGetScheduleDate(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 7, 31, 9, 0, 0, 0, loc)

	tests := []struct {
		name       string
		anchorDate time.Time
		daysBefore int
		want       time.Time
	}{
		{
			name:       "anchor minus daysBefore is today: fire in one hour",
			anchorDate: time.Date(2026, 7, 31, 0, 0, 0, 0, loc),
			daysBefore: 0,
			want:       now.Add(time.Hour),
		},
		{
			name:       "anchor minus daysBefore is in the future: fire at local midnight",
			anchorDate: time.Date(2026, 8, 10, 0, 0, 0, 0, loc),
			daysBefore: 1,
			want:       time.Date(2026, 8, 9, 0, 0, 0, 0, loc),
		},
		{
			name:       "anchor minus daysBefore is in the past: fire in one hour",
			anchorDate: time.Date(2026, 7, 20, 0, 0, 0, 0, loc),
			daysBefore: 0,
			want:       now.Add(time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetScheduleDate(now, tt.anchorDate, tt.daysBefore, loc)
			if !got.Equal(tt.want) {
				t.Errorf("GetScheduleDate() = %v, want %v", got, tt.want)
			}
		})
	}
}
