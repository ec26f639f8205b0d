// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package planner

import (
	"testing"

	"github.com/tis-trainee/notifications/internal/domain"
)

func TestIsProgrammeExcluded(t *testing.T) {
	tests := []struct {
		name string
		pm   domain.ProgrammeMembership
		want bool
	}{
		{
			name: "nil curricula excluded",
			pm:   domain.ProgrammeMembership{Curricula: nil},
			want: true,
		},
		{
			name: "no medical subtype excluded",
			pm:   domain.ProgrammeMembership{Curricula: []domain.Curriculum{{SubType: "ACADEMIC", Specialty: "CARDIOLOGY"}}},
			want: true,
		},
		{
			name: "public health specialty excluded even with medical subtype",
			pm: domain.ProgrammeMembership{Curricula: []domain.Curriculum{
				{SubType: "MEDICAL_CURRICULUM", Specialty: "PUBLIC HEALTH MEDICINE"},
			}},
			want: true,
		},
		{
			name: "foundation specialty excluded",
			pm: domain.ProgrammeMembership{Curricula: []domain.Curriculum{
				{SubType: "MEDICAL_SPR", Specialty: "FOUNDATION"},
			}},
			want: true,
		},
		{
			name: "medical curriculum, eligible specialty included",
			pm: domain.ProgrammeMembership{Curricula: []domain.Curriculum{
				{SubType: "MEDICAL_CURRICULUM", Specialty: "CARDIOLOGY"},
			}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isProgrammeExcluded(tt.pm); got != tt.want {
				t.Errorf("isProgrammeExcluded() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsPlacementExcluded(t *testing.T) {
	tests := []struct {
		placementType string
		want          bool
	}{
		{"In post", false},
		{"IN POST", false},
		{"In post - Acting up", false},
		{"In Post - Extension", false},
		{"Out of programme", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.placementType, func(t *testing.T) {
			got := isPlacementExcluded(domain.Placement{PlacementType: tt.placementType})
			if got != tt.want {
				t.Errorf("isPlacementExcluded(%q) = %v, want %v", tt.placementType, got, tt.want)
			}
		})
	}
}

func TestMapLTFTKind(t *testing.T) {
	tests := []struct {
		state string
		role  string
		want  string
	}{
		{"APPROVED", "", domain.KindLTFTApproved},
		{"SUBMITTED", "", domain.KindLTFTSubmitted},
		{"UNSUBMITTED", "ADMIN", domain.KindLTFTAdminUnsubmitted},
		{"UNSUBMITTED", "TRAINEE", domain.KindLTFTUnsubmitted},
		{"WITHDRAWN", "", domain.KindLTFTWithdrawn},
		{"REJECTED", "", domain.KindLTFTRejected},
		{"SOMETHING_ELSE", "", domain.KindLTFTUpdated},
	}

	for _, tt := range tests {
		t.Run(tt.state+"/"+tt.role, func(t *testing.T) {
			if got := mapLTFTKind(tt.state, tt.role); got != tt.want {
				t.Errorf("mapLTFTKind(%q, %q) = %q, want %q", tt.state, tt.role, got, tt.want)
			}
		})
	}
}

func TestReasonPhrase(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"other", "other reason"},
		{"changePercentage", "Change WTE percentage"},
		{"changeStartDate", "Change start date"},
		{"changeOfCircs", "Change of circumstances"},
		{"somethingUnknown", "somethingUnknown"},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			if got := reasonPhrase(tt.reason); got != tt.want {
				t.Errorf("reasonPhrase(%q) = %q, want %q", tt.reason, got, tt.want)
			}
		})
	}
}
