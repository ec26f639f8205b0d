// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package contacts

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		contact string
		want    ClassifiedType
	}{
		{"plain email", "ltft@deanery.nhs.uk", ClassEmail},
		{"absolute url", "https://deanery.example.com/ltft", ClassURL},
		{"free text", "your local deanery office", ClassNonHref},
		{"email with whitespace is not href", "ltft @deanery.nhs.uk", ClassNonHref},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.contact); got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.contact, got, tt.want)
			}
		})
	}
}

func TestPick(t *testing.T) {
	list := []Contact{
		{Type: "LTFT_SUPPORT", Value: "support@deanery.nhs.uk"},
		{Type: "TSS_SUPPORT", Value: "tss@deanery.nhs.uk"},
	}

	if got := Pick(list, "LTFT", "LTFT_SUPPORT", DefaultContact); got != "support@deanery.nhs.uk" {
		t.Errorf("Pick() fallback = %q", got)
	}
	if got := Pick(list, "LTFT", "MISSING", DefaultContact); got != DefaultContact {
		t.Errorf("Pick() default = %q, want %q", got, DefaultContact)
	}
}

func TestPickOnNilList(t *testing.T) {
	if got := Pick(nil, "LTFT", "LTFT_SUPPORT", DefaultContact); got != DefaultContact {
		t.Errorf("Pick(nil) = %q, want default %q", got, DefaultContact)
	}
}
