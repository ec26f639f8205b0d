// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package intake

import (
	"encoding/json"
	"testing"

	"github.com/tis-trainee/notifications/internal/domain"
)

// TestDecodeTolerantOfUnknownFields exercises §6.1's "payloads tolerate
// absent/extra fields" requirement for the event shapes this package
// decodes directly (json.Unmarshal into a struct already ignores unknown
// keys; this pins that behaviour for the payloads intake owns).
func TestDecodeTolerantOfUnknownFields(t *testing.T) {
	raw := []byte(`{
		"traineeId": "T1",
		"tisId": "PM1",
		"syncedAt": "2026-01-01T00:00:00Z",
		"unexpectedField": {"nested": true},
		"anotherSurprise": [1,2,3]
	}`)

	var evt domain.COJEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if evt.TraineeID != "T1" || evt.ProgrammeMembershipID != "PM1" {
		t.Errorf("decoded = %+v, want TraineeID=T1 ProgrammeMembershipID=PM1", evt)
	}
}

func TestDecodeFormEventTolerant(t *testing.T) {
	raw := []byte(`{"traineeId":"T1","formId":"F7","formName":"Form R Part A","status":"SUBMITTED","legacyField":"ignored"}`)

	var evt domain.FormEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if evt.TraineeID != "T1" || evt.FormID != "F7" || evt.FormName != "Form R Part A" || evt.Status != "SUBMITTED" {
		t.Errorf("decoded = %+v", evt)
	}
}

func TestDecodeGMCEventTolerant(t *testing.T) {
	raw := []byte(`{"traineeId":"T1","gmcNumber":"1234567","status":"REJECTED","extra":null}`)

	var evt domain.GMCEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if evt.TraineeID != "T1" || evt.GmcNumber != "1234567" || evt.Status != "REJECTED" {
		t.Errorf("decoded = %+v", evt)
	}
}
