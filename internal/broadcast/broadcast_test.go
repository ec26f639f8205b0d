// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package broadcast

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/tis-trainee/notifications/internal/history"
)

func TestViewMarshalsFlatJSON(t *testing.T) {
	row := &history.Row{
		ID:                 42,
		NotificationKind:   "LTFT_APPROVED",
		RecipientTraineeID: "trainee-1",
		RecipientChannel:   history.ChannelEmail,
		RecipientContact:   "sam@example.com",
		Status:             history.StatusSent,
		SentAt:             time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC),
	}

	v := view{
		ID:               row.ID,
		Reference:        row.ReferenceOf(),
		NotificationKind: row.NotificationKind,
		TraineeID:        row.RecipientTraineeID,
		Channel:          row.RecipientChannel,
		Contact:          row.RecipientContact,
		Status:           row.Status,
		SentAt:           row.SentAt,
	}

	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["id"].(float64) != 42 {
		t.Errorf("id = %v, want 42", decoded["id"])
	}
	if _, present := decoded["reference"]; present {
		t.Errorf("nil reference should be omitted, got %v", decoded["reference"])
	}
}

func TestDeleteViewMarshalsIDOnly(t *testing.T) {
	payload, err := json.Marshal(deleteView{ID: 7, Deleted: true})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded["id"].(float64) != 7 {
		t.Errorf("id = %v, want 7", decoded["id"])
	}
	if decoded["deleted"] != true {
		t.Errorf("deleted = %v, want true", decoded["deleted"])
	}
}
