// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package feedback

import (
	"testing"

	"github.com/tis-trainee/notifications/internal/history"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		evt        ProviderEvent
		wantStatus history.Status
		wantDetail string
	}{
		{
			name:       "permanent bounce fails with sub-type detail",
			evt:        ProviderEvent{NotificationType: "Bounce", Bounce: &BounceDetail{BounceType: "Permanent", BounceSubType: "General"}},
			wantStatus: history.StatusFailed,
			wantDetail: "Bounce: Permanent - General",
		},
		{
			name:       "transient general bounce fails",
			evt:        ProviderEvent{NotificationType: "Bounce", Bounce: &BounceDetail{BounceType: "Transient", BounceSubType: "General"}},
			wantStatus: history.StatusFailed,
			wantDetail: "Bounce: Transient - General",
		},
		{
			name:       "transient non-general bounce ignored",
			evt:        ProviderEvent{NotificationType: "Bounce", Bounce: &BounceDetail{BounceType: "Transient", BounceSubType: "MailboxFull"}},
			wantStatus: "",
		},
		{
			name:       "bounce without detail ignored",
			evt:        ProviderEvent{NotificationType: "Bounce"},
			wantStatus: "",
		},
		{
			name:       "complaint fails with feedback type",
			evt:        ProviderEvent{NotificationType: "Complaint", Complaint: &ComplaintDetail{ComplaintFeedbackType: "abuse"}},
			wantStatus: history.StatusFailed,
			wantDetail: "Complaint: abuse",
		},
		{
			name:       "delivery marks sent",
			evt:        ProviderEvent{NotificationType: "Delivery"},
			wantStatus: history.StatusSent,
		},
		{
			name:       "open marks read",
			evt:        ProviderEvent{NotificationType: "Open"},
			wantStatus: history.StatusRead,
		},
		{
			name:       "unknown type ignored",
			evt:        ProviderEvent{NotificationType: "RenderingFailure"},
			wantStatus: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotStatus, gotDetail := classify(tt.evt)
			if gotStatus != tt.wantStatus {
				t.Errorf("classify() status = %q, want %q", gotStatus, tt.wantStatus)
			}
			if tt.wantDetail != "" && gotDetail != tt.wantDetail {
				t.Errorf("classify() detail = %q, want %q", gotDetail, tt.wantDetail)
			}
		})
	}
}

func TestNotificationIDExtraction(t *testing.T) {
	evt := ProviderEvent{}
	evt.Mail.Headers = []MailHeader{
		{Name: "Other", Value: "ignore"},
		{Name: "NotificationId", Value: "12345"},
	}
	if got := evt.notificationID(); got != "12345" {
		t.Errorf("notificationID() = %q, want %q", got, "12345")
	}

	empty := ProviderEvent{}
	if got := empty.notificationID(); got != "" {
		t.Errorf("notificationID() = %q, want empty", got)
	}
}
