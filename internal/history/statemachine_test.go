// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package history

import "testing"

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		name    string
		channel Channel
		from    Status
		to      Status
		wantErr bool
	}{
		{"email scheduled to pending", ChannelEmail, StatusScheduled, StatusPending, false},
		{"email pending to sent", ChannelEmail, StatusPending, StatusSent, false},
		{"email pending to failed", ChannelEmail, StatusPending, StatusFailed, false},
		{"email scheduled to unread rejected by channel", ChannelEmail, StatusScheduled, StatusUnread, true},
		{"in-app scheduled to unread", ChannelInApp, StatusScheduled, StatusUnread, false},
		{"in-app unread to read", ChannelInApp, StatusUnread, StatusRead, false},
		{"in-app read to archived", ChannelInApp, StatusRead, StatusArchived, false},
		{"in-app unread to archived", ChannelInApp, StatusUnread, StatusArchived, false},
		{"in-app sent invalid for channel", ChannelInApp, StatusUnread, StatusSent, true},
		{"same state is a no-op", ChannelEmail, StatusPending, StatusPending, false},
		{"pending cannot go back to scheduled", ChannelEmail, StatusPending, StatusScheduled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTransition(tt.channel, tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateTransition(%s, %s, %s) error = %v, wantErr %v", tt.channel, tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}

func TestValidStatusesFor(t *testing.T) {
	if ValidStatusesFor(ChannelEmail)[StatusUnread] {
		t.Error("UNREAD must not be valid for EMAIL")
	}
	if ValidStatusesFor(ChannelInApp)[StatusSent] {
		t.Error("SENT must not be valid for IN_APP")
	}
	if ValidStatusesFor(Channel("BOGUS")) != nil {
		t.Error("unknown channel should return a nil set")
	}
}
