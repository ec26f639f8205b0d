// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package events

// BroadcastTopic is the outbound topic described in §6.2: a compact view
// of every History create/update/delete is published here for downstream
// consumers.
const BroadcastTopic = "notifications-event"

// DeadLetterTopic receives messages that exceeded MaxDeliveryAttempts on
// any inbound queue.
const DeadLetterTopic = "notifications-dead-letter"
