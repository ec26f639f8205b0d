// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

// Package sender implements the §4.E message sender: it builds the MIME
// or in-app payload, attaches files from the object store, sends, and
// records History. Grounded on the teacher pack's SMTP/MIME client for
// the EMAIL path and on internal/history for persistence.
package sender

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/tis-trainee/notifications/internal/objectstore"
)

// MIMEMessage is a composed RFC 5322 message plus the raw bytes SMTP needs.
type MIMEMessage struct {
	Bytes []byte
}

// composeOptions carries everything needed to build one email.
type composeOptions struct {
	From           string
	To             string
	Subject        string
	HTMLBody       string
	NotificationID int64
	Attachments    []*objectstore.Object
}

// compose builds a MIME message with a single text/html inline body, a
// NotificationId header and any attachments, mirroring the teacher's
// mail.CreateWriter usage.
func compose(opts composeOptions) (*MIMEMessage, error) {
	var buf bytes.Buffer

	var h mail.Header
	h.SetDate(time.Now())
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generate message-id: %w", err)
	}
	h.SetSubject(opts.Subject)
	h.Set("NotificationId", strconv.FormatInt(opts.NotificationID, 10))

	from, err := mail.ParseAddress(opts.From)
	if err != nil {
		return nil, fmt.Errorf("parse from address %q: %w", opts.From, err)
	}
	h.SetAddressList("From", []*mail.Address{from})

	to, err := mail.ParseAddress(opts.To)
	if err != nil {
		return nil, fmt.Errorf("parse to address %q: %w", opts.To, err)
	}
	h.SetAddressList("To", []*mail.Address{to})

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create mail writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("create inline writer: %w", err)
	}

	var hh mail.InlineHeader
	hh.Set("Content-Type", "text/html; charset=utf-8")
	hw, err := tw.CreatePart(hh)
	if err != nil {
		return nil, fmt.Errorf("create html part: %w", err)
	}
	if _, err := io.WriteString(hw, opts.HTMLBody); err != nil {
		return nil, fmt.Errorf("write html body: %w", err)
	}
	if err := hw.Close(); err != nil {
		return nil, fmt.Errorf("close html part: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close inline writer: %w", err)
	}

	for _, att := range opts.Attachments {
		var ah mail.AttachmentHeader
		ah.Set("Content-Type", att.ContentType)
		ah.SetFilename(att.Filename)
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, fmt.Errorf("create attachment %s: %w", att.Filename, err)
		}
		if _, err := aw.Write(att.Bytes); err != nil {
			return nil, fmt.Errorf("write attachment %s: %w", att.Filename, err)
		}
		if err := aw.Close(); err != nil {
			return nil, fmt.Errorf("close attachment %s: %w", att.Filename, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close mail writer: %w", err)
	}

	return &MIMEMessage{Bytes: buf.Bytes()}, nil
}
