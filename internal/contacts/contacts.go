// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

// Package contacts implements the §4.D contacts resolver: looking up a
// managing-deanery's contact list, picking a typed contact with fallback,
// and classifying a contact string as EMAIL / URL / NON_HREF.
package contacts

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tis-trainee/notifications/internal/remote"
)

// Contact is one typed entry in a deanery's contact list.
type Contact struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ClassifiedType is the §4.D classification of a contact string.
type ClassifiedType string

const (
	ClassEmail   ClassifiedType = "EMAIL"
	ClassURL     ClassifiedType = "URL"
	ClassNonHref ClassifiedType = "NON_HREF"
)

// DefaultContact is returned by Pick when nothing matches, per the §8
// boundary behaviour "Contact list null -> default string".
const DefaultContact = "your local deanery office"

// Resolver looks up contact lists via the reference service, caching
// within a single planner invocation (request-scoped, not shared across
// handlers, per §5 "in-process caches are request-scoped").
type Resolver struct {
	reference *remote.Client
	ttl       time.Duration
}

// NewResolver wires the reference-service client. ttl bounds how long a
// single invocation's cache entries live; it should be short (seconds),
// just long enough to cover one planner run's repeated lookups for the
// same deanery across several notification kinds.
func NewResolver(reference *remote.Client, ttl time.Duration) *Resolver {
	return &Resolver{reference: reference, ttl: ttl}
}

// Scope returns a request-scoped cache for a single planner invocation.
// Callers create one Scope per inbound event and reuse it across every
// ContactList call made while handling that event.
func (r *Resolver) Scope() *Scope {
	return &Scope{resolver: r, cache: cache.New(r.ttl, r.ttl)}
}

// Scope memoizes ContactList lookups for the lifetime of one handler
// invocation.
type Scope struct {
	resolver *Resolver
	cache    *cache.Cache
}

type contactListResponse struct {
	Contacts []Contact `json:"contacts"`
}

// ContactList fetches the named deanery's contacts, memoized per Scope.
func (s *Scope) ContactList(ctx context.Context, deaneryName string) ([]Contact, error) {
	if cached, ok := s.cache.Get(deaneryName); ok {
		return cached.([]Contact), nil
	}

	var resp contactListResponse
	err := s.resolver.reference.GetJSON(ctx, "/api/local-office-contact-by-lo-name/"+url.PathEscape(deaneryName), &resp)
	if err != nil {
		if remote.IsNotFound(err) {
			s.cache.SetDefault(deaneryName, []Contact(nil))
			return nil, nil
		}
		// RemoteUnavailable: proceed with an empty list so Pick falls
		// through to its default rather than failing the send.
		s.cache.SetDefault(deaneryName, []Contact(nil))
		return nil, nil
	}

	s.cache.SetDefault(deaneryName, resp.Contacts)
	return resp.Contacts, nil
}

// Pick selects the first contact whose type matches primary, else
// fallback, else returns def.
func Pick(list []Contact, primary, fallback, def string) string {
	for _, c := range list {
		if c.Type == primary {
			return c.Value
		}
	}
	for _, c := range list {
		if c.Type == fallback {
			return c.Value
		}
	}
	return def
}

var emailPattern = regexp.MustCompile(`^\S+@\S+$`)

// Classify implements §4.D's classification rule.
func Classify(contact string) ClassifiedType {
	if u, err := url.ParseRequestURI(contact); err == nil && u.IsAbs() {
		return ClassURL
	}
	if strings.Contains(contact, "@") && emailPattern.MatchString(contact) && !strings.ContainsAny(contact, " \t\n") {
		return ClassEmail
	}
	return ClassNonHref
}

// ClassifyAll builds the `contacts: map<type, {contact, classifiedType}>`
// variable the LTFT planner (§4.J) assembles.
type ClassifiedContact struct {
	Contact        string         `json:"contact"`
	ClassifiedType ClassifiedType `json:"classifiedType"`
}

func ClassifyAll(list []Contact) map[string]ClassifiedContact {
	out := make(map[string]ClassifiedContact, len(list))
	for _, c := range list {
		out[c.Type] = ClassifiedContact{Contact: c.Value, ClassifiedType: Classify(c.Value)}
	}
	return out
}
