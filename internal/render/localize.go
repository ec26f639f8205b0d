// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package render

import "time"

// Localizer converts any timestamp passed into template variables to the
// deployment's configured time-zone before rendering (§4.B).
type Localizer struct {
	location *time.Location
}

// NewLocalizer resolves the IANA zone id once at startup.
func NewLocalizer(timezone string) (*Localizer, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}
	return &Localizer{location: loc}, nil
}

// Localize converts t to the configured zone.
func (l *Localizer) Localize(t time.Time) time.Time {
	return t.In(l.location)
}

// LocalizeVariables walks a variable map and localizes every time.Time
// value in place, leaving other types untouched. Nested maps are walked
// recursively since template variable maps are frequently built up from
// multiple enrichment steps (recipient, contacts, reference data).
func (l *Localizer) LocalizeVariables(variables map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(variables))
	for k, v := range variables {
		switch val := v.(type) {
		case time.Time:
			out[k] = l.Localize(val)
		case map[string]interface{}:
			out[k] = l.LocalizeVariables(val)
		default:
			out[k] = v
		}
	}
	return out
}
