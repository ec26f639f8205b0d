// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

// Package render adapts the templating engine named as an external
// collaborator in §1/§6.3: it resolves (channel, kind, version) to a
// template path and renders named blocks against a variable map. The
// engine itself — parsing and block selection — lives here because no
// separate templating service is part of this deployment; everything
// upstream of block selection treats Renderer as the contract boundary.
package render

import "context"

// Renderer is the §4.B contract.
type Renderer interface {
	// TemplatePath resolves the convention {channel}/{kind-as-kebab}/{version}.
	TemplatePath(channel, kind, version string) string

	// Process renders the named blocks in selectors against variables. An
	// empty selectors list renders the whole template under the key "".
	Process(ctx context.Context, path string, selectors []string, variables map[string]interface{}) (map[string]string, error)
}
