// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package render

import "strings"

// kebab lowercases a SCREAMING_SNAKE_CASE notification kind and replaces
// underscores with hyphens, e.g. PROGRAMME_UPDATED_WEEK_8 -> programme-updated-week-8.
func kebab(kind string) string {
	return strings.ToLower(strings.ReplaceAll(kind, "_", "-"))
}
