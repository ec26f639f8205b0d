// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

package sender

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// zeroHash is the §8 boundary behaviour fallback: "MD5 of null -> 32 '0' chars".
var zeroHash = strings.Repeat("0", 32)

// hashedEmail computes the template variable `hashedEmail` (§4.E).
func hashedEmail(address string) string {
	if address == "" {
		return zeroHash
	}
	sum := md5.Sum([]byte(address))
	return hex.EncodeToString(sum[:])
}
