// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

// Package recipient implements the §4.C recipient resolver: it merges an
// identity-directory account with a trainee-profile record into a single
// recipient view and enforces 0/1/many account cardinality.
package recipient

import (
	"context"
	"fmt"

	"github.com/tis-trainee/notifications/internal/remote"
)

// Recipient is the merged view handed to the job executor (G) for
// enrichment.
type Recipient struct {
	TraineeID    string
	Email        string
	Title        string
	GivenName    string
	FamilyName   string
	GMCNumber    string
	IsRegistered bool
}

// ErrNoAccount is returned when the identity directory has zero accounts
// for a trainee and the profile service also has nothing.
var ErrNoAccount = fmt.Errorf("no account found for trainee")

// ErrAmbiguousAccount is returned when the identity directory returns more
// than one account for a trainee id; it carries the account ids for the
// observability requirement in §4.C.
type ErrAmbiguousAccount struct {
	TraineeID  string
	AccountIDs []string
}

func (e *ErrAmbiguousAccount) Error() string {
	return fmt.Sprintf("ambiguous account for trainee %s: %v", e.TraineeID, e.AccountIDs)
}

type directoryAccount struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	GivenName  string `json:"givenName"`
	FamilyName string `json:"familyName"`
}

type profileView struct {
	IsRegistered *bool  `json:"isRegistered"`
	Email        string `json:"email"`
	Title        string `json:"title"`
	GivenName    string `json:"givenName"`
	FamilyName   string `json:"familyName"`
	GMCNumber    string `json:"gmcNumber"`
}

// Resolver resolves a trainee id to a Recipient.
type Resolver struct {
	directory *remote.Client
	profile   *remote.Client
}

// NewResolver wires the two collaborator clients.
func NewResolver(directory, profile *remote.Client) *Resolver {
	return &Resolver{directory: directory, profile: profile}
}

// Resolve implements §4.C.
func (r *Resolver) Resolve(ctx context.Context, traineeID string) (*Recipient, error) {
	var accounts []directoryAccount
	err := r.directory.GetJSON(ctx, "/api/accounts/trainee/"+traineeID, &accounts)
	if err != nil && !remote.IsNotFound(err) {
		// RemoteUnavailable: treat the directory as empty and fall through
		// to profile-only resolution rather than failing the whole send.
		accounts = nil
	}

	var profile profileView
	profileErr := r.profile.GetJSON(ctx, "/api/trainee-profile/account-details/"+traineeID, &profile)
	hasProfile := profileErr == nil

	switch len(accounts) {
	case 0:
		if !hasProfile {
			return nil, ErrNoAccount
		}
		return &Recipient{
			TraineeID:    traineeID,
			Email:        profile.Email,
			Title:        profile.Title,
			GivenName:    profile.GivenName,
			FamilyName:   profile.FamilyName,
			GMCNumber:    profile.GMCNumber,
			IsRegistered: false,
		}, nil
	case 1:
		rec := &Recipient{
			TraineeID:    traineeID,
			Email:        accounts[0].Email,
			GivenName:    accounts[0].GivenName,
			FamilyName:   accounts[0].FamilyName,
			IsRegistered: true,
		}
		if hasProfile {
			rec.Title = profile.Title
			rec.GMCNumber = profile.GMCNumber
		}
		return rec, nil
	default:
		ids := make([]string, len(accounts))
		for i, a := range accounts {
			ids[i] = a.ID
		}
		if hasProfile {
			// Ambiguous directory lookups are treated as "not registered",
			// falling back to the profile record rather than erroring,
			// matching the >1-accounts-treated-as-not-registered rule.
			return &Recipient{
				TraineeID:    traineeID,
				Email:        profile.Email,
				Title:        profile.Title,
				GivenName:    profile.GivenName,
				FamilyName:   profile.FamilyName,
				GMCNumber:    profile.GMCNumber,
				IsRegistered: false,
			}, nil
		}
		return nil, &ErrAmbiguousAccount{TraineeID: traineeID, AccountIDs: ids}
	}
}
