// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2025 Controle Digital Ltda

// Package domain holds the plain value types decoded from inbound events:
// programme memberships, placements, and LTFT application state. None of
// these carry behaviour of their own — the planners in internal/planner
// own the decision logic.
package domain

import "time"

// ReferenceKind identifies the business entity that triggered a
// notification (§3.1 Reference).
type ReferenceKind string

const (
	ReferenceProgrammeMembership ReferenceKind = "PROGRAMME_MEMBERSHIP"
	ReferencePlacement           ReferenceKind = "PLACEMENT"
	ReferenceLTFT                ReferenceKind = "LTFT"
	ReferenceForm                ReferenceKind = "FORM"
)

// Reference is a typed pointer to the entity that caused a notification.
type Reference struct {
	Kind ReferenceKind `json:"kind"`
	ID   string        `json:"id"`
}

// Curriculum is one entry of a ProgrammeMembership's curricula list.
type Curriculum struct {
	SubType   string `json:"subType"`
	Specialty string `json:"specialty"`
}

// ConditionsOfJoining tracks when a trainee's COJ was synced.
type ConditionsOfJoining struct {
	SyncedAt *time.Time `json:"syncedAt"`
}

// ProgrammeMembership is the §3.1 ProgrammeMembership entity.
type ProgrammeMembership struct {
	TisID              string              `json:"tisId"`
	PersonID           string              `json:"personId"`
	ProgrammeName      string              `json:"programmeName"`
	ProgrammeNumber    string              `json:"programmeNumber"`
	StartDate          time.Time           `json:"startDate"`
	ManagingDeanery    string              `json:"managingDeanery"`
	DesignatedBody     string              `json:"designatedBody"`
	ResponsibleOfficer string              `json:"responsibleOfficer"`
	Curricula          []Curriculum        `json:"curricula"`
	ConditionsOfJoining ConditionsOfJoining `json:"conditionsOfJoining"`
}

// Placement is the §3.1 Placement entity.
type Placement struct {
	TisID         string    `json:"tisId"`
	PersonID      string    `json:"personId"`
	StartDate     time.Time `json:"startDate"`
	PlacementType string    `json:"placementType"`
	Specialty     string    `json:"specialty"`
	Owner         string    `json:"owner"`
}

// LTFTDetail carries the reason/message pair for an LTFT status.
type LTFTDetail struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// LTFTModifiedBy identifies who drove an LTFT state transition.
type LTFTModifiedBy struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// LTFTCurrentStatus is the nested `status.current` object.
type LTFTCurrentStatus struct {
	State      string         `json:"state"`
	Timestamp  time.Time      `json:"timestamp"`
	Detail     LTFTDetail     `json:"detail"`
	ModifiedBy LTFTModifiedBy `json:"modifiedBy"`
}

// LTFTStatus wraps the current LTFT status.
type LTFTStatus struct {
	Current LTFTCurrentStatus `json:"current"`
}

// LTFTProgrammeMembership is the subset of PM fields embedded in an LTFT
// event's content.
type LTFTProgrammeMembership struct {
	DesignatedBodyCode string `json:"designatedBodyCode"`
	ManagingDeanery    string `json:"managingDeanery"`
}

// LTFTContent carries the form name and referenced programme membership.
type LTFTContent struct {
	Name                string                  `json:"name"`
	ProgrammeMembership LTFTProgrammeMembership `json:"programmeMembership"`
}

// LTFTDiscussions carries the TPD's contact details.
type LTFTDiscussions struct {
	TpdName  string `json:"tpdName"`
	TpdEmail string `json:"tpdEmail"`
}

// LTFTChange carries the requested change to the LTFT arrangement.
type LTFTChange struct {
	StartDate *time.Time `json:"startDate"`
	Wte       *float64   `json:"wte"`
	CctDate   *time.Time `json:"cctDate"`
}

// LTFTEvent is the §3.1 LTFT event payload.
type LTFTEvent struct {
	TraineeID   string          `json:"traineeId"`
	FormRef     string          `json:"formRef"`
	FormName    string          `json:"formName"`
	Content     LTFTContent     `json:"content"`
	Discussions LTFTDiscussions `json:"discussions"`
	Change      LTFTChange      `json:"change"`
	Status      LTFTStatus      `json:"status"`
}

// ActionType enumerates the per-trainee checklist items the actions
// service tracks.
type ActionType string

const (
	ActionSignCOJ          ActionType = "SIGN_COJ"
	ActionSignFormRPartA   ActionType = "SIGN_FORM_R_PART_A"
	ActionSignFormRPartB   ActionType = "SIGN_FORM_R_PART_B"
	ActionRegisterTSS      ActionType = "REGISTER_TSS"
)

// Action is a single checklist item for a trainee/programme pair.
type Action struct {
	Type      ActionType `json:"type"`
	DueBy     time.Time  `json:"dueBy"`
	Completed bool       `json:"completed"`
}

// Notification kinds (§4.G, §4.H, §4.I, §4.J). ProgrammeUpdateKinds and
// InAppKinds are the closed sets the H planner scans for "already sent".
const (
	KindProgrammeUpdatedWeek8 = "PROGRAMME_UPDATED_WEEK_8"
	KindProgrammeUpdatedWeek4 = "PROGRAMME_UPDATED_WEEK_4"
	KindProgrammeUpdatedWeek1 = "PROGRAMME_UPDATED_WEEK_1"
	KindProgrammeUpdatedWeek0 = "PROGRAMME_UPDATED_WEEK_0"

	KindPlacementUpdatedWeek12 = "PLACEMENT_UPDATED_WEEK_12"

	KindEPortfolio         = "E_PORTFOLIO"
	KindIndemnityInsurance = "INDEMNITY_INSURANCE"
	KindLTFT               = "LTFT"
	KindDeferral           = "DEFERRAL"
	KindSponsorship        = "SPONSORSHIP"
	KindDayOne             = "DAY_ONE"

	KindLTFTApproved           = "LTFT_APPROVED"
	KindLTFTSubmitted          = "LTFT_SUBMITTED"
	KindLTFTAdminUnsubmitted   = "LTFT_ADMIN_UNSUBMITTED"
	KindLTFTUnsubmitted        = "LTFT_UNSUBMITTED"
	KindLTFTWithdrawn          = "LTFT_WITHDRAWN"
	KindLTFTRejected           = "LTFT_REJECTED"
	KindLTFTUpdated            = "LTFT_UPDATED"
	KindLTFTApprovedTPD        = "LTFT_APPROVED_TPD"
	KindLTFTSubmittedTPD       = "LTFT_SUBMITTED_TPD"
)

// ProgrammeUpdateKinds are the email milestones H schedules against
// startDate, in descending days-before order (earliest milestone first).
var ProgrammeUpdateKinds = []struct {
	Kind       string
	DaysBefore int
}{
	{KindProgrammeUpdatedWeek8, 56},
	{KindProgrammeUpdatedWeek4, 28},
	{KindProgrammeUpdatedWeek1, 7},
	{KindProgrammeUpdatedWeek0, 0},
}

// InAppKinds are the in-app rows H writes once, never re-sent.
var InAppKinds = []string{
	KindEPortfolio,
	KindIndemnityInsurance,
	KindLTFT,
	KindDeferral,
	KindSponsorship,
	KindDayOne,
}

// Notification kinds for the lightly-specified §4.K listeners (account,
// COJ, form, GMC): spec.md names these queues without detailing their
// payload or decision logic (§9 Open Questions notes several listener
// versions were collapsed into this spec's union). One kind per queue,
// sent directly via E with no scheduling or exclusion logic — see
// DESIGN.md for this Open-Question resolution.
const (
	KindAccountConfirmed = "ACCOUNT_CONFIRMED"
	KindAccountUpdated   = "ACCOUNT_UPDATED"
	KindCojPublished     = "COJ_PUBLISHED"
	KindFormUpdated      = "FORM_UPDATED"
	KindGmcRejected      = "GMC_REJECTED"
	KindGmcUpdated       = "GMC_UPDATED"
)

// AccountEvent is the payload for account-confirmed / account-updated.
type AccountEvent struct {
	TraineeID string `json:"traineeId"`
	Email     string `json:"email"`
}

// COJEvent is the payload for coj-published: a trainee has signed (or had
// published) their conditions of joining for a programme membership.
type COJEvent struct {
	TraineeID             string    `json:"traineeId"`
	ProgrammeMembershipID string    `json:"tisId"`
	SyncedAt              time.Time `json:"syncedAt"`
}

// FormEvent is the payload for form-updated.
type FormEvent struct {
	TraineeID string `json:"traineeId"`
	FormID    string `json:"formId"`
	FormName  string `json:"formName"`
	Status    string `json:"status"`
}

// GMCEvent is the payload for gmc-updated / gmc-rejected.
type GMCEvent struct {
	TraineeID string `json:"traineeId"`
	GmcNumber string `json:"gmcNumber"`
	Status    string `json:"status"`
}
