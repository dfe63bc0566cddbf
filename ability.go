// Package ability implements the attribute-based permission evaluation engine
// used by the hospital/staffing administration backend. Given a user identity
// and a request context it derives the complete set of actions that user may
// perform on which subject types under which data conditions, and answers
// point-in-time authorization queries.
package ability

import (
	"time"

	"github.com/medforge/ability/utils"
)

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// Action is a verb a user may be authorized to perform.
type Action string

const (
	// ActionManage is the superset action: a rule granting manage on a
	// subject satisfies every other action on that subject.
	ActionManage Action = "manage"

	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"

	// Domain actions.
	ActionDiagnose  Action = "diagnose"
	ActionPrescribe Action = "prescribe"
	ActionAdmit     Action = "admit"
	ActionDischarge Action = "discharge"
	ActionSchedule  Action = "schedule"
	ActionApprove   Action = "approve"
	ActionAssign    Action = "assign"
)

var knownActions = map[Action]struct{}{
	ActionManage: {}, ActionCreate: {}, ActionRead: {}, ActionUpdate: {},
	ActionDelete: {}, ActionDiagnose: {}, ActionPrescribe: {}, ActionAdmit: {},
	ActionDischarge: {}, ActionSchedule: {}, ActionApprove: {}, ActionAssign: {},
}

// ParseAction validates a raw action name against the closed action set.
func ParseAction(s string) (Action, bool) {
	a := Action(s)
	_, ok := knownActions[a]
	return a, ok
}

// SubjectType is the logical kind of thing an action targets.
type SubjectType string

const (
	// SubjectAll is the wildcard subject: a rule for SubjectAll matches
	// queries against every subject type.
	SubjectAll SubjectType = "all"

	SubjectOrganization    SubjectType = "Organization"
	SubjectUser            SubjectType = "User"
	SubjectDepartment      SubjectType = "Department"
	SubjectRole            SubjectType = "Role"
	SubjectPermission      SubjectType = "Permission"
	SubjectPatient         SubjectType = "Patient"
	SubjectMedicalRecord   SubjectType = "MedicalRecord"
	SubjectAppointment     SubjectType = "Appointment"
	SubjectShiftType       SubjectType = "ShiftType"
	SubjectStaffProfile    SubjectType = "StaffProfile"
	SubjectShiftSchedule   SubjectType = "ShiftSchedule"
	SubjectShiftAttendance SubjectType = "ShiftAttendance"
	SubjectPayPeriod       SubjectType = "PayPeriod"
	SubjectStaffPayment    SubjectType = "StaffPayment"
	SubjectInvitation      SubjectType = "Invitation"
)

var knownSubjects = map[SubjectType]struct{}{
	SubjectAll: {}, SubjectOrganization: {}, SubjectUser: {}, SubjectDepartment: {},
	SubjectRole: {}, SubjectPermission: {}, SubjectPatient: {}, SubjectMedicalRecord: {},
	SubjectAppointment: {}, SubjectShiftType: {}, SubjectStaffProfile: {},
	SubjectShiftSchedule: {}, SubjectShiftAttendance: {}, SubjectPayPeriod: {},
	SubjectStaffPayment: {}, SubjectInvitation: {},
}

// ParseSubjectType validates a raw subject name against the closed subject set.
func ParseSubjectType(s string) (SubjectType, bool) {
	st := SubjectType(s)
	_, ok := knownSubjects[st]
	return st, ok
}

// GrantSource tells where a grant came from.
type GrantSource string

const (
	SourceRole   GrantSource = "role"
	SourceDirect GrantSource = "direct"
)

// SuperAdminRoleName is the system role whose members receive an
// unconditional manage-everything rule.
const SuperAdminRoleName = "Super Admin"

// Grant is one raw permission assignment as supplied by the catalog: either a
// permission of a role the user holds (Role set, ExpiresAt inherited from the
// role assignment) or a direct per-user override (ExpiresAt per grant).
type Grant struct {
	Action    Action      `json:"action" yaml:"action"`
	Subject   SubjectType `json:"subject" yaml:"subject"`
	Condition any         `json:"condition,omitempty" yaml:"condition,omitempty"` // raw condition template; nil = unconditional
	Source    GrantSource `json:"source" yaml:"source"`
	Role      string      `json:"role,omitempty" yaml:"role,omitempty"` // role name for role-sourced grants
	ExpiresAt time.Time   `json:"expires_at,omitempty" yaml:"expires_at,omitempty"` // zero = no expiry
}

// IsExpired reports whether the grant must be excluded from builds.
func (g Grant) IsExpired(now time.Time) bool {
	return !g.ExpiresAt.IsZero() && !g.ExpiresAt.After(now)
}

// Rule is the resolved, build-time form of a Grant: variable references in the
// condition template have been substituted with concrete context values. A
// Rule with a nil Condition matches unconditionally for its action/subject.
type Rule struct {
	Action    Action
	Subject   SubjectType
	Condition map[string]any

	// never marks a rule derived from a malformed condition template. It
	// still occupies its position in the ruleset but can never be satisfied.
	never bool
}

// Unsatisfiable reports whether the rule was neutralized because its condition
// template was malformed.
func (r Rule) Unsatisfiable() bool { return r.never }

// Ruleset is the ordered, immutable list of rules produced for exactly one
// (user, context) pair. It has no identity beyond its contents; it is safe to
// discard after one decision or to reuse for the lifetime of one request.
type Ruleset struct {
	rules []Rule
}

// NewRuleset copies the given rules into an immutable Ruleset.
func NewRuleset(rules ...Rule) Ruleset {
	rs := Ruleset{rules: make([]Rule, len(rules))}
	copy(rs.rules, rules)
	return rs
}

// Rules returns a copy of the rules in evaluation order.
func (r Ruleset) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Len returns the number of rules.
func (r Ruleset) Len() int { return len(r.rules) }

// Context is the per-request attribute bag used to resolve condition
// templates. It always carries the current user identity under "user"
// (id, organizationId, departmentIds, headOfDepartmentIds, staffProfileId)
// plus caller-supplied extension keys. It is read-only to the engine.
type Context map[string]any

// UserID returns context's user.id if present.
func (c Context) UserID() string {
	v, ok := utils.Lookup(c, "user.id")
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// OrganizationID returns the caller's user.organizationId when it is present
// and non-empty.
func (c Context) OrganizationID() (string, bool) {
	v, ok := utils.Lookup(c, "user.organizationId")
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
