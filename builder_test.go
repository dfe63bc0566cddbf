package ability

import (
	"testing"
	"time"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func orgContext(orgID string) Context {
	return Context{"user": map[string]any{"id": "u-1", "organizationId": orgID}}
}

func TestBuildRulesetUnknownUser(t *testing.T) {
	rs := BuildRuleset(nil, Context{}, testNow)
	if !rs.Can(ActionRead, SubjectAll, map[string]any{"isPublic": true}) {
		t.Fatalf("public record should be readable")
	}
	if rs.Can(ActionRead, SubjectAll, map[string]any{"isPublic": false}) {
		t.Fatalf("non-public record should be denied")
	}
}

func TestBuildRulesetConditionalRoleGrant(t *testing.T) {
	grants := []Grant{{
		Action:    ActionRead,
		Subject:   SubjectPatient,
		Condition: map[string]any{"organizationId": "$user.organizationId"},
		Source:    SourceRole,
		Role:      "Doctor",
	}}
	rs := BuildRuleset(grants, orgContext("H1"), testNow)

	if !rs.Can(ActionRead, SubjectPatient, map[string]any{"organizationId": "H1"}) {
		t.Fatalf("same-org patient should be readable")
	}
	if rs.Can(ActionRead, SubjectPatient, map[string]any{"organizationId": "H2"}) {
		t.Fatalf("cross-org patient read should be denied")
	}
	if rs.Can(ActionUpdate, SubjectPatient, map[string]any{"organizationId": "H2"}) {
		t.Fatalf("cross-org patient update should be denied")
	}
}

func TestBuildRulesetExpiredGrant(t *testing.T) {
	yesterday := testNow.Add(-24 * time.Hour)
	grants := []Grant{{
		Action:    ActionRead,
		Subject:   SubjectPatient,
		Condition: map[string]any{"organizationId": "$user.organizationId"},
		Source:    SourceRole,
		Role:      "Doctor",
		ExpiresAt: yesterday,
	}}
	rs := BuildRuleset(grants, orgContext("H1"), testNow)

	if rs.Can(ActionRead, SubjectPatient, map[string]any{"organizationId": "H1"}) {
		t.Fatalf("expired grant must not grant access")
	}
	if rs.Can(ActionRead, SubjectPatient, map[string]any{"organizationId": "H2"}) {
		t.Fatalf("expired grant must not grant access")
	}
}

func TestBuildRulesetExpiryBoundary(t *testing.T) {
	atNow := Grant{Action: ActionRead, Subject: SubjectPatient, ExpiresAt: testNow}
	if !atNow.IsExpired(testNow) {
		t.Fatalf("grant expiring exactly now should be expired")
	}
	future := Grant{Action: ActionRead, Subject: SubjectPatient, ExpiresAt: testNow.Add(time.Minute)}
	if future.IsExpired(testNow) {
		t.Fatalf("future grant should not be expired")
	}
	forever := Grant{Action: ActionRead, Subject: SubjectPatient}
	if forever.IsExpired(testNow) {
		t.Fatalf("zero expiry means no expiry")
	}
}

func TestBuildRulesetManageSupersedes(t *testing.T) {
	grants := []Grant{{Action: ActionManage, Subject: SubjectStaffProfile, Source: SourceDirect}}
	rs := BuildRuleset(grants, Context{"user": map[string]any{"id": "u-1"}}, testNow)

	if !rs.Can(ActionDelete, SubjectStaffProfile, map[string]any{"staffType": "NURSE"}) {
		t.Fatalf("manage should satisfy delete")
	}
	if !rs.Can(ActionRead, SubjectStaffProfile, nil) {
		t.Fatalf("manage should satisfy read")
	}
	if rs.Can(ActionDelete, SubjectPatient, nil) {
		t.Fatalf("manage on StaffProfile must not leak to other subjects")
	}
}

func TestBuildRulesetLaterRuleWins(t *testing.T) {
	grants := []Grant{
		{Action: ActionRead, Subject: SubjectInvitation, Condition: map[string]any{"status": "PENDING"}, Source: SourceRole, Role: "HR"},
		{Action: ActionRead, Subject: SubjectInvitation, Source: SourceDirect},
	}
	rs := BuildRuleset(grants, Context{"user": map[string]any{"id": "u-1"}}, testNow)

	if !rs.Can(ActionRead, SubjectInvitation, map[string]any{"status": "REVOKED"}) {
		t.Fatalf("later unconditional rule should override the conditional one")
	}
}

func TestBuildRulesetOrgBoundaryFloor(t *testing.T) {
	grants := []Grant{{Action: ActionCreate, Subject: SubjectAppointment, Source: SourceRole, Role: "Receptionist"}}
	rs := BuildRuleset(grants, orgContext("H1"), testNow)

	if !rs.Can(ActionRead, SubjectMedicalRecord, map[string]any{"organizationId": "H1"}) {
		t.Fatalf("org members should read records of their own org")
	}
	if rs.Can(ActionRead, SubjectMedicalRecord, map[string]any{"organizationId": "H2"}) {
		t.Fatalf("org floor must not cross organizations")
	}
	if rs.Can(ActionUpdate, SubjectMedicalRecord, map[string]any{"organizationId": "H1"}) {
		t.Fatalf("org floor is read-only")
	}
}

func TestBuildRulesetNoOrgNoFloor(t *testing.T) {
	grants := []Grant{{Action: ActionCreate, Subject: SubjectAppointment, Source: SourceDirect}}
	rs := BuildRuleset(grants, Context{"user": map[string]any{"id": "u-1"}}, testNow)

	if rs.Can(ActionRead, SubjectMedicalRecord, map[string]any{"organizationId": "H1"}) {
		t.Fatalf("no org in context means no org floor")
	}
}

func TestBuildRulesetSuperAdmin(t *testing.T) {
	grants := []Grant{{
		Action:  ActionRead,
		Subject: SubjectUser,
		Source:  SourceRole,
		Role:    SuperAdminRoleName,
	}}
	rs := BuildRuleset(grants, orgContext("H1"), testNow)

	actions := []Action{ActionManage, ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionDiagnose, ActionPrescribe, ActionAdmit, ActionDischarge, ActionSchedule, ActionApprove, ActionAssign}
	subjects := []SubjectType{SubjectOrganization, SubjectUser, SubjectPatient, SubjectMedicalRecord, SubjectPayPeriod, SubjectAll}
	for _, a := range actions {
		for _, s := range subjects {
			if !rs.Can(a, s, map[string]any{"organizationId": "elsewhere"}) {
				t.Fatalf("super admin denied %s on %s", a, s)
			}
		}
	}
}

func TestBuildRulesetExpiredSuperAdmin(t *testing.T) {
	grants := []Grant{{
		Action:    ActionRead,
		Subject:   SubjectUser,
		Source:    SourceRole,
		Role:      SuperAdminRoleName,
		ExpiresAt: testNow.Add(-time.Hour),
	}}
	rs := BuildRuleset(grants, Context{"user": map[string]any{"id": "u-1"}}, testNow)

	if rs.Can(ActionManage, SubjectAll, nil) {
		t.Fatalf("expired super admin assignment must not produce manage-all")
	}
}

func TestBuildRulesetMalformedTemplate(t *testing.T) {
	grants := []Grant{
		{Action: ActionRead, Subject: SubjectPatient, Condition: []any{"not", "a", "map"}, Source: SourceDirect},
		{Action: ActionRead, Subject: SubjectAppointment, Source: SourceDirect},
	}
	rs := BuildRuleset(grants, Context{"user": map[string]any{"id": "u-1"}}, testNow)

	if rs.Can(ActionRead, SubjectPatient, map[string]any{"organizationId": "H1"}) {
		t.Fatalf("malformed template must neutralize the rule, not over-grant")
	}
	if !rs.Can(ActionRead, SubjectAppointment, nil) {
		t.Fatalf("malformed template must not poison sibling grants")
	}

	rules := rs.Rules()
	if len(rules) != 2 {
		t.Fatalf("expected both rules present, got %d", len(rules))
	}
	if !rules[0].Unsatisfiable() {
		t.Fatalf("neutralized rule should report unsatisfiable")
	}
}

func TestBuildRulesetEmptyConditionIsUnconditional(t *testing.T) {
	grants := []Grant{{Action: ActionRead, Subject: SubjectPatient, Condition: map[string]any{}, Source: SourceDirect}}
	rs := BuildRuleset(grants, Context{"user": map[string]any{"id": "u-1"}}, testNow)

	if !rs.Can(ActionRead, SubjectPatient, nil) {
		t.Fatalf("empty condition constrains nothing, nil instance should pass")
	}
	if !rs.Can(ActionRead, SubjectPatient, map[string]any{"organizationId": "H1"}) {
		t.Fatalf("empty condition should allow any instance")
	}
}

func TestBuildRulesetIsPure(t *testing.T) {
	grants := []Grant{{
		Action:    ActionRead,
		Subject:   SubjectPatient,
		Condition: map[string]any{"organizationId": "$user.organizationId"},
		Source:    SourceRole,
		Role:      "Doctor",
	}}
	ctx := orgContext("H1")
	first := BuildRuleset(grants, ctx, testNow)
	second := BuildRuleset(grants, ctx, testNow)

	if first.Len() != second.Len() {
		t.Fatalf("repeated builds differ in size: %d vs %d", first.Len(), second.Len())
	}
	// mutating the returned rule copies must not affect the ruleset
	rules := first.Rules()
	rules[0].Condition = map[string]any{"organizationId": "hacked"}
	if !first.Can(ActionRead, SubjectPatient, map[string]any{"organizationId": "H1"}) {
		t.Fatalf("ruleset mutated through Rules() copy")
	}
}

func TestPublicRulesetShape(t *testing.T) {
	rs := PublicRuleset()
	if rs.Len() != 1 {
		t.Fatalf("public ruleset should have one rule, got %d", rs.Len())
	}
	if !rs.Can(ActionRead, SubjectPatient, map[string]any{"isPublic": true}) {
		t.Fatalf("public rule should apply to every subject type")
	}
	if rs.Can(ActionUpdate, SubjectPatient, map[string]any{"isPublic": true}) {
		t.Fatalf("public rule is read-only")
	}
}
