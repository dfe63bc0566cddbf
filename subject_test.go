package ability

import "testing"

func TestDetectSubjectTypeByTag(t *testing.T) {
	instance := map[string]any{SubjectTypeTag: "Patient", "email": "a@b.c", "firstName": "Ann"}
	if got := DetectSubjectType(instance); got != SubjectPatient {
		t.Fatalf("tag should win over field signature, got %s", got)
	}
}

func TestDetectSubjectTypeInvalidTagFallsThrough(t *testing.T) {
	instance := map[string]any{SubjectTypeTag: "Spaceship", "email": "a@b.c", "firstName": "Ann"}
	if got := DetectSubjectType(instance); got != SubjectUser {
		t.Fatalf("bad tag should fall back to heuristic, got %s", got)
	}
}

func TestDetectSubjectTypeSignatures(t *testing.T) {
	cases := []struct {
		name     string
		instance map[string]any
		want     SubjectType
	}{
		{"patient", map[string]any{"medicalRecordNumber": "MRN-1"}, SubjectPatient},
		{"user", map[string]any{"email": "a@b.c", "firstName": "Ann"}, SubjectUser},
		{"department", map[string]any{"name": "ICU", "organizationId": "o1", "parentId": nil}, SubjectDepartment},
		{"role", map[string]any{"name": "Nurse", "isSystemRole": false}, SubjectRole},
		{"permission", map[string]any{"action": "read", "subject": "Patient"}, SubjectPermission},
		{"shift schedule", map[string]any{"shiftTypeId": "s1", "startDateTime": "2026-01-01T08:00:00Z"}, SubjectShiftSchedule},
		{"shift attendance", map[string]any{"shiftScheduleId": "ss1", "overtimeMinutes": 30}, SubjectShiftAttendance},
		{"pay period", map[string]any{"startDate": "2026-01-01", "endDate": "2026-01-15"}, SubjectPayPeriod},
		{"staff payment", map[string]any{"staffProfileId": "sp1", "payPeriodId": "pp1"}, SubjectStaffPayment},
		{"invitation", map[string]any{"token": "tok", "expiresAt": "2026-02-01"}, SubjectInvitation},
		{"staff profile", map[string]any{"staffType": "NURSE"}, SubjectStaffProfile},
		{"organization", map[string]any{"category": "HOSPITAL", "name": "General"}, SubjectOrganization},
	}
	for _, tc := range cases {
		if got := DetectSubjectType(tc.instance); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

// A patient record with an MRN also carries name-like fields; the patient
// signature must win because it is checked first.
func TestDetectSubjectTypeOrderResolvesAmbiguity(t *testing.T) {
	instance := map[string]any{
		"medicalRecordNumber": "MRN-2",
		"email":               "p@b.c",
		"firstName":           "Pat",
	}
	if got := DetectSubjectType(instance); got != SubjectPatient {
		t.Fatalf("expected Patient by order, got %s", got)
	}
}

func TestDetectSubjectTypeFallback(t *testing.T) {
	if got := DetectSubjectType(nil); got != SubjectAll {
		t.Fatalf("nil instance should classify as all, got %s", got)
	}
	if got := DetectSubjectType(map[string]any{"foo": 1}); got != SubjectAll {
		t.Fatalf("unknown shape should classify as all, got %s", got)
	}
}

func TestTagAttachesWithoutMutating(t *testing.T) {
	orig := map[string]any{"foo": 1}
	tagged := Tag(orig, SubjectAppointment)
	if DetectSubjectType(tagged) != SubjectAppointment {
		t.Fatalf("tagged record not classified")
	}
	if _, ok := orig[SubjectTypeTag]; ok {
		t.Fatalf("Tag mutated its input")
	}
}
