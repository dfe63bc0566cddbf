package ability

// SubjectTypeTag is the record field callers attach for guaranteed
// classification, bypassing the field-signature heuristic.
const SubjectTypeTag = "__subjectType"

// fieldSignature classifies an untagged record by the presence of fields.
// Order matters: the first matching signature wins.
type fieldSignature struct {
	fields  []string
	subject SubjectType
}

var detectionOrder = []fieldSignature{
	{[]string{"medicalRecordNumber"}, SubjectPatient},
	{[]string{"email", "firstName"}, SubjectUser},
	{[]string{"name", "organizationId", "parentId"}, SubjectDepartment},
	{[]string{"name", "isSystemRole"}, SubjectRole},
	{[]string{"action", "subject"}, SubjectPermission},
	{[]string{"shiftTypeId", "startDateTime"}, SubjectShiftSchedule},
	{[]string{"shiftScheduleId", "overtimeMinutes"}, SubjectShiftAttendance},
	{[]string{"startDate", "endDate"}, SubjectPayPeriod},
	{[]string{"staffProfileId", "payPeriodId"}, SubjectStaffPayment},
	{[]string{"token", "expiresAt"}, SubjectInvitation},
	{[]string{"staffType"}, SubjectStaffProfile},
	{[]string{"category", "name"}, SubjectOrganization},
}

// DetectSubjectType classifies an arbitrary data record into a logical
// subject type. An explicit SubjectTypeTag field wins; otherwise the ordered
// field-signature heuristic applies, and records matching nothing fall back
// to the wildcard SubjectAll. Total: never fails, ambiguity is resolved by
// signature order.
func DetectSubjectType(instance map[string]any) SubjectType {
	if instance == nil {
		return SubjectAll
	}
	if tag, ok := instance[SubjectTypeTag].(string); ok {
		if st, valid := ParseSubjectType(tag); valid {
			return st
		}
	}
	for _, sig := range detectionOrder {
		if hasFields(instance, sig.fields) {
			return sig.subject
		}
	}
	return SubjectAll
}

func hasFields(instance map[string]any, fields []string) bool {
	for _, f := range fields {
		if _, ok := instance[f]; !ok {
			return false
		}
	}
	return true
}

// Tag returns a shallow copy of the record with the explicit subject type tag
// attached, for callers that already know the record's type.
func Tag(instance map[string]any, subject SubjectType) map[string]any {
	out := make(map[string]any, len(instance)+1)
	for k, v := range instance {
		out[k] = v
	}
	out[SubjectTypeTag] = string(subject)
	return out
}
