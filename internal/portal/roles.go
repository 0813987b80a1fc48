package portal

// Response shaping: each resource has five fixed branches, one per role.
// The maps below are the exact field sets a role sees; anything not listed
// is withheld from that role's responses.

func shapePatient(role Role, p Patient) map[string]any {
	switch role {
	case RoleAdmin:
		return map[string]any{
			"id": p.ID, "name": p.Name, "gender": p.Gender,
			"birth_date": p.BirthDate, "phone": p.Phone, "status": p.Status,
			"created_at": p.CreatedAt, "updated_at": p.UpdatedAt,
		}
	case RolePhysician:
		return map[string]any{
			"id": p.ID, "name": p.Name, "gender": p.Gender,
			"birth_date": p.BirthDate, "phone": p.Phone, "status": p.Status,
			"created_at": p.CreatedAt,
		}
	case RoleNurse:
		return map[string]any{
			"id": p.ID, "name": p.Name, "gender": p.Gender,
			"birth_date": p.BirthDate, "status": p.Status,
		}
	case RoleLabTech:
		return map[string]any{
			"id": p.ID, "name": p.Name, "gender": p.Gender,
			"birth_date": p.BirthDate,
		}
	default: // pharmacist
		return map[string]any{
			"id": p.ID, "name": p.Name, "birth_date": p.BirthDate,
		}
	}
}

func shapeEncounter(role Role, e Encounter) map[string]any {
	switch role {
	case RoleAdmin:
		return map[string]any{
			"id": e.ID, "patient_id": e.PatientID, "department": e.Department,
			"reason": e.Reason, "notes": e.Notes,
			"occurred_at": e.OccurredAt, "created_at": e.CreatedAt,
		}
	case RolePhysician:
		return map[string]any{
			"id": e.ID, "patient_id": e.PatientID, "department": e.Department,
			"reason": e.Reason, "notes": e.Notes, "occurred_at": e.OccurredAt,
		}
	case RoleNurse:
		return map[string]any{
			"id": e.ID, "patient_id": e.PatientID, "department": e.Department,
			"reason": e.Reason, "occurred_at": e.OccurredAt,
		}
	case RoleLabTech:
		return map[string]any{
			"id": e.ID, "patient_id": e.PatientID, "department": e.Department,
			"occurred_at": e.OccurredAt,
		}
	default: // pharmacist
		return map[string]any{
			"id": e.ID, "patient_id": e.PatientID, "occurred_at": e.OccurredAt,
		}
	}
}

func shapeLab(role Role, l Lab) map[string]any {
	switch role {
	case RoleAdmin:
		return map[string]any{
			"id": l.ID, "patient_id": l.PatientID, "test_name": l.TestName,
			"result": l.Result, "unit": l.Unit,
			"collected_at": l.CollectedAt, "created_at": l.CreatedAt,
		}
	case RolePhysician:
		return map[string]any{
			"id": l.ID, "patient_id": l.PatientID, "test_name": l.TestName,
			"result": l.Result, "unit": l.Unit, "collected_at": l.CollectedAt,
		}
	case RoleNurse:
		return map[string]any{
			"id": l.ID, "patient_id": l.PatientID, "test_name": l.TestName,
			"result": l.Result, "collected_at": l.CollectedAt,
		}
	case RoleLabTech:
		return map[string]any{
			"id": l.ID, "patient_id": l.PatientID, "test_name": l.TestName,
			"result": l.Result, "unit": l.Unit,
			"collected_at": l.CollectedAt, "created_at": l.CreatedAt,
		}
	default: // pharmacist
		return map[string]any{
			"id": l.ID, "patient_id": l.PatientID, "test_name": l.TestName,
		}
	}
}

func shapeDiagnosis(role Role, d Diagnosis) map[string]any {
	switch role {
	case RoleAdmin:
		return map[string]any{
			"id": d.ID, "patient_id": d.PatientID, "code": d.Code,
			"description": d.Description, "notes": d.Notes, "created_at": d.CreatedAt,
		}
	case RolePhysician:
		return map[string]any{
			"id": d.ID, "patient_id": d.PatientID, "code": d.Code,
			"description": d.Description, "notes": d.Notes,
		}
	case RoleNurse:
		return map[string]any{
			"id": d.ID, "patient_id": d.PatientID, "code": d.Code,
			"description": d.Description,
		}
	case RoleLabTech:
		return map[string]any{
			"id": d.ID, "patient_id": d.PatientID, "code": d.Code,
		}
	default: // pharmacist
		return map[string]any{
			"id": d.ID, "patient_id": d.PatientID, "code": d.Code,
			"description": d.Description,
		}
	}
}

func shapePrescription(role Role, p Prescription) map[string]any {
	switch role {
	case RoleAdmin:
		return map[string]any{
			"id": p.ID, "patient_id": p.PatientID, "drug": p.Drug,
			"dose": p.Dose, "frequency": p.Frequency,
			"dispensed": p.Dispensed, "dispensed_at": p.DispensedAt,
			"created_at": p.CreatedAt,
		}
	case RolePhysician:
		return map[string]any{
			"id": p.ID, "patient_id": p.PatientID, "drug": p.Drug,
			"dose": p.Dose, "frequency": p.Frequency, "dispensed": p.Dispensed,
		}
	case RoleNurse:
		return map[string]any{
			"id": p.ID, "patient_id": p.PatientID, "drug": p.Drug,
			"dose": p.Dose, "dispensed": p.Dispensed,
		}
	case RoleLabTech:
		return map[string]any{
			"id": p.ID, "patient_id": p.PatientID, "drug": p.Drug,
		}
	default: // pharmacist
		return map[string]any{
			"id": p.ID, "patient_id": p.PatientID, "drug": p.Drug,
			"dose": p.Dose, "frequency": p.Frequency,
			"dispensed": p.Dispensed, "dispensed_at": p.DispensedAt,
			"created_at": p.CreatedAt,
		}
	}
}

// shapeUser never echoes the password
func shapeUser(u User) map[string]any {
	return map[string]any{
		"id": u.ID, "username": u.Username, "role": u.Role,
		"created_at": u.CreatedAt,
	}
}
