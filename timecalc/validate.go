package timecalc

// =============================================================================
// TIME ENTRY VALIDATION
// =============================================================================

// EntryInput is the raw, unvalidated shape of a manual time entry.
type EntryInput struct {
	Date         string // "2006-01-02"
	StartTime    string // "HH:mm"
	EndTime      string // "HH:mm"
	BreakStart   string // optional, "HH:mm"
	BreakEnd     string // optional, "HH:mm"
	BreakMinutes int    // used only when no break window is given
	EmployeeID   string
}

// FieldError is a single validation failure tied to an input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidateEntry checks a time-entry input and returns every violation.
// An empty result means the input is valid. Unlike the creation path,
// which silently raises an insufficient break to the ArbZG minimum,
// validation reports the shortfall as an error so UIs can surface it.
func ValidateEntry(in EntryInput) []FieldError {
	return validateEntry(in, true)
}

// ValidateEntryLenient runs the same checks minus the legal-break rule.
// The creation and clock-out paths use it: they cure a short break by
// raising it, so reporting it would be contradictory.
func ValidateEntryLenient(in EntryInput) []FieldError {
	return validateEntry(in, false)
}

func validateEntry(in EntryInput, legalBreak bool) []FieldError {
	var errs []FieldError

	if in.Date == "" {
		errs = append(errs, FieldError{Field: "date", Message: "date is required"})
	}
	if in.StartTime == "" {
		errs = append(errs, FieldError{Field: "startTime", Message: "start time is required"})
	}
	if in.EndTime == "" {
		errs = append(errs, FieldError{Field: "endTime", Message: "end time is required"})
	}
	if in.EmployeeID == "" {
		errs = append(errs, FieldError{Field: "employeeId", Message: "employee is required"})
	}

	if in.StartTime != "" && !ValidHHMM(in.StartTime) {
		errs = append(errs, FieldError{Field: "startTime", Message: "format must be HH:mm"})
	}
	if in.EndTime != "" && !ValidHHMM(in.EndTime) {
		errs = append(errs, FieldError{Field: "endTime", Message: "format must be HH:mm"})
	}
	if in.BreakStart != "" && !ValidHHMM(in.BreakStart) {
		errs = append(errs, FieldError{Field: "breakStart", Message: "format must be HH:mm"})
	}
	if in.BreakEnd != "" && !ValidHHMM(in.BreakEnd) {
		errs = append(errs, FieldError{Field: "breakEnd", Message: "format must be HH:mm"})
	}

	if ValidHHMM(in.StartTime) && ValidHHMM(in.EndTime) {
		gross := GrossMinutes(in.StartTime, in.EndTime)
		if gross > MinutesPerDay {
			errs = append(errs, FieldError{Field: "endTime", Message: "a shift may last at most 24 hours"})
		}

		brk := BreakMinutes(in.BreakStart, in.BreakEnd, in.BreakMinutes)
		if brk < 0 {
			errs = append(errs, FieldError{Field: "breakMinutes", Message: "break must not be negative"})
		}
		if brk >= gross {
			errs = append(errs, FieldError{Field: "breakMinutes", Message: "break must be shorter than the shift"})
		}

		// ArbZG §4: reported here, silently raised on create/clock-out.
		if legalBreak {
			if gross > 9*60 && brk < 45 {
				errs = append(errs, FieldError{Field: "breakMinutes", Message: "more than 9h work requires at least 45 min break (ArbZG)"})
			} else if gross > 6*60 && brk < 30 {
				errs = append(errs, FieldError{Field: "breakMinutes", Message: "more than 6h work requires at least 30 min break (ArbZG)"})
			}
		}
	}

	if (in.BreakStart != "") != (in.BreakEnd != "") {
		errs = append(errs, FieldError{Field: "breakStart", Message: "break start and end must both be given"})
	}

	return errs
}
