/*
account.go - Time-account recalculation and overtime alerts

The balance formula: carryover + confirmed net minutes since period
start, minus the contracted minutes for the weeks elapsed. Overtime
alerts compare the current calendar week (Monday-Sunday) against the
weekly contract and raise one manager notification per run.
*/
package automation

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/schichtwerk/shift-engine/core"
	"github.com/schichtwerk/shift-engine/timecalc"
)

// Recalculate refreshes one employee's time-account balance. An
// employee without an account is not an error; there is just nothing
// to do.
func (s *Service) Recalculate(ctx context.Context, workspaceID, employeeID string) error {
	account, err := s.store.GetAccount(ctx, workspaceID, employeeID)
	if core.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading time account: %w", err)
	}

	now := s.now()
	worked, err := s.store.SumNetMinutes(ctx, workspaceID, employeeID,
		account.PeriodStart, timecalc.DateOnly(now),
		[]core.EntryStatus{core.EntryConfirmed})
	if err != nil {
		return fmt.Errorf("summing confirmed minutes: %w", err)
	}

	weeks := int(math.Ceil(now.Sub(account.PeriodStart).Hours() / (24 * 7)))
	if weeks < 1 {
		weeks = 1
	}
	expected := weeks * account.ContractHours * 60

	account.BalanceMinutes = account.CarryoverMinutes + worked - expected
	account.LastCalculated = &now
	if err := s.store.UpsertAccount(ctx, account); err != nil {
		return fmt.Errorf("persisting balance: %w", err)
	}
	return nil
}

// =============================================================================
// OVERTIME ALERTS
// =============================================================================

// OvertimeAlert flags one employee over their weekly contract.
type OvertimeAlert struct {
	EmployeeID      string `json:"employeeId"`
	Name            string `json:"name"`
	OvertimeMinutes int    `json:"overtimeMinutes"`
}

// OvertimeCheck scans every employee holding a time account and
// compares this week's recorded net minutes against the contract. All
// offenders land in a single manager notification.
func (s *Service) OvertimeCheck(ctx context.Context, workspaceID string) ([]OvertimeAlert, error) {
	if !s.settingEnabled(ctx, workspaceID, core.SettingOvertimeAlerts) {
		return nil, nil
	}

	employees, err := s.store.ListEmployees(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("listing employees: %w", err)
	}
	monday, sunday := timecalc.WeekBounds(s.now())

	var alerts []OvertimeAlert
	for _, emp := range employees {
		account, err := s.store.GetAccount(ctx, workspaceID, emp.ID)
		if core.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading account for %s: %w", emp.ID, err)
		}

		worked, err := s.store.SumNetMinutes(ctx, workspaceID, emp.ID, monday, sunday,
			[]core.EntryStatus{core.EntrySubmitted, core.EntryReviewed, core.EntryConfirmed})
		if err != nil {
			return nil, fmt.Errorf("summing week for %s: %w", emp.ID, err)
		}
		contract := account.ContractHours * 60
		if worked > contract {
			alerts = append(alerts, OvertimeAlert{
				EmployeeID:      emp.ID,
				Name:            emp.FullName(),
				OvertimeMinutes: worked - contract,
			})
		}
	}

	if len(alerts) > 0 {
		lines := make([]string, len(alerts))
		for i, a := range alerts {
			lines[i] = fmt.Sprintf("%s: %sh over", a.Name, timecalc.FormatIndustrial(a.OvertimeMinutes))
		}
		s.notifyManagers(ctx, workspaceID, core.Event{
			Kind:        core.EventOvertimeAlert,
			WorkspaceID: workspaceID,
			Message:     fmt.Sprintf("overtime this week (%d): %s", len(alerts), strings.Join(lines, "; ")),
		})
	}
	return alerts, nil
}
