/*
Package automation implements the engine's background rules: absence
auto-approval and cascade cancellation, time-account recalculation,
overtime alerts, payroll month locking, and time-entry generation from
past shifts.

PURPOSE:
  Every rule is an idempotent function over the store, runnable from
  the API (scoped to one workspace) or from the scheduler sweep (all
  workspaces). The rule logic never branches on how it was invoked.

KEY CONCEPTS:
  - Per-workspace toggles: AutomationSetting rows override the
    defaults; a missing row means enabled
  - Injection, not imports: scheduling and timesheet consume this
    package through the small interfaces they declare (AbsencePolicy,
    AccountRecalculator), so the dependency arrow points here
  - Failures are contained: a rule that fails for one record logs and
    moves on; sweeps never abort half-way

SEE ALSO:
  - absence.go: auto-approve and cascade
  - account.go: balance recalculation and overtime alerts
  - payroll.go: month lock / unlock / export
  - entries.go: time-entry generation from past shifts
*/
package automation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/schichtwerk/shift-engine/core"
)

type Service struct {
	store    core.Store
	notifier core.Notifier

	// Now is overridable for tests; zero value means time.Now.
	Now func() time.Time
}

func NewService(store core.Store, notifier core.Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// =============================================================================
// SETTINGS
// =============================================================================

// Settings returns every automation toggle with stored overrides
// applied over the enabled default, in display order.
func (s *Service) Settings(ctx context.Context, workspaceID string) ([]*core.AutomationSetting, error) {
	stored, err := s.store.ListSettings(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	overrides := make(map[string]*core.AutomationSetting, len(stored))
	for _, st := range stored {
		overrides[st.Key] = st
	}
	out := make([]*core.AutomationSetting, 0, len(core.SettingKeys))
	for _, key := range core.SettingKeys {
		if st, ok := overrides[key]; ok {
			out = append(out, st)
			continue
		}
		out = append(out, &core.AutomationSetting{WorkspaceID: workspaceID, Key: key, Enabled: true})
	}
	return out, nil
}

// UpdateSetting stores one toggle override.
func (s *Service) UpdateSetting(ctx context.Context, workspaceID, key string, enabled bool) (*core.AutomationSetting, error) {
	known := false
	for _, k := range core.SettingKeys {
		if k == key {
			known = true
			break
		}
	}
	if !known {
		return nil, &core.ValidationError{Fields: []core.FieldError{
			{Field: "key", Message: fmt.Sprintf("unknown automation setting %q", key)},
		}}
	}
	setting := &core.AutomationSetting{
		WorkspaceID: workspaceID,
		Key:         key,
		Enabled:     enabled,
		UpdatedAt:   s.now(),
	}
	if err := s.store.UpsertSetting(ctx, setting); err != nil {
		return nil, fmt.Errorf("persisting setting: %w", err)
	}
	return setting, nil
}

func (s *Service) settingEnabled(ctx context.Context, workspaceID, key string) bool {
	settings, err := s.store.ListSettings(ctx, workspaceID)
	if err != nil {
		log.Printf("[Automation] loading settings for %s failed, assuming defaults: %v", workspaceID, err)
		return true
	}
	for _, st := range settings {
		if st.Key == key {
			return st.Enabled
		}
	}
	return true
}

// =============================================================================
// NOTIFICATION HELPERS
// =============================================================================

func (s *Service) notifyManagers(ctx context.Context, workspaceID string, e core.Event) {
	if s.notifier == nil || !s.settingEnabled(ctx, workspaceID, core.SettingNotifications) {
		return
	}
	employees, err := s.store.ListEmployees(ctx, workspaceID)
	if err != nil {
		log.Printf("[Automation] listing managers for %s failed: %v", workspaceID, err)
		return
	}
	for _, emp := range employees {
		if emp.Role.IsManagement() {
			e.RecipientID = emp.ID
			s.notifier.Notify(ctx, e)
		}
	}
}

func (s *Service) notify(ctx context.Context, e core.Event) {
	if s.notifier == nil || !s.settingEnabled(ctx, e.WorkspaceID, core.SettingNotifications) {
		return
	}
	s.notifier.Notify(ctx, e)
}
