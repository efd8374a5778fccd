package bootstrap

import (
	"fmt"
	"strings"

	"pipeline-console/internal/config"
	"pipeline-console/internal/domain"
)

// FixDiagnostic applies the remediation for one failed diagnostic item and
// returns the refreshed report. Reachability failures have no automatic fix
// beyond restoring the default endpoint; the hint tells the user what to start.
// The stored value is reset; an environment override still takes precedence.
func (a *App) FixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	if a.Store == nil {
		return domain.DiagnosticReport{}, fmt.Errorf("settings store is not configured")
	}

	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	settings = config.Normalize(settings)

	fixed, changed, err := fixSettings(id, settings)
	if err != nil {
		return domain.DiagnosticReport{}, err
	}

	if changed {
		if saveErr := a.Store.Save(fixed); saveErr != nil {
			fixed = settings
			err = fmt.Errorf("save settings after fix: %w", saveErr)
		} else {
			a.log().WithField("item", id).Info("diagnostic fixed by restoring default")
		}
	}

	effective, envErr := a.withEnv(fixed)
	if envErr != nil {
		return domain.DiagnosticReport{}, envErr
	}
	return a.refreshDiagnosticsFromSettings(effective), err
}

// fixSettings resets the setting behind itemID to its default.
func fixSettings(itemID string, settings domain.Settings) (domain.Settings, bool, error) {
	defaults := config.DefaultSettings()

	switch itemID {
	case domain.DiagnosticModelServerURL, domain.DiagnosticModelServer:
		if settings.ModelServerURL == defaults.ModelServerURL {
			return settings, false, nil
		}
		settings.ModelServerURL = defaults.ModelServerURL
		return settings, true, nil
	case domain.DiagnosticPipelineURL, domain.DiagnosticPipeline:
		if settings.PipelineURL == defaults.PipelineURL {
			return settings, false, nil
		}
		settings.PipelineURL = defaults.PipelineURL
		return settings, true, nil
	default:
		return settings, false, fmt.Errorf("unsupported diagnostic item id: %s", itemID)
	}
}
