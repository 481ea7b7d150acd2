package storage

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"auditcore/pkg/domain"
	"auditcore/pkg/errs"
)

// PresetStore persists named preset templates and implements preset.Store
// (spec §4.4), loading both the org-specific and default candidate for a
// name in one round trip.
type PresetStore struct {
	db *DBClient
}

// NewPresetStore constructs a PresetStore.
func NewPresetStore(db *DBClient) *PresetStore {
	return &PresetStore{db: db}
}

// Load returns the org-specific and default presets for name, either of
// which may be nil if absent.
func (s *PresetStore) Load(ctx context.Context, name string, organizationID domain.OrganizationID) (orgPreset, defaultPreset *domain.Preset, err error) {
	const stmt = `
SELECT organization_id, name, action, data_classification, defaults, required_fields, validation_overrides
FROM presets
WHERE name = $1 AND (organization_id = $2 OR organization_id = '')`

	rows, queryErr := s.db.Pool().Query(ctx, stmt, name, string(organizationID))
	if queryErr != nil {
		return nil, nil, errs.Wrap(errs.CodeTransient, "load preset candidates failed", queryErr)
	}
	defer rows.Close()

	for rows.Next() {
		p, scanErr := scanPreset(rows)
		if scanErr != nil {
			return nil, nil, scanErr
		}
		if p.OrganizationID == organizationID && organizationID != "" {
			orgPreset = p
		} else {
			defaultPreset = p
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errs.Wrap(errs.CodeTransient, "read preset candidates failed", err)
	}
	return orgPreset, defaultPreset, nil
}

// Save upserts p, keyed on (organizationId, name).
func (s *PresetStore) Save(ctx context.Context, p domain.Preset) error {
	defaults, err := json.Marshal(p.Defaults)
	if err != nil {
		return errs.Wrap(errs.CodeValidation, "marshal preset defaults failed", err)
	}
	required, err := json.Marshal(p.RequiredFields)
	if err != nil {
		return errs.Wrap(errs.CodeValidation, "marshal preset required fields failed", err)
	}
	overrides, err := json.Marshal(p.ValidationOverrides)
	if err != nil {
		return errs.Wrap(errs.CodeValidation, "marshal preset validation overrides failed", err)
	}

	const stmt = `
INSERT INTO presets (organization_id, name, action, data_classification, defaults, required_fields, validation_overrides)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (organization_id, name) DO UPDATE SET
	action = EXCLUDED.action,
	data_classification = EXCLUDED.data_classification,
	defaults = EXCLUDED.defaults,
	required_fields = EXCLUDED.required_fields,
	validation_overrides = EXCLUDED.validation_overrides`

	_, execErr := s.db.Pool().Exec(ctx, stmt, string(p.OrganizationID), p.Name, p.Action, string(p.DataClassification), defaults, required, overrides)
	if execErr != nil {
		return errs.Wrap(errs.CodeTransient, "save preset failed", execErr)
	}
	return nil
}

func scanPreset(rows pgx.Rows) (*domain.Preset, error) {
	var org, name, action, classification string
	var defaultsJSON, requiredJSON, overridesJSON []byte
	if err := rows.Scan(&org, &name, &action, &classification, &defaultsJSON, &requiredJSON, &overridesJSON); err != nil {
		return nil, errs.Wrap(errs.CodeTransient, "scan preset row failed", err)
	}

	p := &domain.Preset{
		OrganizationID:     domain.OrganizationID(org),
		Name:               name,
		Action:             action,
		DataClassification: domain.DataClassification(classification),
	}
	if len(defaultsJSON) > 0 {
		if err := json.Unmarshal(defaultsJSON, &p.Defaults); err != nil {
			return nil, errs.Wrap(errs.CodeValidation, "unmarshal preset defaults failed", err)
		}
	}
	if len(requiredJSON) > 0 {
		if err := json.Unmarshal(requiredJSON, &p.RequiredFields); err != nil {
			return nil, errs.Wrap(errs.CodeValidation, "unmarshal preset required fields failed", err)
		}
	}
	if len(overridesJSON) > 0 {
		if err := json.Unmarshal(overridesJSON, &p.ValidationOverrides); err != nil {
			return nil, errs.Wrap(errs.CodeValidation, "unmarshal preset validation overrides failed", err)
		}
	}
	return p, nil
}
