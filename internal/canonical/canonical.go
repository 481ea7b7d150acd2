// Package canonical renders the deterministic byte representation of an
// AuditEvent's critical fields that the Sealer hashes and signs.
package canonical

import (
	"sort"
	"strings"

	"auditcore/pkg/domain"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Bytes renders the canonical representation described in spec §4.1: keys
// sorted lexicographically, absent optional fields omitted entirely, '|'
// separating fields and '=' separating key from value. Two events with
// identical critical fields always render identical bytes, independent of
// construction or field insertion order.
func Bytes(e domain.AuditEvent) []byte {
	fields := criticalFields(e)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return []byte(b.String())
}

// criticalFields extracts the hash tuple named in spec §3: timestamp,
// action, status, principalId, organizationId, targetResourceType,
// targetResourceId, outcomeDescription. All eight are string-valued, so no
// generic number/boolean encoding is needed here; the field-encoding rules
// from §4.1 beyond string/timestamp formatting apply to details, not this
// tuple.
func criticalFields(e domain.AuditEvent) map[string]string {
	out := make(map[string]string, 8)

	if !e.Timestamp.IsZero() {
		out["timestamp"] = e.Timestamp.Format(timestampLayout)
	}
	if e.Action != "" {
		out["action"] = e.Action
	}
	if e.Status != "" {
		out["status"] = string(e.Status)
	}
	if e.PrincipalID != "" {
		out["principalId"] = string(e.PrincipalID)
	}
	if e.OrganizationID != "" {
		out["organizationId"] = string(e.OrganizationID)
	}
	if e.TargetResourceType != "" {
		out["targetResourceType"] = e.TargetResourceType
	}
	if e.TargetResourceID != "" {
		out["targetResourceId"] = e.TargetResourceID
	}
	if e.OutcomeDescription != "" {
		out["outcomeDescription"] = e.OutcomeDescription
	}
	return out
}

// String is a convenience wrapper over Bytes for logging/debugging.
func String(e domain.AuditEvent) string {
	return string(Bytes(e))
}
