package pipeline

import (
	"github.com/mssola/useragent"

	"auditcore/pkg/domain"
)

// enrichUserAgent normalizes SessionContext.UserAgent into the event's
// Details for forensic/audit enrichment (spec §3 SessionContext.userAgent
// is the raw client-supplied string; browser/OS/bot classification is a
// supplemental derived field, not part of the canonical hash tuple, so it
// is safe to add here regardless of enqueue order relative to sealing).
func enrichUserAgent(event domain.AuditEvent) domain.AuditEvent {
	if event.SessionContext == nil || event.SessionContext.UserAgent == "" {
		return event
	}

	ua := useragent.New(event.SessionContext.UserAgent)
	browserName, browserVersion := ua.Browser()

	parsed := map[string]any{
		"browser":        browserName,
		"browserVersion": browserVersion,
		"os":             ua.OS(),
		"mobile":         ua.Mobile(),
		"bot":            ua.Bot(),
	}

	if event.Details == nil {
		event.Details = map[string]any{}
	}
	if _, exists := event.Details["userAgentParsed"]; !exists {
		event.Details["userAgentParsed"] = parsed
	}
	return event
}
