package model

// Setting keys understood by the pipeline. Values are arbitrary JSON; the
// ingestion stage reads a snapshot at run start so a run never observes a
// mid-flight settings change.
const (
	SettingDailyQuota     = "daily_quota"
	SettingSegmentFilters = "segment_filters"
	SettingCooldownDays   = "cooldown_days"
	SettingAllowedDomains = "allowed_domains"
	SettingSkipRules      = "skip_rules"
	SettingPageCursor     = "page_cursor"
)

// IngestionSettings is the snapshot of settings an ingestion run operates on.
type IngestionSettings struct {
	DailyQuota     int      `json:"daily_quota"`
	Filters        Filters  `json:"filters"`
	CooldownDays   int      `json:"cooldown_days"`
	AllowedDomains []string `json:"allowed_domains,omitempty"`
	SkipFreeEmail  bool     `json:"skip_free_email"`
	PageCursor     int      `json:"page_cursor"`
}

// DefaultIngestionSettings returns the snapshot used when no settings rows
// exist yet.
func DefaultIngestionSettings() IngestionSettings {
	return IngestionSettings{
		DailyQuota:   25,
		CooldownDays: 90,
		PageCursor:   1,
	}
}
