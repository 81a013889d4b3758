package models

const (
	// SettingDefaultLimit holds the global concurrent membership limit
	SettingDefaultLimit = "default_limit"

	// DefaultLimitValue is seeded when no default limit exists
	DefaultLimitValue = "1"
)
