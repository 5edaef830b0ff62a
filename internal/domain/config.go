package domain

// Config mirrors the YAML config file (default <user config dir>/q/config.yaml).
type Config struct {
	ConfigFormatVersion string            `yaml:"config_format_version" json:"config_format_version"`
	Preferences         Preferences       `yaml:"preferences" json:"preferences"`
	Providers           []ProviderConfig  `yaml:"providers" json:"providers"`
	Context             ContextSettings   `yaml:"context" json:"context"`
	Execution           ExecutionSettings `yaml:"execution" json:"execution"`
	Security            SecuritySettings  `yaml:"security" json:"security"`
}

// Preferences captures provider selection and request behaviour.
type Preferences struct {
	DefaultProvider string `yaml:"default_provider" json:"default_provider"`
	TimeoutSeconds  int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	MaxAttempts     int    `yaml:"max_attempts" json:"max_attempts"`
	Verbose         bool   `yaml:"verbose" json:"verbose"`
}

// ContextSettings controls what is sent alongside the query.
type ContextSettings struct {
	IncludeShellInfo bool   `yaml:"include_shell_info" json:"include_shell_info"`
	IncludeDirectory bool   `yaml:"include_directory" json:"include_directory"`
	Shell            string `yaml:"shell" json:"shell"`
}

// ExecutionSettings controls how approved commands run.
type ExecutionSettings struct {
	Shell           string `yaml:"shell" json:"shell"`
	AutoConfirm     bool   `yaml:"auto_confirm" json:"auto_confirm"`
	ShowExplanation bool   `yaml:"show_explanation" json:"show_explanation"`
	CopyToClipboard bool   `yaml:"copy_to_clipboard" json:"copy_to_clipboard"`
}

// SecuritySettings points at extra risk rules.
type SecuritySettings struct {
	RulesFile string `yaml:"rules_file" json:"rules_file"`
}
