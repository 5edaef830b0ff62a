package commands

// CLI-specific constants
const (
	// DefaultEditorCommand is the editor used when $EDITOR is unset
	DefaultEditorCommand = "vi"
	envKeyEditor         = "EDITOR"
)

// Error messages
const (
	ErrConfigLoaderUnavailable  = "config loader unavailable"
	ErrDoctorServiceUnavailable = "doctor service unavailable"
)

// Success messages
const (
	MsgConfigurationValid       = "Configuration valid"
	MsgNoDifferencesFromDefault = "No differences from default configuration."
	MsgNoKeyEntered             = "No key entered; configuration unchanged."
)
