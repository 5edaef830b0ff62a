package domain

// SystemContext describes the environment the command will run in.
// Empty fields mean the information was not collected.
type SystemContext struct {
	OS         string
	Shell      string
	WorkingDir string
}
