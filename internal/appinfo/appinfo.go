// Package appinfo provides application identity constants.
// These are used across packages for consistent naming.
package appinfo

const (
	// AppName is the display name of the application.
	AppName = "RoomCheck"

	// DirName is the directory name used for storing application data.
	// Location: %LOCALAPPDATA%/roomcheck/ (Windows) or ~/.config/roomcheck/ (other)
	DirName = "roomcheck"

	// MutexName is the Windows mutex name for single instance control.
	// "Local\" scopes the mutex to the current user session. Only one
	// process may own the scanner's serial port at a time.
	MutexName = "Local\\roomcheck"

	// LockFileName is the lock file name for single instance control.
	LockFileName = "roomcheck.lock"

	// ConfigFileName is the configuration file name.
	ConfigFileName = "config.json"

	// SecretsFileName is the secrets file name.
	SecretsFileName = "secrets.json"

	// DatabaseFileName is the SQLite database file name.
	DatabaseFileName = "roomcheck.sqlite"

	// PasswordFileName receives the generated initial admin password.
	PasswordFileName = "initial_admin_password.txt"
)
