package camnotify

import "github.com/httprunner/CamNotify/internal/env"

// Environment variable names read by the camnotify command.
const (
	// EnvSettingsPath points at the settings store; *.db and *.sqlite files use
	// SQLite, anything else a dotenv file.
	EnvSettingsPath = "CAMNOTIFY_SETTINGS_PATH"
	// EnvDriver selects the capture driver, v4l2 or adb.
	EnvDriver   = "CAMNOTIFY_DRIVER"
	EnvFFmpeg   = "CAMNOTIFY_FFMPEG"
	EnvSpoolDir = "CAMNOTIFY_SPOOL_DIR"
	EnvTitle    = "CAMNOTIFY_TITLE"
	EnvMaxProbe = "CAMNOTIFY_MAX_PROBE"
	// EnvGrabTimeout bounds one v4l2 frame grab, as a Go duration.
	EnvGrabTimeout = "CAMNOTIFY_GRAB_TIMEOUT"
	// EnvLogJSON switches logs from console text to JSON lines.
	EnvLogJSON = "CAMNOTIFY_LOG_JSON"
	// EnvDotEnv overrides .env discovery.
	EnvDotEnv = env.EnvDotEnvPath
)

// Capture driver names.
const (
	DriverV4L2 = "v4l2"
	DriverADB  = "adb"
)
