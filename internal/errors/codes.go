package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidDelay    ErrorCode = "invalid_delay"
	ErrInvalidInterval ErrorCode = "invalid_interval"
	ErrInvalidAction   ErrorCode = "invalid_action"
	ErrInvalidBackend  ErrorCode = "invalid_backend"
	ErrInvalidVendorID ErrorCode = "invalid_vendor_id"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrAlreadyRunning ErrorCode = "already_running"

	// Application errors
	ErrInitApp   ErrorCode = "init_app_failed"
	ErrDetach    ErrorCode = "detach_failed"
	ErrInitPower ErrorCode = "init_power_failed"

	// Operation errors
	ErrOperationFailed ErrorCode = "operation_failed"
	ErrTimeout         ErrorCode = "operation_timeout"

	// Journal errors
	ErrInitJournal  ErrorCode = "init_journal_failed"
	ErrCloseJournal ErrorCode = "close_journal_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:        "Internal error occurred",
	ErrInvalidArgument: "Invalid argument provided",
	ErrInvalidConfig:   "Invalid configuration",
	ErrBindFlags:       "Failed to bind flags",
	ErrReadConfig:      "Failed to read configuration",
	ErrInvalidDelay:    "Invalid delay value",
	ErrInvalidInterval: "Invalid interval value",
	ErrInvalidAction:   "Invalid action",
	ErrInvalidBackend:  "Invalid backend",
	ErrInvalidVendorID: "Invalid USB vendor ID",
	ErrInvalidLogLevel: "Invalid log level",
	ErrAlreadyRunning:  "Another instance is already running",
	ErrInitApp:         "Failed to initialize application",
	ErrDetach:          "Failed to detach from terminal",
	ErrInitPower:       "Failed to initialize power executor",
	ErrOperationFailed: "Operation failed",
	ErrTimeout:         "Operation timed out",
	ErrInitJournal:     "Failed to initialize event journal",
	ErrCloseJournal:    "Failed to close event journal",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
