package main

// Flag names for Viper binding.
const (
	// Global flags
	FlagVerbose    = "verbose"
	FlagConfig     = "config"
	FlagLogFile    = "log-file"
	FlagStateFile  = "state-file"
	FlagSocketPath = "socket-path"

	// Start command flags
	FlagSerialPort = "serial-port"
	FlagSerialBaud = "serial-baud"
	FlagDaemon     = "daemon"

	// Stop command flags
	FlagForce = "force"

	// Events command flags
	FlagFollow = "follow"
	FlagCount  = "count"

	// Output format flags
	FlagJSON = "json"

	// Init command flags
	FlagDryRun = "dry-run"

	// Load command flags
	FlagStart = "start"
)
