package env

// Args are the command line switches shared by the subcommands.
type Args struct {
	Config    *string
	LogLevel  *string
	LogFormat *string
	// Once runs a single wake cycle and exits
	Once *bool
}
