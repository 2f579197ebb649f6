// Package logger provides leveled logging for pkgseal commands.
//
// The logger supports multiple verbosity levels controlled by command-line
// flags. Output is formatted with semantic prefixes and colors.
//
// # Verbosity Levels
//
//   - --verbose: Shows info messages
//   - --debug: Shows all messages including debug details
//
// Progress lines, warnings and errors are always shown.
//
// # Transcript
//
// A Logger may carry a Sink. Every message is copied there without color
// and regardless of verbosity. The decrypt command points the sink at a
// Transcript and flushes it to a .pass or .fail marker beside the
// configuration once the run is over:
//
//	var transcript logger.Transcript
//	log := logger.Logger{Verbose: verbose, Sink: &transcript}
//	defer transcript.Flush(configPath + ".pass")
package logger
