// Package process runs a single child under a procguard Guard.
//
// A Runner starts the child with its terminal inherited, then waits for the
// first stop trigger:
//   - the child exits by itself
//   - procguard receives SIGINT or SIGTERM
//   - the deadline elapses
//   - the stop file appears
//   - Shutdown is called
//
// Signal, deadline and stop-file triggers are published as
// events.StopRequestedEvent on the event bus, so anything else holding the
// bus can request a stop the same way. The guard is then disposed with the
// configured strategy and the disposition is mapped to an exit code:
//
//	exited(n), already_exited(n)  n, or 128+signal if the child died from a signal
//	timed_out                     124
//	interrupted                   130
//	killed                        137
//	unknown                       1
//
// Example:
//
//	r := process.NewRunner(process.Options{
//		Args:     []string{"ffmpeg", "-i", "in.mp4", "out.webm"},
//		Strategy: procguard.CtrlCWaitTimeoutKill(5 * time.Second),
//		Deadline: time.Hour,
//	}, bus, logging.GetLogger("runner"))
//	os.Exit(r.Run().ExitCode)
package process
