// Package process provides subprocess lifecycle management for the run
// supervisor.
//
// A Process wraps os/exec for one child:
//   - Start spawns without blocking; Done is closed once the child is reaped
//   - the child runs in its own process group so terminal signals reach the
//     supervisor only
//   - Stop sends SIGINT, waits a bounded interval, then SIGKILLs the group
//   - stdout/stderr are streamed line by line to a logger, with pluggable
//     level parsing, and to an optional OutputHandler
//
// Example:
//
//	p := process.New("encoder", process.RoleConsumer, args, logger)
//	p.SetLogParser(logging.GetLogger("ffmpeg"), ffmpeg.ParseLogLevel)
//	if err := p.Start(); err != nil {
//	    return err
//	}
//	defer p.Stop()
//	<-p.Done()
package process
