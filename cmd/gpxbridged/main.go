// Command gpxbridged runs the protocol bridge daemon: it opens a
// downstream connection to a device speaking the binary packet
// protocol, exposes an upstream pseudo-terminal that looks like an
// ordinary line-oriented text-protocol printer, and dispatches every
// host line through the Response Translator.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/fry/gpxbridge/internal/daemon"
	"github.com/fry/gpxbridge/internal/dispatch"
	"github.com/fry/gpxbridge/internal/profile"
	"github.com/fry/gpxbridge/internal/session"
)

var (
	Version     = "dev"
	showVersion = flag.Bool("version", false, "If specified, the binary will show its version and exit")
	downPort    = flag.String("dev", "", "Downstream device to connect to, such as /dev/ttyUSB0 or /dev/ttyACM0")
	baudRate    = flag.Int("rate", 0, "Downstream baud rate; 0 picks the default (115200)")
	linkPath    = flag.String("link", "/tmp/gpxbridge.tty", "Symlink created pointing at the upstream PTY; empty to skip")
	profilePath = flag.String("profile", "", "Optional machine.json overriding the default profile")
)

func failf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(Version)
		return
	}
	if *downPort == "" {
		failf("missing required -dev flag (downstream device path)")
	}

	logger := log.New(os.Stderr, "gpxbridged: ", log.LstdFlags)

	prof := profile.NewRegistry()
	sess := session.New(nil, prof)
	if err := sess.Connect(*downPort, *baudRate); err != nil {
		failf("connecting to %s: %v", *downPort, err)
	}
	defer sess.Cleanup()
	sess.Initialize()

	// Initialize restores the default profile, so the override is loaded
	// after it.
	if *profilePath != "" {
		if err := prof.LoadFile(*profilePath); err != nil {
			failf("loading machine profile: %v", err)
		}
	}

	disp := dispatch.New(sess)
	port, err := daemon.Open(disp, *linkPath, logger)
	if err != nil {
		failf("opening daemon port: %v", err)
	}
	defer port.Close()

	logger.Printf("bridging %s at %d baud on %s", *downPort, *baudRate, port.Name())
	if err := port.Serve(); err != nil {
		failf("serving: %v", err)
	}
}
