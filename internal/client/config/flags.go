package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/whispertag/whispertag/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-g string   comma-separated storage gateway endpoints
//	-t int      tag write timeout in seconds
//	-r int      relay TTL in seconds
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-g", "-t", "-r"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	endpoints := fs.String("g", strings.Join(cfg.GatewayEndpoints, ","), "storage gateway endpoints, comma-separated")
	writeTimeout := fs.Int("t", int(cfg.WriteTimeout.Seconds()), "tag write timeout (in seconds)")
	relayTTL := fs.Int("r", int(cfg.RelayTTL.Seconds()), "physical key relay TTL (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	if *endpoints != "" {
		cfg.GatewayEndpoints = strings.Split(*endpoints, ",")
	}
	cfg.WriteTimeout = time.Duration(*writeTimeout) * time.Second
	cfg.RelayTTL = time.Duration(*relayTTL) * time.Second
}
