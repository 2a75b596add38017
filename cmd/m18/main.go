// Command m18 is a CLI collaborator over the Session Orchestrator: reset,
// read one or more registers, sweep the full register map, drive the
// charger emulator, or run a brute-force discovery scan against an M18
// pack attached over a one-wire serial link.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mnh-jansson/m18-protocol/pkg/frame"
	"github.com/mnh-jansson/m18-protocol/pkg/register"
	"github.com/mnh-jansson/m18-protocol/pkg/schema"
	"github.com/mnh-jansson/m18-protocol/pkg/session"
	"github.com/mnh-jansson/m18-protocol/pkg/snapshot"
	"github.com/mnh-jansson/m18-protocol/pkg/telemetry"
)

var (
	serialDevice = flag.String("serial", "/dev/ttyUSB0", "Serial device path")
	verbose      = flag.Bool("verbose", false, "Log every frame sent and received")
	redisAddr    = flag.String("redis-addr", "", "Redis server address; leave empty to disable telemetry publishing")
	redisPass    = flag.String("redis-pass", "", "Redis password")
	redisDB      = flag.Int("redis-db", 0, "Redis database number")
	snapshotPath = flag.String("snapshot", "", "Write a CBOR snapshot of read-all's raw payloads to this path")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	args := flag.Args()
	if len(args) < 1 {
		log.Fatalf("usage: m18 [flags] <reset|read|read-all|health|note|charge|calibrate|scan> [args...]")
	}
	cmd, rest := args[0], args[1:]

	v := frame.Silent
	if *verbose {
		v = frame.Verbose
	}

	s, err := session.Open(*serialDevice, v)
	if err != nil {
		log.Fatalf("open %s: %v", *serialDevice, err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Printf("signal received, cancelling...")
		cancel()
	}()

	if err := s.Reset(ctx); err != nil {
		log.Fatalf("reset: %v", err)
	}

	var pub *telemetry.Publisher
	if *redisAddr != "" {
		pub, err = telemetry.New(*redisAddr, *redisPass, *redisDB)
		if err != nil {
			log.Fatalf("connect to Redis: %v", err)
		}
		defer pub.Close()
	}

	if err := run(ctx, s, pub, cmd, rest); err != nil {
		log.Printf("%s: %v", cmd, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, s *session.Session, pub *telemetry.Publisher, cmd string, args []string) error {
	switch cmd {
	case "reset":
		return nil // Reset already ran in main before dispatch.

	case "read":
		if len(args) != 1 {
			return fmt.Errorf("usage: read <register-id>")
		}
		v, err := s.Read(schema.ID(args[0]))
		if err != nil {
			return err
		}
		fmt.Printf("%s = %s\n", args[0], v.String())
		if pub != nil {
			return pub.PublishValue(schema.ID(args[0]), v)
		}
		return nil

	case "read-all":
		values, err := s.ReadAll(ctx)
		if err != nil {
			return err
		}
		for id, v := range values {
			fmt.Printf("%s = %s\n", id, v.String())
		}
		if pub != nil {
			if err := pub.PublishSnapshot(values); err != nil {
				return err
			}
		}
		if *snapshotPath != "" {
			return saveSnapshot(*snapshotPath, s, values)
		}
		return nil

	case "health":
		values, err := s.ReadHealthSubset(ctx)
		if err != nil {
			return err
		}
		for id, v := range values {
			fmt.Printf("%s = %s\n", id, v.String())
		}
		if pub != nil {
			return pub.PublishSnapshot(values)
		}
		return nil

	case "note":
		if len(args) != 1 {
			return fmt.Errorf("usage: note <text>")
		}
		return s.WriteNote(args[0])

	case "charge":
		dur := time.Duration(0)
		if len(args) == 1 {
			d, err := time.ParseDuration(args[0])
			if err != nil {
				return fmt.Errorf("parse duration: %w", err)
			}
			dur = d
		}
		return s.RunCharger(ctx, dur)

	case "calibrate":
		return s.Calibrate()

	case "scan":
		if len(args) != 3 {
			return fmt.Errorf("usage: scan <start-hex> <stop-hex> <max-len>")
		}
		var start, stop uint16
		var maxLen int
		if _, err := fmt.Sscanf(args[0], "%x", &start); err != nil {
			return fmt.Errorf("parse start: %w", err)
		}
		if _, err := fmt.Sscanf(args[1], "%x", &stop); err != nil {
			return fmt.Errorf("parse stop: %w", err)
		}
		if _, err := fmt.Sscanf(args[2], "%d", &maxLen); err != nil {
			return fmt.Errorf("parse max-len: %w", err)
		}
		return s.Scan(ctx, start, stop, maxLen, func(h register.Hit) bool {
			fmt.Printf("0x%04x len=%d payload=% x\n", h.Addr, h.Len, h.Payload)
			return true
		})

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func saveSnapshot(path string, s *session.Session, values map[schema.ID]schema.Value) error {
	snap := snapshot.New(time.Now().Unix())
	for id := range values {
		payload, err := s.ReadRaw(id)
		if err != nil {
			continue
		}
		snap.Put(id, payload)
	}
	return snapshot.Save(path, snap)
}
