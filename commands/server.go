package commands

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/cyberinferno/telnetd/cacher"
	"github.com/cyberinferno/telnetd/telnet"
)

// SessionView is the read-only part of a session listed by the sessions
// command. *telnet.Session implements it.
type SessionView interface {
	ID() uint32
	RemoteAddr() string
	State() telnet.State
	Pending() int
}

// SessionsCommand lists live sessions, marking the caller's own.
//
// Parameters:
//   - list: Returns the live sessions ordered by ID
func SessionsCommand(list func() []SessionView) Command {
	return Command{
		Name:  "sessions",
		Usage: "sessions",
		Help:  "list connected clients",
		Handler: func(c Client, args []string) error {
			if len(args) != 0 {
				return ErrUsage
			}

			for _, s := range list() {
				mark := " "
				if s.ID() == c.ID() {
					mark = "*"
				}

				c.Printf("%s %4d  %-24s %-8s %d\n", mark, s.ID(), s.RemoteAddr(), s.State(), s.Pending())
			}

			return nil
		},
	}
}

// StatsSource supplies the numbers printed by the stats command.
type StatsSource struct {
	Sessions func() int
	Cache    cacher.Cacher[string]
	Started  time.Time
}

// StatsCommand prints the session count, uptime and cache counters.
func StatsCommand(src StatsSource) Command {
	return Command{
		Name:  "stats",
		Usage: "stats",
		Help:  "show server counters",
		Handler: func(c Client, args []string) error {
			if len(args) != 0 {
				return ErrUsage
			}

			c.Printf("sessions %d\n", src.Sessions())
			c.Printf("uptime %s\n", time.Since(src.Started).Truncate(time.Second))
			if src.Cache != nil {
				st := src.Cache.Stats()
				c.Printf("cache hits %d misses %d items %d\n", st.Hits, st.Misses, st.Items)
			}

			return nil
		},
	}
}

// MemCommand reports Go runtime memory statistics. Reading them stops the
// world, so the output is cached for ttl.
func MemCommand(cache cacher.Cacher[string], ttl time.Duration) Command {
	return Command{
		Name:    "mem",
		Usage:   "mem",
		Help:    "show runtime memory statistics",
		Handler: Cached(cache, ttl, "mem", memStats),
	}
}

// FlushCommand drops cached command output: every entry, or the entries of
// one command.
func FlushCommand(cache cacher.Cacher[string]) Command {
	return Command{
		Name:  "flush",
		Usage: "flush [command]",
		Help:  "drop cached command output",
		Handler: func(c Client, args []string) error {
			switch len(args) {
			case 0:
				cache.Clear()
				c.Printf("flushed all\n")
			case 1:
				c.Printf("flushed %d\n", cache.DeleteByPrefix(args[0]))
			default:
				return ErrUsage
			}

			return nil
		},
	}
}

func memStats(_ context.Context, args []string) (string, error) {
	if len(args) != 0 {
		return "", ErrUsage
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	var b strings.Builder
	fmt.Fprintf(&b, "heap_alloc %d\n", ms.HeapAlloc)
	fmt.Fprintf(&b, "heap_objects %d\n", ms.HeapObjects)
	fmt.Fprintf(&b, "sys %d\n", ms.Sys)
	fmt.Fprintf(&b, "num_gc %d\n", ms.NumGC)
	fmt.Fprintf(&b, "goroutines %d\n", runtime.NumGoroutine())

	return b.String(), nil
}
