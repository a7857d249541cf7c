// Package commands maps command lines received by the telnet server onto
// named handlers. A Table is the server's Dispatcher: it splits each line
// into fields, runs the handler registered under the first field, reports
// errors to the client and prints the prompt while the session stays open.
package commands

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/cyberinferno/telnetd/logger"
	"github.com/cyberinferno/telnetd/perfmonitor"
	"github.com/cyberinferno/telnetd/telnet"
)

var (
	// ErrDuplicateCommand is returned by Register for a name already in use.
	ErrDuplicateCommand = errors.New("commands: command already registered")

	// ErrUsage makes the table print the command's usage line.
	ErrUsage = errors.New("commands: bad usage")
)

// Client is the side of a session a handler talks to. *telnet.Session
// implements it.
type Client interface {
	io.Writer
	ID() uint32
	Printf(format string, args ...any)
	Quit(now bool)
	Closing() bool
}

// HandlerFunc runs one command. args excludes the command name.
type HandlerFunc func(c Client, args []string) error

// Command is a named handler.
type Command struct {
	Name    string
	Usage   string
	Help    string
	Handler HandlerFunc
}

// Options configures a Table.
type Options struct {
	// Prompt is printed after every command while the session stays active.
	Prompt string `yaml:"prompt"`
	// SlowThreshold logs commands running longer than this at warn level;
	// 0 disables the warning.
	SlowThreshold time.Duration `yaml:"slow_threshold"`
	// CacheTTL is how long cached command output is reused.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// DefaultOptions returns the options used by the daemon.
func DefaultOptions() Options {
	return Options{
		Prompt:        "> ",
		SlowThreshold: 100 * time.Millisecond,
		CacheTTL:      5 * time.Second,
	}
}

// Table is a set of commands keyed by name. Registration happens before the
// server starts; dispatch runs on the event loop.
type Table struct {
	opts     Options
	log      logger.Logger
	commands map[string]Command
	now      func() time.Time
}

var _ telnet.Dispatcher = (*Table)(nil)

// NewTable returns a Table holding the built-in commands help, echo, quit
// and exit.
//
// Parameters:
//   - opts: Prompt and timing options
//   - log: Logger for command errors and slow commands; nil discards
//
// Returns:
//   - A new *Table
func NewTable(opts Options, log logger.Logger) *Table {
	if log == nil {
		log = logger.NewNop()
	}

	t := &Table{
		opts:     opts,
		log:      log,
		commands: make(map[string]Command),
		now:      time.Now,
	}

	for _, cmd := range t.builtins() {
		// built-in names are distinct
		_ = t.Register(cmd)
	}

	return t
}

// Register adds cmd.
//
// Returns:
//   - ErrDuplicateCommand if the name is taken, or an error for an empty
//     name or missing handler
func (t *Table) Register(cmd Command) error {
	if cmd.Name == "" || strings.ContainsAny(cmd.Name, " \t") {
		return fmt.Errorf("commands: invalid command name %q", cmd.Name)
	}

	if cmd.Handler == nil {
		return fmt.Errorf("commands: command %q has no handler", cmd.Name)
	}

	if _, ok := t.commands[cmd.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, cmd.Name)
	}

	t.commands[cmd.Name] = cmd
	return nil
}

// Lookup returns the command registered under name.
func (t *Table) Lookup(name string) (Command, bool) {
	cmd, ok := t.commands[name]
	return cmd, ok
}

// Names returns the registered command names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.commands))
	for name := range t.commands {
		names = append(names, name)
	}

	slices.Sort(names)
	return names
}

// Dispatch implements telnet.Dispatcher.
func (t *Table) Dispatch(s *telnet.Session, line string) {
	t.Run(s, line)
}

// Run executes one command line for c.
func (t *Table) Run(c Client, line string) {
	fields := strings.Fields(line)
	if len(fields) > 0 {
		t.exec(c, fields[0], fields[1:])
	}

	if t.opts.Prompt != "" && !c.Closing() {
		c.Printf("%s", t.opts.Prompt)
	}
}

func (t *Table) exec(c Client, name string, args []string) {
	cmd, ok := t.commands[name]
	if !ok {
		c.Printf("unknown command: %s\n", name)
		return
	}

	var err error
	pm := perfmonitor.NewPerformanceMonitorWithClock(t.now)
	elapsed := pm.Measure(func() { err = cmd.Handler(c, args) })

	fields := []logger.Field{
		{Key: "session", Value: c.ID()},
		{Key: "command", Value: name},
		{Key: "duration_ms", Value: pm.ElapsedMilliseconds()},
	}

	switch {
	case errors.Is(err, ErrUsage):
		c.Printf("usage: %s\n", cmd.Usage)
	case err != nil:
		c.Printf("error: %v\n", err)
		t.log.Warn("command failed", append(fields, logger.Field{Key: "error", Value: err})...)
	}

	if t.opts.SlowThreshold > 0 && elapsed > t.opts.SlowThreshold {
		t.log.Warn("slow command", fields...)
		return
	}

	t.log.Debug("command executed", fields...)
}
