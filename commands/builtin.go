package commands

import (
	"strings"
)

func (t *Table) builtins() []Command {
	return []Command{
		{
			Name:    "help",
			Usage:   "help [command]",
			Help:    "list commands or describe one",
			Handler: t.help,
		},
		{
			Name:    "echo",
			Usage:   "echo [text...]",
			Help:    "print the arguments",
			Handler: echo,
		},
		{
			Name:    "quit",
			Usage:   "quit",
			Help:    "send pending output and close the connection",
			Handler: quit,
		},
		{
			Name:    "exit",
			Usage:   "exit",
			Help:    "close the connection immediately",
			Handler: exit,
		},
	}
}

func (t *Table) help(c Client, args []string) error {
	switch len(args) {
	case 0:
		width := 0
		for _, name := range t.Names() {
			width = max(width, len(name))
		}

		for _, name := range t.Names() {
			c.Printf("%-*s  %s\n", width, name, t.commands[name].Help)
		}

		return nil
	case 1:
		cmd, ok := t.commands[args[0]]
		if !ok {
			c.Printf("unknown command: %s\n", args[0])
			return nil
		}

		c.Printf("usage: %s\n%s\n", cmd.Usage, cmd.Help)
		return nil
	default:
		return ErrUsage
	}
}

func echo(c Client, args []string) error {
	c.Printf("%s\n", strings.Join(args, " "))
	return nil
}

func quit(c Client, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}

	c.Quit(false)
	return nil
}

func exit(c Client, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}

	c.Quit(true)
	return nil
}
