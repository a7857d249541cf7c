package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyberinferno/telnetd/lineclient"
)

var (
	sendAddr    string
	sendTimeout time.Duration
	sendPrompt  string
	sendQuit    bool
)

var sendCmd = &cobra.Command{
	Use:   "send <command...>",
	Short: "Run one command against a running server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return send(cmd.OutOrStdout(), sendAddr, strings.Join(args, " "))
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendAddr, "addr", "127.0.0.1:2023", "Server address (host:port)")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 10*time.Second, "How long to wait for the server to finish")
	sendCmd.Flags().StringVar(&sendPrompt, "prompt", "> ", "Server prompt to strip from responses")
	sendCmd.Flags().BoolVar(&sendQuit, "quit", true, "Send quit after the command so the server closes the connection")
}

// send runs line on the server at addr and copies every response line to
// out until the server closes the connection.
func send(out io.Writer, addr, line string) error {
	cfg := lineclient.DefaultConfig(addr)
	cfg.ReadTimeout = sendTimeout
	c := lineclient.New(cfg, nil)
	defer c.Close()

	done := make(chan error, 1)
	c.OnLine(func(e lineclient.LineEvent) {
		text := e.Line
		for sendPrompt != "" && strings.HasPrefix(text, sendPrompt) {
			text = strings.TrimPrefix(text, sendPrompt)
		}

		if text == "" && e.Line != "" {
			return
		}

		fmt.Fprintln(out, text)
	})
	c.OnConnectionState(func(e lineclient.ConnectionStateEvent) {
		if e.State == lineclient.Disconnected {
			select {
			case done <- e.Error:
			default:
			}
		}
	})

	if err := c.Connect(); err != nil {
		return err
	}

	if err := c.SendLine(line); err != nil {
		return err
	}

	if sendQuit {
		if err := c.SendLine("quit"); err != nil {
			return err
		}
	}

	timer := time.NewTimer(sendTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return errors.New("timed out waiting for the server to close the connection")
	}
}
