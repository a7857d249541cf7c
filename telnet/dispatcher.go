package telnet

// Dispatcher handles one complete command line. It runs on the event loop
// and may write to the session and request its termination with Quit.
type Dispatcher interface {
	Dispatch(s *Session, cmd string)
}

// DispatcherFunc adapts a plain function to Dispatcher.
type DispatcherFunc func(s *Session, cmd string)

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(s *Session, cmd string) {
	f(s, cmd)
}

// EchoDispatcher writes each command back followed by a newline and then
// closes the session gracefully. It is the server's default dispatcher.
type EchoDispatcher struct{}

// Dispatch implements Dispatcher.
func (EchoDispatcher) Dispatch(s *Session, cmd string) {
	_, _ = s.WriteString(cmd + "\n")
	s.Quit(false)
}
