package telnet

import "bytes"

// fetchLines dispatches every complete line in the input buffer, scanning
// for terminators from offset. A trailing carriage return is not part of the
// command. Scanning stops as soon as a dispatch takes the session out of the
// active state; an unterminated tail stays buffered for the next read.
func (s *Session) fetchLines(offset int) {
	for s.state == StateActive {
		data := s.in.Bytes()
		if offset >= len(data) {
			return
		}

		idx := bytes.IndexByte(data[offset:], '\n')
		if idx < 0 {
			return
		}

		end := offset + idx
		line := data[:end]
		if end > 0 && line[end-1] == '\r' {
			line = line[:end-1]
		}

		s.srv.dispatcher.Dispatch(s, string(line))
		if s.state != StateActive {
			return
		}

		s.in.Consume(end + 1)
		offset = 0
	}
}
