// termline.go - assembles raw-mode keystrokes into newline-terminated
// lines for the REPL, grounded on the host's raw-mode byte-translation
// rules (CR->LF, DEL->BS) and local echo.
package main

import (
	"io"
	"os"
)

// lineReader wraps src (already put into raw terminal mode by the
// caller, or a plain pipe/file when not a terminal) so that Stepper.Run
// can keep reading newline-terminated commands exactly as it would over
// a cooked tty: bytes are echoed back, backspace removes the previous
// byte, and Enter (CR or LF) completes the line.
func lineReader(src *os.File) io.Reader {
	r, w := io.Pipe()
	go func() {
		defer w.Close()
		var line []byte
		buf := make([]byte, 1)
		for {
			n, err := src.Read(buf)
			if n > 0 {
				b := buf[0]
				if b == '\r' {
					b = '\n'
				}
				if b == 0x7F {
					b = 0x08
				}
				switch b {
				case '\n':
					os.Stdout.Write([]byte{'\n'})
					line = append(line, '\n')
					if _, werr := w.Write(line); werr != nil {
						return
					}
					line = line[:0]
				case 0x08:
					if len(line) > 0 {
						line = line[:len(line)-1]
						os.Stdout.Write([]byte("\b \b"))
					}
				default:
					os.Stdout.Write([]byte{b})
					line = append(line, b)
				}
			}
			if err != nil {
				return
			}
		}
	}()
	return r
}
