package logger

// StripANSI removes CSI escape sequences (ESC '[' ... <alpha>), any
// two-byte ESC X sequence where X is not '[', and control bytes below 0x20 (which
// includes the original line's own newline), then appends exactly one
// trailing newline. This matches the reference log.c strip_ansi():
// idempotent, since a line that has already been stripped contains no
// escape bytes and no control bytes to remove, and appending a second
// trailing newline to a line that already ends in one is avoided by
// stripping the source's own newline before re-appending it.
func StripANSI(src []byte) []byte {
	out := make([]byte, 0, len(src)+1)

	const (
		stateNormal = iota
		stateSawEsc
		stateInCSI
	)
	state := stateNormal

	for _, b := range src {
		switch state {
		case stateNormal:
			if b == 0x1B {
				state = stateSawEsc
				continue
			}
			if b >= 0x20 {
				out = append(out, b)
			}
		case stateSawEsc:
			if b == '[' {
				state = stateInCSI
			} else {
				state = stateNormal
			}
		case stateInCSI:
			if isAlpha(b) {
				state = stateNormal
			}
		}
	}

	out = append(out, '\n')
	return out
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
