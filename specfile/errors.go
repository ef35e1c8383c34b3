package specfile

import "fmt"

// FormatError reports malformed input encountered during the parse
// pass. It is fatal to the whole open: no File is returned alongside it.
type FormatError struct {
	Line   int    // 1-based line number
	Text   string // the offending raw line
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("specfile: line %d: %s (%q)", e.Line, e.Reason, e.Text)
}
