package fault

import (
	"fmt"
	"strings"

	"mirvm/internal/source"
)

// Bug is a fatal internal-invariant violation. It travels by panic.
type Bug struct {
	Message string
	Context string // textual form of the offending statement or terminator
	Span    source.Span
}

func (b *Bug) Error() string {
	if b.Context == "" {
		return "internal error: " + b.Message
	}
	return fmt.Sprintf("internal error: %s (while executing `%s`)", b.Message, b.Context)
}

// FormatWithFiles renders the bug with its resolved location.
func (b *Bug) FormatWithFiles(files *source.FileSet) string {
	var sb strings.Builder
	sb.WriteString(b.Error())
	sb.WriteString("\nat ")
	sb.WriteString(files.Format(b.Span))
	sb.WriteString("\n")
	return sb.String()
}

// Raise panics with a *Bug.
func Raise(span source.Span, context, format string, args ...any) {
	panic(&Bug{Message: fmt.Sprintf(format, args...), Context: context, Span: span})
}

// AsBug extracts a *Bug from a recovered panic value.
func AsBug(r any) (*Bug, bool) {
	b, ok := r.(*Bug)
	return b, ok
}
