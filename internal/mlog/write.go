package mlog

import (
	"io"
	"strings"

	"github.com/dogmatiq/iago/must"
)

// String renders a log line.
//
// A line consists of the labelled IDs, then the status icons, then the
// non-empty text segments separated by SeparatorIcon.
func String(
	ids []IconWithLabel,
	icons []Icon,
	text ...string,
) string {
	var w strings.Builder
	line{ids, icons, text}.mustWriteTo(&w)
	return w.String()
}

// Write renders a log line to w.
func Write(
	w io.Writer,
	ids []IconWithLabel,
	icons []Icon,
	text ...string,
) (n int, err error) {
	defer must.Recover(&err)
	return line{ids, icons, text}.mustWriteTo(w), nil
}

type line struct {
	ids   []IconWithLabel
	icons []Icon
	text  []string
}

func (l line) mustWriteTo(w io.Writer) int {
	n := 0

	for _, id := range l.ids {
		n += must.WriteTo(w, id)
		n += must.WriteString(w, "  ")
	}

	for _, i := range l.icons {
		n += must.WriteTo(w, i)
		n += must.WriteString(w, " ")
	}

	sep := ""
	for _, t := range l.text {
		if t != "" {
			n += must.WriteString(w, " "+sep+t)
			sep = SeparatorIcon.String() + " "
		}
	}

	return n
}
