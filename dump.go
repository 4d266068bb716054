package sageagent

import (
	"fmt"
	"io"
	"runtime"

	"github.com/davecgh/go-spew/spew"
)

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	SortKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

func Dump(v ...any) {
	_, file, line, _ := runtime.Caller(1)
	args := append([]any{fmt.Sprintf("%s:%d:", file, line)}, v...)
	spew.Dump(args...)
}

// DumpEvents writes a readable dump of a conversation log to w.
func DumpEvents(w io.Writer, events []Event) {
	for i, e := range events {
		fmt.Fprintf(w, "--- event %d: %s ---\n", i+1, e.Type)
		dumpConfig.Fdump(w, e)
	}
}
