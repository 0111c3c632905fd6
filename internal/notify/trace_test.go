package notify

import (
	"fmt"
	"strings"
)

const notifyHeader = "method call time=1700000000.000000 sender=:1.42 -> destination=:1.8 serial=%d path=/org/freedesktop/Notifications; interface=org.freedesktop.Notifications; member=Notify"

// traceCall renders one Notify call the way dbus-monitor prints it. hints is
// already formatted dict entry text.
func traceCall(serial int, app string, replaces uint32, summary, body string, actions []string, hints string) string {
	var b strings.Builder
	fmt.Fprintf(&b, notifyHeader+"\n", serial)
	fmt.Fprintf(&b, "   string %q\n", app)
	fmt.Fprintf(&b, "   uint32 %d\n", replaces)
	b.WriteString("   string \"\"\n")
	fmt.Fprintf(&b, "   string %q\n", summary)
	fmt.Fprintf(&b, "   string %q\n", body)
	b.WriteString("   array [\n")
	for _, a := range actions {
		fmt.Fprintf(&b, "      string %q\n", a)
	}
	b.WriteString("   ]\n")
	b.WriteString("   array [\n")
	b.WriteString(hints)
	b.WriteString("   ]\n")
	b.WriteString("   int32 -1\n")
	return b.String()
}

func stringHint(key, value string) string {
	return fmt.Sprintf("      dict entry(\n         string %q\n         variant             string %q\n      )\n", key, value)
}

func byteHint(key string, value int) string {
	return fmt.Sprintf("      dict entry(\n         string %q\n         variant             byte %d\n      )\n", key, value)
}

func imageHint(width, height, stride int, alpha bool, rows ...string) string {
	channels := 3
	if alpha {
		channels = 4
	}
	var b strings.Builder
	b.WriteString("      dict entry(\n         string \"image-data\"\n         variant             struct {\n")
	fmt.Fprintf(&b, "               int32 %d\n               int32 %d\n               int32 %d\n", width, height, stride)
	fmt.Fprintf(&b, "               boolean %t\n", alpha)
	fmt.Fprintf(&b, "               int32 8\n               int32 %d\n", channels)
	b.WriteString("               array of bytes [\n")
	for _, row := range rows {
		fmt.Fprintf(&b, "                  %s\n", row)
	}
	b.WriteString("               ]\n            }\n      )\n")
	return b.String()
}

// runTrace feeds every line through Step and flushes at the end.
func runTrace(limits Limits, trace string) []*Frame {
	var frames []*Frame
	state := NewState(limits)
	for _, line := range strings.Split(trace, "\n") {
		var done *Frame
		state, done = Step(state, line)
		if done != nil {
			frames = append(frames, done)
		}
	}
	if last := state.Finish(); last != nil {
		frames = append(frames, last)
	}
	return frames
}
