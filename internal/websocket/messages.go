package websocket

import "strings"

// Protocol messages sent to browsers over the live connection. All frames
// are text.
const (
	MessageRebuilding = "rebuilding"
	MessageError      = "error"

	reloadPrefix = "reload:"
)

// ReloadMessage tells clients to fetch the listed files again.
func ReloadMessage(files []string) string {
	return reloadPrefix + strings.Join(files, ",")
}

// ParseReload returns the files of a reload message, and false if msg is not
// one.
func ParseReload(msg string) ([]string, bool) {
	rest, ok := strings.CutPrefix(msg, reloadPrefix)
	if !ok {
		return nil, false
	}
	if rest == "" {
		return []string{}, true
	}

	return strings.Split(rest, ","), true
}
