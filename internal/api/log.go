package api

import (
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"authflow/pkg/logging"
)

// attrPattern matches key=value and key="quoted value" pairs of a slog text line.
var attrPattern = regexp.MustCompile(`([\w.\-]+)=(?:"((?:[^"\\]|\\.)*)"|(\S+))`)

// maxAttrLen drops values such as run IDs and URLs from the status line.
const maxAttrLen = 20

// LogResponse is the status bar payload.
type LogResponse struct {
	Log   string   `json:"log"`
	Lines []string `json:"lines,omitempty"`
}

// handleLatestLog handles GET /api/log/latest?n=N. n adds up to N recent
// formatted lines, oldest first.
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	resp := LogResponse{Log: formatLogLine(logging.ServerTail.Last())}
	if s := r.URL.Query().Get("n"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > logging.TailSize {
			http.Error(w, "invalid n", http.StatusBadRequest)
			return
		}
		for _, l := range logging.ServerTail.Lines(n) {
			resp.Lines = append(resp.Lines, formatLogLine(l))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLatestEvent handles GET /api/log/event.
func handleLatestEvent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"event": logging.EventTail.Last()})
}

// formatLogLine turns a slog text line into "15:04:05 msg (k=v, k=v)" with
// attributes sorted and long values left out. Lines without a msg are
// returned unchanged.
func formatLogLine(raw string) string {
	var clock, msg string
	var attrs []string
	for _, m := range attrPattern.FindAllStringSubmatch(raw, -1) {
		key, val := m[1], m[3]
		if m[3] == "" {
			val = strings.ReplaceAll(m[2], `\"`, `"`)
		}
		val = strings.TrimSpace(val)
		switch key {
		case "time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				clock = t.Format(time.TimeOnly)
			}
		case "level", "source":
		case "msg":
			msg = val
		default:
			if len(val) <= maxAttrLen {
				attrs = append(attrs, key+"="+val)
			}
		}
	}
	if msg == "" {
		return raw
	}

	var b strings.Builder
	if clock != "" {
		b.WriteString(clock + " ")
	}
	b.WriteString(msg)
	if len(attrs) > 0 {
		slices.Sort(attrs)
		b.WriteString(" (" + strings.Join(attrs, ", ") + ")")
	}
	return b.String()
}
