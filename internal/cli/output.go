package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/mcoot/geoseek/internal/api/response"
	"github.com/mcoot/geoseek/internal/model"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case response.CreateSessionResponse:
		fmt.Fprintf(o.w, "Session: %s\n", v.SessionID)
	case response.SessionList:
		o.printSessionList(v)
	case model.SessionSnapshot:
		o.printSession(v)
	case *model.SessionSummary:
		o.printSummary(v)
	case response.SummaryList:
		o.printSummaryList(v)
	case response.Health:
		o.printHealth(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

func (o *Output) printSessionList(l response.SessionList) {
	if len(l.Sessions) == 0 {
		fmt.Fprintln(o.w, "No joinable sessions")
		return
	}
	for _, s := range l.Sessions {
		fmt.Fprintf(o.w, "%s  %-20s %-8s players=%d  center=(%g, %g) radius=%gm\n",
			s.ID, s.Name, s.Phase, s.PlayerCount, s.CenterLongitude, s.CenterLatitude, s.Radius)
	}
}

func (o *Output) printSession(s model.SessionSnapshot) {
	privacy := "public"
	if s.IsPrivate {
		privacy = "private"
	}
	fmt.Fprintf(o.w, "Session: %s (%s)\n", s.Name, s.ID)
	fmt.Fprintf(o.w, "Phase: %s (%s start, %s)\n", s.Phase, s.StartPolicy, privacy)
	fmt.Fprintf(o.w, "Area: (%g, %g) radius %gm\n", s.CenterLongitude, s.CenterLatitude, s.Radius)
	switch s.Phase {
	case model.PhasePending:
		fmt.Fprintf(o.w, "Starts in: %ds\n", s.SecondsUntilStart)
	case model.PhaseActive:
		fmt.Fprintf(o.w, "Ends in: %ds\n", s.SecondsUntilEnd)
	}
	fmt.Fprintf(o.w, "Players (%d):\n", len(s.Roster))
	for _, p := range s.Roster {
		fmt.Fprintf(o.w, "  - %s (%s)%s\n", p.DisplayName, p.ID, playerTags(p.ID == s.AdminPlayerID, p.IsSeeker))
	}
}

func (o *Output) printSummary(s *model.SessionSummary) {
	fmt.Fprintf(o.w, "Session: %s (%s)\n", s.Name, s.ID)
	fmt.Fprintf(o.w, "Started: %s\n", s.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(o.w, "Ended: %s\n", s.EndedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(o.w, "Players (%d):\n", len(s.Players))
	for _, p := range s.Players {
		fmt.Fprintf(o.w, "  - %s (%s)%s\n", p.DisplayName, p.ID, playerTags(p.ID == s.AdminPlayerID, p.IsSeeker))
	}
}

func (o *Output) printSummaryList(l response.SummaryList) {
	if len(l.Summaries) == 0 {
		fmt.Fprintln(o.w, "No archived sessions")
		return
	}
	for _, s := range l.Summaries {
		fmt.Fprintf(o.w, "%s  %-20s ended %s  players=%d\n",
			s.ID, s.Name, s.EndedAt.Format("2006-01-02 15:04:05"), len(s.Players))
	}
}

func (o *Output) printHealth(h response.Health) {
	fmt.Fprintf(o.w, "Status: %s\n", h.Status)
	if h.Storage != "" {
		fmt.Fprintf(o.w, "Storage: %s\n", h.Storage)
	}
}

func playerTags(admin, seeker bool) string {
	var tags []string
	if admin {
		tags = append(tags, "admin")
	}
	if seeker {
		tags = append(tags, "seeker")
	}
	if len(tags) == 0 {
		return ""
	}
	return " [" + strings.Join(tags, ", ") + "]"
}
