package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/mcoot/geoseek/internal/model"
)

const writeWait = 10 * time.Second

func newPlayCmd() *cobra.Command {
	var (
		join                model.JoinPayload
		longitude, latitude float64
		jsonOutput          bool
	)

	cmd := &cobra.Command{
		Use:   "play <session-id>",
		Short: "Join a session and stream its events",
		Long: `Connect to the realtime endpoint, join the session and stream events.

Commands are read from stdin, one per line:
  start                        Start the session (admin only)
  pos <lon> <lat>              Report your position
  seeker <player-id> [on|off]  Assign or clear the seeker role (admin only)
  quit                         Leave the session

The command exits when the session ends. Press Ctrl+C to leave.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wsURL, err := cfg.WebsocketURL()
			if err != nil {
				return err
			}
			join.SessionID = model.SessionID(args[0])
			join.Longitude = &longitude
			join.Latitude = &latitude

			return play(cmd.Context(), wsURL, join, cmd.InOrStdin(), cmd.OutOrStdout(), jsonOutput)
		},
	}

	cmd.Flags().StringVar(&join.DisplayName, "name", "", "Display name")
	cmd.Flags().Float64Var(&longitude, "lon", 0, "Starting longitude")
	cmd.Flags().Float64Var(&latitude, "lat", 0, "Starting latitude")
	cmd.Flags().StringVar(&join.Password, "password", "", "Password for private sessions")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output events as JSON lines")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// errQuit is returned by parseCommand when the user asks to leave
var errQuit = errors.New("quit")

// parseCommand turns an input line into an outbound envelope
func parseCommand(line string) (model.Envelope, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return model.Envelope{}, errors.New("empty command")
	}

	switch fields[0] {
	case "quit", "exit":
		return model.Envelope{}, errQuit
	case "start":
		return envelope(model.EventStart, model.EmptyPayload{})
	case "pos":
		if len(fields) != 3 {
			return model.Envelope{}, errors.New("usage: pos <lon> <lat>")
		}
		lon, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return model.Envelope{}, fmt.Errorf("invalid longitude: %w", err)
		}
		lat, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return model.Envelope{}, fmt.Errorf("invalid latitude: %w", err)
		}
		return envelope(model.EventUpdatePosition, model.UpdatePositionPayload{Longitude: lon, Latitude: lat})
	case "seeker":
		if len(fields) < 2 || len(fields) > 3 {
			return model.Envelope{}, errors.New("usage: seeker <player-id> [on|off]")
		}
		isSeeker := true
		if len(fields) == 3 {
			switch fields[2] {
			case "on":
			case "off":
				isSeeker = false
			default:
				return model.Envelope{}, errors.New("usage: seeker <player-id> [on|off]")
			}
		}
		return envelope(model.EventSetSeeker, model.SetSeekerPayload{PlayerID: model.PlayerID(fields[1]), IsSeeker: isSeeker})
	default:
		return model.Envelope{}, fmt.Errorf("unknown command %q", fields[0])
	}
}

func envelope(event model.EventType, payload any) (model.Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return model.Envelope{}, err
	}
	return model.Envelope{Type: event, Payload: data}, nil
}

// play runs one realtime session until it ends, the user quits or ctx is cancelled
func play(ctx context.Context, wsURL string, join model.JoinPayload, in io.Reader, out io.Writer, jsonOutput bool) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	send := func(env model.Envelope) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(env)
	}

	joinEnv, err := envelope(model.EventJoin, join)
	if err != nil {
		return err
	}
	if err := send(joinEnv); err != nil {
		return fmt.Errorf("join failed: %w", err)
	}

	incoming := make(chan model.Envelope)
	readErr := make(chan error, 1)
	go func() {
		for {
			var env model.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				readErr <- err
				return
			}
			select {
			case incoming <- env:
			case <-ctx.Done():
				return
			}
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			leave(conn)
			if !jsonOutput {
				fmt.Fprintln(out, "Disconnected")
			}
			return nil

		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("stream error: %w", err)

		case env := <-incoming:
			printEvent(out, env, jsonOutput)
			if env.Type == model.EventSessionEnded {
				leave(conn)
				return nil
			}

		case line := <-lines:
			if strings.TrimSpace(line) == "" {
				continue
			}
			env, err := parseCommand(line)
			if errors.Is(err, errQuit) {
				leave(conn)
				return nil
			}
			if err != nil {
				fmt.Fprintf(out, "Error: %s\n", err)
				continue
			}
			if err := send(env); err != nil {
				return fmt.Errorf("send failed: %w", err)
			}
		}
	}
}

// leave closes the connection cleanly; the server treats it as a disconnect
func leave(conn *websocket.Conn) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

// StreamEvent is an event as printed in JSON lines mode
type StreamEvent struct {
	Time    time.Time       `json:"time"`
	Event   model.EventType `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func printEvent(out io.Writer, env model.Envelope, jsonOutput bool) {
	now := time.Now()

	if jsonOutput {
		data, _ := json.Marshal(StreamEvent{Time: now, Event: env.Type, Payload: env.Payload})
		fmt.Fprintln(out, string(data))
		return
	}

	// Truncate data if it's too long for display
	display := string(env.Payload)
	if len(display) > 100 {
		display = display[:100] + "..."
	}
	fmt.Fprintf(out, "[%s] %s: %s\n", now.Format("2006-01-02 15:04:05"), env.Type, display)
}
