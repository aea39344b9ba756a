package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mcoot/geoseek/internal/api/request"
	"github.com/mcoot/geoseek/internal/api/response"
	"github.com/mcoot/geoseek/internal/model"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Session management commands",
	}

	cmd.AddCommand(newSessionCreateCmd())
	cmd.AddCommand(newSessionListCmd())
	cmd.AddCommand(newSessionGetCmd())
	cmd.AddCommand(newSessionSummaryCmd())

	return cmd
}

func newSessionCreateCmd() *cobra.Command {
	var (
		req                         request.CreateSessionRequest
		longitude, latitude, radius float64
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new session",
		Long: `Create a new session centered on a point. The creator becomes the session
admin and must join it (see "geoseek play") with the same display name.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("lon") {
				req.Longitude = number(longitude)
			}
			if flags.Changed("lat") {
				req.Latitude = number(latitude)
			}
			if flags.Changed("radius") {
				req.Radius = number(radius)
			}
			req.IsPrivate = req.Password != ""

			var result response.CreateSessionResponse

			if err := client.Post(cmd.Context(), "/api/v1/sessions", req, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Session name")
	cmd.Flags().StringVar(&req.DisplayName, "display-name", "", "Your display name (becomes the admin)")
	cmd.Flags().Float64Var(&longitude, "lon", 0, "Center longitude")
	cmd.Flags().Float64Var(&latitude, "lat", 0, "Center latitude")
	cmd.Flags().Float64Var(&radius, "radius", 0, "Play area radius in meters")
	cmd.Flags().StringVar(&req.Password, "password", "", "Make the session private with this password")
	cmd.Flags().IntVar(&req.StartDelaySeconds, "start-delay", 0, "Seconds until the session starts")
	cmd.Flags().IntVar(&req.DurationSeconds, "duration", 0, "Session length in seconds once started")
	cmd.Flags().StringVar(&req.StartPolicy, "start-policy", "", "Start policy: manual, auto (default: server default)")

	return cmd
}

func number(f float64) *json.Number {
	n := json.Number(strconv.FormatFloat(f, 'f', -1, 64))
	return &n
}

func newSessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List joinable public sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result response.SessionList

			if err := client.Get(cmd.Context(), "/api/v1/sessions", &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newSessionGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get session details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result model.SessionSnapshot

			if err := client.Get(cmd.Context(), "/api/v1/sessions/"+url.PathEscape(args[0]), &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}
}

func newSessionSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary <id>",
		Short: "Get the summary of an ended session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result model.SessionSummary

			path := fmt.Sprintf("/api/v1/sessions/%s/summary", url.PathEscape(args[0]))
			if err := client.Get(cmd.Context(), path, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(&result)
			return nil
		},
	}
}

func newSummariesCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "summaries",
		Short: "List archived sessions, most recently ended first",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/v1/summaries"
			if limit > 0 {
				path += "?limit=" + strconv.Itoa(limit)
			}

			var result response.SummaryList

			if err := client.Get(cmd.Context(), path, &result); err != nil {
				return err
			}

			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of summaries (default: all)")

	return cmd
}
