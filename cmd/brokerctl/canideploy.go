package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

// matrixSummary mirrors the server's can-i-deploy summary JSON.
type matrixSummary struct {
	Deployable bool   `json:"deployable"`
	Reason     string `json:"reason"`
}

type canIDeployResponse struct {
	Summary matrixSummary `json:"summary"`
}

func newCanIDeployCmd() *cobra.Command {
	var (
		pacticipant string
		version     string
		towardTag   string
	)

	cmd := &cobra.Command{
		Use:   "can-i-deploy",
		Short: "Check whether a participant version is safe to deploy",
		Long: `Check the compatibility matrix for a participant version and report
whether every pact it is party to has a successful verification. Exits
non-zero when the version is not deployable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			query.Set("pacticipant", pacticipant)
			query.Set("version", version)
			if towardTag != "" {
				query.Set("towardTag", towardTag)
			}

			body, err := globalClient.doRequest("GET", "/can-i-deploy?"+query.Encode(), nil)
			if err != nil {
				return err
			}

			var resp canIDeployResponse
			if err := json.Unmarshal(body, &resp); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}

			if err := printJSON(body); err != nil {
				return err
			}
			if !resp.Summary.Deployable {
				fmt.Fprintf(os.Stderr, "not deployable: %s\n", resp.Summary.Reason)
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pacticipant, "pacticipant", "", "Participant name")
	cmd.Flags().StringVar(&version, "version", "", "Participant version number")
	cmd.Flags().StringVar(&towardTag, "to", "", "Check against the provider version carrying this tag")
	_ = cmd.MarkFlagRequired("pacticipant")
	_ = cmd.MarkFlagRequired("version")

	return cmd
}
