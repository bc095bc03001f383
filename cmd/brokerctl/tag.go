package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func newTagCmd() *cobra.Command {
	var (
		pacticipant string
		version     string
	)

	cmd := &cobra.Command{
		Use:   "create-version-tag <tag>",
		Short: "Tag a participant version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/participants/%s/versions/%s/tags/%s",
				url.PathEscape(pacticipant), url.PathEscape(version), url.PathEscape(args[0]))
			body, err := globalClient.doRequest("PUT", path, nil)
			if err != nil {
				return err
			}
			return printJSON(body)
		},
	}

	cmd.Flags().StringVar(&pacticipant, "pacticipant", "", "Participant name")
	cmd.Flags().StringVar(&version, "version", "", "Version number")
	_ = cmd.MarkFlagRequired("pacticipant")
	_ = cmd.MarkFlagRequired("version")

	return cmd
}

func newEnvironmentCmd() *cobra.Command {
	var (
		displayName string
		production  bool
	)

	cmd := &cobra.Command{
		Use:   "create-environment <name>",
		Short: "Create or update a named environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]any{}
			if displayName != "" {
				payload["displayName"] = displayName
			}
			if cmd.Flags().Changed("production") {
				payload["production"] = production
			}
			encoded, err := json.Marshal(payload)
			if err != nil {
				return err
			}

			body, err := globalClient.doRequest("PUT", "/environments/"+url.PathEscape(args[0]), bytes.NewReader(encoded))
			if err != nil {
				return err
			}
			return printJSON(body)
		},
	}

	cmd.Flags().StringVar(&displayName, "display-name", "", "Human-readable environment name")
	cmd.Flags().BoolVar(&production, "production", false, "Mark the environment as production")

	return cmd
}
