package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func deploymentPath(participant, version, environment string) string {
	return fmt.Sprintf("/participants/%s/versions/%s/deployments/%s",
		url.PathEscape(participant), url.PathEscape(version), url.PathEscape(environment))
}

func newDeployCmd() *cobra.Command {
	var (
		pacticipant string
		version     string
		environment string
	)

	cmd := &cobra.Command{
		Use:   "record-deployment",
		Short: "Record that a version was deployed to an environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest("POST", deploymentPath(pacticipant, version, environment), nil)
			if err != nil {
				return err
			}
			return printJSON(body)
		},
	}

	cmd.Flags().StringVar(&pacticipant, "pacticipant", "", "Participant name")
	cmd.Flags().StringVar(&version, "version", "", "Version number")
	cmd.Flags().StringVar(&environment, "environment", "", "Environment name")
	_ = cmd.MarkFlagRequired("pacticipant")
	_ = cmd.MarkFlagRequired("version")
	_ = cmd.MarkFlagRequired("environment")

	return cmd
}

func newUndeployCmd() *cobra.Command {
	var (
		pacticipant string
		version     string
		environment string
	)

	cmd := &cobra.Command{
		Use:   "record-undeployment",
		Short: "Record that a version was undeployed from an environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := globalClient.doRequest("DELETE", deploymentPath(pacticipant, version, environment), nil)
			if err != nil {
				return err
			}
			return printJSON(body)
		},
	}

	cmd.Flags().StringVar(&pacticipant, "pacticipant", "", "Participant name")
	cmd.Flags().StringVar(&version, "version", "", "Version number")
	cmd.Flags().StringVar(&environment, "environment", "", "Environment name")
	_ = cmd.MarkFlagRequired("pacticipant")
	_ = cmd.MarkFlagRequired("version")
	_ = cmd.MarkFlagRequired("environment")

	return cmd
}
