package main

import (
	"bytes"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

func newPublishCmd() *cobra.Command {
	var (
		consumer string
		provider string
		version  string
		branch   string
	)

	cmd := &cobra.Command{
		Use:   "publish <pact-file>",
		Short: "Publish a pact document",
		Long: `Publish a pact document for a consumer version against a provider.
The consumer version and the participants are created implicitly.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading pact file: %w", err)
			}

			path := fmt.Sprintf("/pacts/provider/%s/consumer/%s/version/%s",
				url.PathEscape(provider), url.PathEscape(consumer), url.PathEscape(version))
			if branch != "" {
				path += "?branch=" + url.QueryEscape(branch)
			}

			body, err := globalClient.doRequest("PUT", path, bytes.NewReader(content))
			if err != nil {
				return err
			}
			return printJSON(body)
		},
	}

	cmd.Flags().StringVar(&consumer, "consumer", "", "Consumer participant name")
	cmd.Flags().StringVar(&provider, "provider", "", "Provider participant name")
	cmd.Flags().StringVar(&version, "consumer-version", "", "Consumer version number")
	cmd.Flags().StringVar(&branch, "branch", "", "Consumer version branch")
	_ = cmd.MarkFlagRequired("consumer")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("consumer-version")

	return cmd
}
