// Package main provides the brokerctl CLI for managing the broker
// server. It is a management-plane tool that speaks to the broker's
// HTTP API.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"

	// Global flags
	serverURL    string
	globalClient *brokerClient
)

// brokerClient wraps an HTTP client and the server base URL.
type brokerClient struct {
	baseURL    string
	httpClient *http.Client
}

// newBrokerClient creates a new client targeting the given server URL.
func newBrokerClient(baseURL string) *brokerClient {
	return &brokerClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// doRequest performs an HTTP request and returns the response body bytes.
// It returns an error if the status code indicates a failure.
func (c *brokerClient) doRequest(method, path string, body io.Reader) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connecting to broker server at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// printJSON pretty-prints a JSON response body to stdout.
func printJSON(body []byte) error {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		fmt.Println(string(body))
		return nil
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:     "brokerctl",
		Short:   "Manage a pact broker server",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			globalClient = newBrokerClient(serverURL)
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOrDefault("BROKER_URL", "http://localhost:9292"), "Broker server base URL")

	rootCmd.AddCommand(newPublishCmd())
	rootCmd.AddCommand(newCanIDeployCmd())
	rootCmd.AddCommand(newDeployCmd())
	rootCmd.AddCommand(newUndeployCmd())
	rootCmd.AddCommand(newTagCmd())
	rootCmd.AddCommand(newEnvironmentCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
