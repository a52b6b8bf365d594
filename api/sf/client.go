// Package sf drives the Salesforce CLI (sf) as an external process.
package sf

import (
	"context"
	"fmt"
	"strings"

	clierrors "github.com/open-cli-collective/sfretrieve/internal/errors"
)

// DefaultAPIVersion is the API version used for metadata-type listings.
const DefaultAPIVersion = "57.0"

// DefaultPath is the sf executable looked up on PATH.
const DefaultPath = "sf"

// Client builds and runs sf commands against an org.
type Client struct {
	runner     Runner
	path       string
	apiVersion string
}

// ClientConfig contains configuration for creating a new sf client.
type ClientConfig struct {
	// Path is the sf executable (default "sf")
	Path string
	// APIVersion is passed to `sf org list metadata-types` (default "57.0")
	APIVersion string
	// Runner executes commands; required
	Runner Runner
}

// New creates a new sf client.
func New(cfg ClientConfig) (*Client, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = DefaultPath
	}
	apiVersion := strings.TrimPrefix(strings.TrimSpace(cfg.APIVersion), "v")
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	return &Client{
		runner:     cfg.Runner,
		path:       path,
		apiVersion: apiVersion,
	}, nil
}

// Path returns the sf executable the client invokes.
func (c *Client) Path() string {
	return c.path
}

// APIVersion returns the API version used for listings.
func (c *Client) APIVersion() string {
	return c.apiVersion
}

// ListMetadataTypesArgs returns the arguments that write the org's metadata types to outputFile.
func (c *Client) ListMetadataTypesArgs(targetOrg, outputFile string) []string {
	return []string{
		"org", "list", "metadata-types",
		"--api-version", c.apiVersion,
		"--target-org", targetOrg,
		"--output-file", outputFile,
	}
}

// RetrieveArgs returns the arguments that retrieve every component of xmlName from the org.
func (c *Client) RetrieveArgs(xmlName, targetOrg string) []string {
	return []string{
		"project", "retrieve", "start",
		"--metadata", xmlName,
		"-o", targetOrg,
	}
}

// CommandLine renders args as a display string prefixed with the sf path.
// Arguments containing whitespace or quotes are quoted; the result is for humans, not shells.
func (c *Client) CommandLine(args []string) string {
	parts := make([]string, 0, len(args)+1)
	for _, a := range append([]string{c.path}, args...) {
		if a == "" || strings.ContainsAny(a, " \t\n\"'") {
			a = fmt.Sprintf("%q", a)
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// ListMetadataTypes asks sf to write the org's metadata types to outputFile.
func (c *Client) ListMetadataTypes(ctx context.Context, targetOrg, outputFile string) (*Result, error) {
	return c.run(ctx, c.ListMetadataTypesArgs(targetOrg, outputFile))
}

// Retrieve asks sf to retrieve all components of the metadata type xmlName.
func (c *Client) Retrieve(ctx context.Context, xmlName, targetOrg string) (*Result, error) {
	return c.run(ctx, c.RetrieveArgs(xmlName, targetOrg))
}

// Version returns the output of `sf --version`.
func (c *Client) Version(ctx context.Context) (string, error) {
	res, err := c.run(ctx, []string{"--version"})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// run executes sf and classifies failures. Anything on stderr counts as a failure,
// even with a zero exit status.
func (c *Client) run(ctx context.Context, args []string) (*Result, error) {
	res, err := c.runner.Run(ctx, c.path, args...)
	if res == nil {
		res = &Result{ExitCode: -1}
	}

	if err != nil {
		return res, &clierrors.CommandError{
			Name:     c.path,
			Args:     args,
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
			Err:      err,
		}
	}

	if strings.TrimSpace(res.Stderr) != "" {
		return res, &clierrors.CommandError{
			Name:     c.path,
			Args:     args,
			ExitCode: res.ExitCode,
			Stdout:   res.Stdout,
			Stderr:   res.Stderr,
		}
	}

	return res, nil
}
