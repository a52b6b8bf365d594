// Package retrieval lists an org's metadata types through sf and retrieves each of them.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/open-cli-collective/sfretrieve/api/metadata"
	"github.com/open-cli-collective/sfretrieve/api/sf"
	clierrors "github.com/open-cli-collective/sfretrieve/internal/errors"
	"github.com/open-cli-collective/sfretrieve/internal/view"
)

// SF is the subset of *sf.Client the pipeline drives.
type SF interface {
	ListMetadataTypes(ctx context.Context, targetOrg, outputFile string) (*sf.Result, error)
	Retrieve(ctx context.Context, xmlName, targetOrg string) (*sf.Result, error)
	RetrieveArgs(xmlName, targetOrg string) []string
	CommandLine(args []string) string
}

// Params identify the org and the listing file for one run.
type Params struct {
	TargetOrg  string
	OutputFile string
}

// Options tune a run.
type Options struct {
	// Concurrency caps in-flight retrievals; values below 1 mean 1.
	Concurrency int
	// DryRun prints retrieve commands instead of running them.
	DryRun bool
	// SkipListing reuses an existing listing file.
	SkipListing bool
	// Exclude lists type names that are never retrieved.
	Exclude []string
}

// Pipeline runs listing, file processing and retrieval in sequence.
type Pipeline struct {
	sf      SF
	view    *view.View
	opts    Options
	exclude map[string]bool
}

// New creates a Pipeline.
func New(client SF, v *view.View, opts Options) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	exclude := make(map[string]bool, len(opts.Exclude))
	for _, name := range opts.Exclude {
		if name = strings.TrimSpace(name); name != "" {
			exclude[name] = true
		}
	}
	return &Pipeline{sf: client, view: v, opts: opts, exclude: exclude}
}

// Run lists the org's metadata types into params.OutputFile, then retrieves each listed type.
// Every dispatched retrieval has finished when Run returns.
//
// Errors are already reported through the view and are marked with errors.Reported.
// If only some retrievals fail, the error wraps errors.ErrPartialRetrieve and the
// summary is still returned.
func (p *Pipeline) Run(ctx context.Context, params Params) (*Summary, error) {
	listing, err := p.Discover(ctx, params)
	if err != nil {
		return nil, err
	}
	return p.RetrieveAll(ctx, params, listing)
}

// Discover runs the listing command (unless skipped) and reads the resulting file.
func (p *Pipeline) Discover(ctx context.Context, params Params) (*metadata.DescribeMetadataResult, error) {
	if p.opts.SkipListing {
		p.view.Debug("Skipping listing, reusing %s", params.OutputFile)
	} else if err := p.list(ctx, params); err != nil {
		return nil, err
	}
	listing, err := p.load(params.OutputFile)
	if err != nil {
		return nil, err
	}
	p.view.Debug("%d of %d metadataObject(s) carry an xmlName", len(listing.Names()), len(listing.MetadataObjects))
	return listing, nil
}

func (p *Pipeline) list(ctx context.Context, params Params) error {
	_, err := p.sf.ListMetadataTypes(ctx, params.TargetOrg, params.OutputFile)
	switch {
	case clierrors.IsStderrOutput(err):
		p.view.Error("Error output from listMetadataTypes: %s", clierrors.StderrOf(err))
		return clierrors.Reported(fmt.Errorf("listing metadata types: %w", err))
	case err != nil:
		p.view.Error("Error executing listMetadataTypes: %v", err)
		return clierrors.Reported(fmt.Errorf("listing metadata types: %w", err))
	}

	p.view.Info("Successfully generated %s", params.OutputFile)
	return nil
}

func (p *Pipeline) load(path string) (*metadata.DescribeMetadataResult, error) {
	listing, err := metadata.ReadListing(path)
	if err == nil {
		return listing, nil
	}

	var le *clierrors.ListingError
	switch {
	case errors.As(err, &le) && le.Malformed:
		p.view.Error("Error parsing JSON file: %v", le.Err)
	case errors.As(err, &le):
		p.view.Error("Error reading file %s: %v", path, le.Err)
	case errors.Is(err, clierrors.ErrNoMetadataObjects):
		p.view.Error("No metadataObjects found in the file.")
	default:
		p.view.Error("%v", err)
	}
	return nil, clierrors.Reported(err)
}

// RetrieveAll dispatches one retrieval per named descriptor, in listing order,
// through a worker pool bounded by Options.Concurrency.
func (p *Pipeline) RetrieveAll(ctx context.Context, params Params, listing *metadata.DescribeMetadataResult) (*Summary, error) {
	summary := newSummary(params, listing)
	p.view.Debug("Run %s: %d metadata type(s) listed", summary.RunID, summary.Listed)
	errs := make([]error, len(summary.Items))

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)

	var canceled error
	for i := range summary.Items {
		item := &summary.Items[i]

		if item.XMLName == "" {
			p.view.Warning("No xmlName found for metadataObject at index %d", i)
			item.Status = StatusSkipped
			continue
		}
		p.view.Info("Current Metadata %s", item.XMLName)

		if p.exclude[item.XMLName] {
			p.view.Debug("Excluding %s", item.XMLName)
			item.Status = StatusExcluded
			continue
		}

		if p.opts.DryRun {
			p.view.Info("%s", p.sf.CommandLine(p.sf.RetrieveArgs(item.XMLName, params.TargetOrg)))
			item.Status = StatusPlanned
			continue
		}

		if err := ctx.Err(); err != nil {
			item.Status = StatusCanceled
			canceled = err
			continue
		}

		i := i
		g.Go(func() error {
			// Failures are recorded per item and never cancel siblings.
			if err := p.retrieveOne(ctx, item.XMLName, params.TargetOrg); err != nil {
				item.Status = StatusFailed
				item.Error = err.Error()
				item.ExitCode = clierrors.ExitCodeOf(err)
				errs[i] = fmt.Errorf("%s: %w", item.XMLName, err)
				return nil
			}
			item.Status = StatusRetrieved
			return nil
		})
	}
	_ = g.Wait()

	summary.tally()

	var merr *multierror.Error
	for _, err := range errs {
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if merr != nil {
		p.view.Debug("%v", merr)
		return summary, clierrors.Reported(fmt.Errorf("%w: %d of %d failed: %w",
			clierrors.ErrPartialRetrieve, summary.Failed, summary.Dispatched(), merr.ErrorOrNil()))
	}
	if canceled != nil {
		return summary, clierrors.Reported(fmt.Errorf("retrieval interrupted: %w", canceled))
	}
	return summary, nil
}

// retrieveOne runs a single retrieval and reports its outcome.
func (p *Pipeline) retrieveOne(ctx context.Context, xmlName, targetOrg string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.view.Error("Dispatch failed for %s: %v", xmlName, r)
			err = fmt.Errorf("dispatch failed: %v", r)
		}
	}()

	res, err := p.sf.Retrieve(ctx, xmlName, targetOrg)
	switch {
	case clierrors.IsStderrOutput(err):
		p.view.Error("Error output during metadata retrieval for %s: %s", xmlName, clierrors.StderrOf(err))
		return err
	case err != nil:
		p.view.Error("Error retrieving metadata for %s: %v", xmlName, err)
		return err
	}

	p.view.Success("Successfully retrieved metadata for %s: %s", xmlName, strings.TrimSpace(res.Stdout))
	return nil
}
