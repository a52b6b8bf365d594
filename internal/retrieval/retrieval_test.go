package retrieval

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-cli-collective/sfretrieve/api/sf"
	"github.com/open-cli-collective/sfretrieve/api/sf/sftest"
	clierrors "github.com/open-cli-collective/sfretrieve/internal/errors"
	"github.com/open-cli-collective/sfretrieve/internal/view"
)

const scenarioListing = `{"metadataObjects":[{"xmlName":"ApexClass"},{"xmlName":"CustomObject"},{}]}`

type harness struct {
	runner *sftest.Runner
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	params Params
}

func newHarness(t *testing.T, router sftest.Router) *harness {
	t.Helper()
	return &harness{
		runner: sftest.NewRunner(router.Handle),
		stdout: &bytes.Buffer{},
		stderr: &bytes.Buffer{},
		params: Params{TargetOrg: "Acme", OutputFile: filepath.Join(t.TempDir(), "out.json")},
	}
}

func (h *harness) pipeline(t *testing.T, opts Options) *Pipeline {
	t.Helper()
	client, err := sf.New(sf.ClientConfig{Runner: h.runner})
	require.NoError(t, err)

	v := view.New(view.FormatTable, true)
	v.SetOutput(h.stdout)
	v.SetError(h.stderr)
	return New(client, v, opts)
}

func (h *harness) run(t *testing.T, opts Options) (*Summary, error) {
	t.Helper()
	return h.pipeline(t, opts).Run(context.Background(), h.params)
}

func retrievedTypes(calls []sftest.Call) []string {
	names := make([]string, 0, len(calls))
	for _, c := range calls {
		names = append(names, c.Flag("--metadata"))
	}
	return names
}

func listingOf(names ...string) string {
	objs := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" {
			objs = append(objs, `{"directoryName":"x"}`)
			continue
		}
		objs = append(objs, fmt.Sprintf(`{"xmlName":%q}`, n))
	}
	return `{"metadataObjects":[` + strings.Join(objs, ",") + `]}`
}

func TestRun_Scenario(t *testing.T) {
	h := newHarness(t, sftest.Router{
		sftest.ListMetadataTypes: sftest.WriteListing(scenarioListing),
		sftest.RetrieveStart:     sftest.Succeed("Retrieved Source"),
	})

	summary, err := h.run(t, Options{Concurrency: 4})
	require.NoError(t, err)

	listCalls := h.runner.CallsTo(sftest.ListMetadataTypes)
	require.Len(t, listCalls, 1)
	assert.Equal(t, "Acme", listCalls[0].Flag("--target-org"))
	assert.Equal(t, h.params.OutputFile, listCalls[0].Flag("--output-file"))
	assert.Equal(t, "57.0", listCalls[0].Flag("--api-version"))

	retrieves := h.runner.CallsTo(sftest.RetrieveStart)
	require.Len(t, retrieves, 2)
	assert.ElementsMatch(t, []string{"ApexClass", "CustomObject"}, retrievedTypes(retrieves))
	for _, c := range retrieves {
		assert.Equal(t, "Acme", c.Flag("-o"))
	}

	assert.Equal(t, 1, strings.Count(h.stderr.String(), "No xmlName found for metadataObject at index 2"))
	assert.Contains(t, h.stdout.String(), "Successfully generated "+h.params.OutputFile)
	assert.Contains(t, h.stdout.String(), "Successfully retrieved metadata for ApexClass: Retrieved Source")
	assert.Contains(t, h.stdout.String(), "Successfully retrieved metadata for CustomObject")

	assert.Equal(t, 3, summary.Listed)
	assert.Equal(t, 2, summary.Retrieved)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, StatusSkipped, summary.Items[2].Status)

	_, err = uuid.Parse(summary.RunID)
	assert.NoError(t, err)
}

func TestRun_AllNamed(t *testing.T) {
	names := make([]string, 25)
	for i := range names {
		names[i] = fmt.Sprintf("Type%02d", i)
	}
	h := newHarness(t, sftest.Router{
		sftest.ListMetadataTypes: sftest.WriteListing(listingOf(names...)),
	})

	summary, err := h.run(t, Options{Concurrency: 5})
	require.NoError(t, err)

	retrieves := h.runner.CallsTo(sftest.RetrieveStart)
	assert.Len(t, retrieves, len(names))
	assert.ElementsMatch(t, names, retrievedTypes(retrieves))
	assert.Equal(t, len(names), summary.Retrieved)
	assert.NotContains(t, h.stderr.String(), "No xmlName found")
}

func TestRun_MissingNamesAreWarnedAndSkipped(t *testing.T) {
	tests := []struct {
		name         string
		listing      string
		wantTypes    []string
		wantWarnings []int
	}{
		{
			name:         "objects without xmlName",
			listing:      listingOf("ApexClass", "", "Flow", "", "", "Layout"),
			wantTypes:    []string{"ApexClass", "Flow", "Layout"},
			wantWarnings: []int{1, 3, 4},
		},
		{
			name:         "element that is not an object",
			listing:      `{"metadataObjects":[{"xmlName":"ApexClass"},"junk",{"xmlName":"Flow"}]}`,
			wantTypes:    []string{"ApexClass", "Flow"},
			wantWarnings: []int{1},
		},
		{
			name:      "unexpected type in another field",
			listing:   `{"metadataObjects":[{"xmlName":"ApexClass","inFolder":"false"},{"xmlName":"Flow"}]}`,
			wantTypes: []string{"ApexClass", "Flow"},
		},
		{
			name:         "null, numeric and empty xmlName",
			listing:      `{"metadataObjects":[null,{"xmlName":null},{"xmlName":12},{"xmlName":""},{"xmlName":"Layout"}]}`,
			wantTypes:    []string{"Layout"},
			wantWarnings: []int{0, 1, 2, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, sftest.Router{
				sftest.ListMetadataTypes: sftest.WriteListing(tt.listing),
			})

			summary, err := h.run(t, Options{Concurrency: 2})
			require.NoError(t, err)

			stderr := h.stderr.String()
			assert.NotContains(t, stderr, "Error parsing JSON file")
			assert.Equal(t, len(tt.wantWarnings), strings.Count(stderr, "No xmlName found for metadataObject at index"))
			for _, i := range tt.wantWarnings {
				assert.Contains(t, stderr, fmt.Sprintf("No xmlName found for metadataObject at index %d\n", i))
			}
			assert.ElementsMatch(t, tt.wantTypes, retrievedTypes(h.runner.CallsTo(sftest.RetrieveStart)))
			assert.Equal(t, len(tt.wantWarnings), summary.Skipped)
			assert.Equal(t, len(tt.wantTypes), summary.Retrieved)
		})
	}
}

func TestRun_DuplicatesAreRetrievedTwice(t *testing.T) {
	h := newHarness(t, sftest.Router{
		sftest.ListMetadataTypes: sftest.WriteListing(listingOf("Layout", "Layout")),
	})

	_, err := h.run(t, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Layout", "Layout"}, retrievedTypes(h.runner.CallsTo(sftest.RetrieveStart)))
}

func TestRun_FileProcessingFailures(t *testing.T) {
	tests := []struct {
		name    string
		router  sftest.Router
		wantLog string
		wantErr error
	}{
		{
			name:    "malformed JSON",
			router:  sftest.Router{sftest.ListMetadataTypes: sftest.WriteListing(`{"metadataObjects": [{"xmlName": "ApexClass"`)},
			wantLog: "Error parsing JSON file:",
			wantErr: clierrors.ErrListingMalformed,
		},
		{
			name:    "file never written",
			router:  sftest.Router{sftest.ListMetadataTypes: sftest.Succeed("")},
			wantLog: "Error reading file",
			wantErr: clierrors.ErrListingUnreadable,
		},
		{
			name:    "empty array",
			router:  sftest.Router{sftest.ListMetadataTypes: sftest.WriteListing(`{"metadataObjects": []}`)},
			wantLog: "No metadataObjects found in the file.",
			wantErr: clierrors.ErrNoMetadataObjects,
		},
		{
			name:    "missing array",
			router:  sftest.Router{sftest.ListMetadataTypes: sftest.WriteListing(`{"organizationNamespace": "acme"}`)},
			wantLog: "No metadataObjects found in the file.",
			wantErr: clierrors.ErrNoMetadataObjects,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.router)

			summary, err := h.run(t, Options{})
			assert.Nil(t, summary)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, clierrors.IsReported(err))
			assert.Contains(t, h.stderr.String(), tt.wantLog)
			assert.Empty(t, h.runner.CallsTo(sftest.RetrieveStart))
		})
	}
}

func TestRun_ListingFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler sftest.HandlerFunc
		wantLog string
		wantErr error
	}{
		{
			name:    "execution error",
			handler: sftest.Fail("No authorization information found for Acme", errors.New("exit status 1")),
			wantLog: "Error executing listMetadataTypes:",
			wantErr: clierrors.ErrCommandFailed,
		},
		{
			name:    "stderr output",
			handler: sftest.Stderr("Warning: org is deprecated"),
			wantLog: "Error output from listMetadataTypes: Warning: org is deprecated",
			wantErr: clierrors.ErrStderrOutput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, sftest.Router{sftest.ListMetadataTypes: tt.handler})
			// A stale file must not be picked up after a failed listing.
			require.NoError(t, os.WriteFile(h.params.OutputFile, []byte(scenarioListing), 0644))

			summary, err := h.run(t, Options{})
			assert.Nil(t, summary)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, h.stderr.String(), tt.wantLog)
			assert.NotContains(t, h.stdout.String(), "Successfully generated")
			assert.NotContains(t, h.stdout.String(), "Current Metadata")
			assert.Empty(t, h.runner.CallsTo(sftest.RetrieveStart))
		})
	}
}

func TestRun_RetrievalFailuresAreIndependent(t *testing.T) {
	h := newHarness(t, sftest.Router{
		sftest.ListMetadataTypes: sftest.WriteListing(listingOf("ApexClass", "Broken", "Noisy", "Flow")),
		sftest.RetrieveStart: func(ctx context.Context, call sftest.Call) (*sf.Result, error) {
			switch call.Flag("--metadata") {
			case "Broken":
				return &sf.Result{ExitCode: 1, Stderr: "INVALID_TYPE"}, errors.New("exit status 1")
			case "Noisy":
				return &sf.Result{Stderr: "Warning: partial"}, nil
			}
			return &sf.Result{Stdout: "ok"}, nil
		},
	})

	summary, err := h.run(t, Options{Concurrency: 2})
	require.Error(t, err)
	assert.True(t, clierrors.IsPartialRetrieve(err))
	assert.True(t, clierrors.IsReported(err))
	assert.Contains(t, err.Error(), "2 of 4 failed")

	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.Retrieved)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, StatusFailed, summary.Items[1].Status)
	assert.Equal(t, StatusFailed, summary.Items[2].Status)
	assert.Equal(t, 1, summary.Items[1].ExitCode)
	assert.Equal(t, 0, summary.Items[2].ExitCode)
	assert.Len(t, summary.FailedItems(), 2)

	stderr := h.stderr.String()
	assert.Contains(t, stderr, "Error retrieving metadata for Broken:")
	assert.Contains(t, stderr, "Error output during metadata retrieval for Noisy: Warning: partial")
	assert.Contains(t, h.stdout.String(), "Successfully retrieved metadata for ApexClass")
	assert.Contains(t, h.stdout.String(), "Successfully retrieved metadata for Flow")
}

func TestRun_DispatchPanicIsRecovered(t *testing.T) {
	h := newHarness(t, sftest.Router{
		sftest.ListMetadataTypes: sftest.WriteListing(listingOf("ApexClass", "Exploding")),
		sftest.RetrieveStart: func(ctx context.Context, call sftest.Call) (*sf.Result, error) {
			if call.Flag("--metadata") == "Exploding" {
				panic("runner blew up")
			}
			return &sf.Result{Stdout: "ok"}, nil
		},
	})

	summary, err := h.run(t, Options{Concurrency: 2})
	assert.True(t, clierrors.IsPartialRetrieve(err))
	assert.Contains(t, h.stderr.String(), "Dispatch failed for Exploding: runner blew up")
	assert.Equal(t, 1, summary.Retrieved)
	assert.Equal(t, 1, summary.Failed)
}

func TestRun_ConcurrencyIsBounded(t *testing.T) {
	var inFlight, peak int32
	names := make([]string, 12)
	for i := range names {
		names[i] = fmt.Sprintf("Type%d", i)
	}

	h := newHarness(t, sftest.Router{
		sftest.ListMetadataTypes: sftest.WriteListing(listingOf(names...)),
		sftest.RetrieveStart: func(ctx context.Context, call sftest.Call) (*sf.Result, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return &sf.Result{Stdout: "ok"}, nil
		},
	})

	summary, err := h.run(t, Options{Concurrency: 3})
	require.NoError(t, err)
	assert.Equal(t, len(names), summary.Retrieved)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	assert.Equal(t, int32(0), atomic.LoadInt32(&inFlight), "all retrievals finished before Run returned")
}

func TestRun_DryRun(t *testing.T) {
	h := newHarness(t, sftest.Router{
		sftest.ListMetadataTypes: sftest.WriteListing(scenarioListing),
	})

	summary, err := h.run(t, Options{DryRun: true})
	require.NoError(t, err)

	assert.Empty(t, h.runner.CallsTo(sftest.RetrieveStart))
	assert.Contains(t, h.stdout.String(), "sf project retrieve start --metadata ApexClass -o Acme")
	assert.Contains(t, h.stdout.String(), "sf project retrieve start --metadata CustomObject -o Acme")
	assert.Equal(t, 2, summary.Planned)
	assert.Contains(t, summary.String(), "Planned 2 retrieval(s)")
}

func TestRun_SkipListing(t *testing.T) {
	h := newHarness(t, sftest.Router{})
	require.NoError(t, os.WriteFile(h.params.OutputFile, []byte(scenarioListing), 0644))

	summary, err := h.run(t, Options{SkipListing: true})
	require.NoError(t, err)

	assert.Empty(t, h.runner.CallsTo(sftest.ListMetadataTypes))
	assert.Len(t, h.runner.CallsTo(sftest.RetrieveStart), 2)
	assert.Equal(t, 2, summary.Retrieved)
}

func TestRun_Exclude(t *testing.T) {
	h := newHarness(t, sftest.Router{
		sftest.ListMetadataTypes: sftest.WriteListing(listingOf("ApexClass", "Document", "Flow")),
	})

	summary, err := h.run(t, Options{Exclude: []string{"Document", " ", "Flow"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"ApexClass"}, retrievedTypes(h.runner.CallsTo(sftest.RetrieveStart)))
	assert.Equal(t, 2, summary.Excluded)
	assert.Equal(t, StatusExcluded, summary.Items[1].Status)
}

func TestRetrieveAll_CanceledContext(t *testing.T) {
	h := newHarness(t, sftest.Router{
		sftest.ListMetadataTypes: sftest.WriteListing(scenarioListing),
	})
	p := h.pipeline(t, Options{})

	listing, err := p.Discover(context.Background(), h.params)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := p.RetrieveAll(ctx, h.params, listing)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.runner.CallsTo(sftest.RetrieveStart))
	assert.Equal(t, 2, summary.Canceled)
}

func TestNew_ClampsConcurrency(t *testing.T) {
	h := newHarness(t, sftest.Router{})
	p := h.pipeline(t, Options{Concurrency: -3})
	assert.Equal(t, 1, p.opts.Concurrency)
}

func TestSummaryRender_FailuresTable(t *testing.T) {
	summary := &Summary{
		Listed:    3,
		Retrieved: 1,
		Failed:    2,
		Items: []Item{
			{Index: 0, XMLName: "ApexClass", Status: StatusRetrieved},
			{Index: 1, XMLName: "Broken", Status: StatusFailed, ExitCode: 1, Error: "command failed: sf project retrieve start\nmore"},
			{Index: 2, XMLName: "Gone", Status: StatusFailed, ExitCode: -1, Error: "dispatch failed: boom"},
		},
	}

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	v := view.New(view.FormatTable, true)
	v.SetOutput(stdout)
	v.SetError(stderr)
	require.NoError(t, summary.Render(v))

	lines := strings.Split(stdout.String(), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Regexp(t, `^Type\s+Exit\s+Error$`, lines[0])
	assert.Regexp(t, `^Broken\s+1\s+command failed: sf project retrieve start$`, lines[1])
	assert.Regexp(t, `^Gone\s+-\s+dispatch failed: boom$`, lines[2])
	assert.Contains(t, stderr.String(), "Retrieved 1/3 metadata type(s) (0 skipped, 0 excluded, 2 failed)")
}

func TestDiscover_LogsNamedCount(t *testing.T) {
	h := newHarness(t, sftest.Router{
		sftest.ListMetadataTypes: sftest.WriteListing(scenarioListing),
	})
	p := h.pipeline(t, Options{})
	p.view.Verbose = true

	listing, err := p.Discover(context.Background(), h.params)
	require.NoError(t, err)
	assert.Len(t, listing.MetadataObjects, 3)
	assert.Contains(t, h.stderr.String(), "2 of 3 metadataObject(s) carry an xmlName")
	assert.Empty(t, h.runner.CallsTo(sftest.RetrieveStart))
}
