package retrieval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/open-cli-collective/sfretrieve/api/metadata"
	"github.com/open-cli-collective/sfretrieve/internal/view"
)

// Status is the outcome of one descriptor.
type Status string

// Descriptor outcomes.
const (
	StatusPending   Status = "pending"
	StatusRetrieved Status = "retrieved"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusExcluded  Status = "excluded"
	StatusPlanned   Status = "planned"
	StatusCanceled  Status = "canceled"
)

// Item records what happened to one descriptor of the listing.
type Item struct {
	Index    int    `json:"index" yaml:"index"`
	XMLName  string `json:"xmlName,omitempty" yaml:"xmlName,omitempty"`
	Status   Status `json:"status" yaml:"status"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
	// ExitCode is the sf exit status of a failed retrieval, -1 when sf never ran to completion.
	ExitCode int    `json:"exitCode,omitempty" yaml:"exitCode,omitempty"`
}

// Summary is the result of a run.
type Summary struct {
	RunID      string `json:"runId" yaml:"runId"`
	TargetOrg  string `json:"targetOrg" yaml:"targetOrg"`
	OutputFile string `json:"outputFile" yaml:"outputFile"`
	Listed     int    `json:"listed" yaml:"listed"`
	Retrieved  int    `json:"retrieved" yaml:"retrieved"`
	Failed     int    `json:"failed" yaml:"failed"`
	Skipped    int    `json:"skipped" yaml:"skipped"`
	Excluded   int    `json:"excluded" yaml:"excluded"`
	Planned    int    `json:"planned,omitempty" yaml:"planned,omitempty"`
	Canceled   int    `json:"canceled,omitempty" yaml:"canceled,omitempty"`
	Items      []Item `json:"items" yaml:"items"`
}

func newSummary(params Params, listing *metadata.DescribeMetadataResult) *Summary {
	items := make([]Item, len(listing.MetadataObjects))
	for i, mt := range listing.MetadataObjects {
		items[i] = Item{Index: i, XMLName: mt.XMLName, Status: StatusPending}
	}
	return &Summary{
		RunID:      uuid.New().String(),
		TargetOrg:  params.TargetOrg,
		OutputFile: params.OutputFile,
		Listed:     len(items),
		Items:      items,
	}
}

func (s *Summary) tally() {
	s.Retrieved, s.Failed, s.Skipped, s.Excluded, s.Planned, s.Canceled = 0, 0, 0, 0, 0, 0
	for _, it := range s.Items {
		switch it.Status {
		case StatusRetrieved:
			s.Retrieved++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusExcluded:
			s.Excluded++
		case StatusPlanned:
			s.Planned++
		case StatusCanceled:
			s.Canceled++
		}
	}
}

// Dispatched is the number of retrievals that were actually started.
func (s *Summary) Dispatched() int {
	return s.Retrieved + s.Failed
}

// FailedItems returns the items whose retrieval failed, in listing order.
func (s *Summary) FailedItems() []Item {
	var out []Item
	for _, it := range s.Items {
		if it.Status == StatusFailed {
			out = append(out, it)
		}
	}
	return out
}

// String is the one-line human summary.
func (s *Summary) String() string {
	if s.Planned > 0 {
		return fmt.Sprintf("Planned %d retrieval(s) from %d metadata type(s) (%d skipped, %d excluded)",
			s.Planned, s.Listed, s.Skipped, s.Excluded)
	}
	return fmt.Sprintf("Retrieved %d/%d metadata type(s) (%d skipped, %d excluded, %d failed)",
		s.Retrieved, s.Listed, s.Skipped, s.Excluded, s.Failed)
}

// Render writes the summary: a document for json/yaml, otherwise a summary line
// followed by a table of failures.
func (s *Summary) Render(v *view.View) error {
	if v.IsStructured() {
		return v.Document(s)
	}

	failed := s.FailedItems()
	if len(failed) > 0 {
		rows := make([][]string, 0, len(failed))
		for _, it := range failed {
			rows = append(rows, []string{it.XMLName, exitStatus(it.ExitCode), view.Truncate(firstLine(it.Error), 100)})
		}
		if err := v.Table([]string{"Type", "Exit", "Error"}, rows); err != nil {
			return err
		}
	}

	if s.Failed > 0 {
		v.Warning("%s", s.String())
	} else {
		v.Success("%s", s.String())
	}
	return nil
}

func exitStatus(code int) string {
	if code < 0 {
		return "-"
	}
	return strconv.Itoa(code)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
