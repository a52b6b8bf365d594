package metadata

import (
	"encoding/json"
	"errors"
	"os"
	"sort"

	clierrors "github.com/open-cli-collective/sfretrieve/internal/errors"
)

// ReadListing reads and parses the listing file at path.
//
// Errors are a *errors.ListingError for unreadable or malformed files, or
// errors.ErrNoMetadataObjects when the metadataObjects array is missing or empty.
func ReadListing(path string) (*DescribeMetadataResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &clierrors.ListingError{Path: path, Err: err}
	}
	result, err := ParseListing(data)
	if err != nil {
		var le *clierrors.ListingError
		if errors.As(err, &le) {
			le.Path = path
		}
		return nil, err
	}
	return result, nil
}

// ParseListing parses listing JSON. See ReadListing for the error contract.
//
// Only the document shape is checked. Each element of metadataObjects is decoded
// on its own and field by field: an element that is not an object, or a field of
// an unexpected type, leaves the zero value instead of failing the document, so a
// descriptor without a usable xmlName is simply unnamed.
func ParseListing(data []byte) (*DescribeMetadataResult, error) {
	var doc struct {
		MetadataObjects       []json.RawMessage `json:"metadataObjects"`
		OrganizationNamespace json.RawMessage   `json:"organizationNamespace"`
		PartialSaveAllowed    json.RawMessage   `json:"partialSaveAllowed"`
		TestRequired          json.RawMessage   `json:"testRequired"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &clierrors.ListingError{Malformed: true, Err: err}
	}
	if len(doc.MetadataObjects) == 0 {
		return nil, clierrors.ErrNoMetadataObjects
	}

	result := &DescribeMetadataResult{
		MetadataObjects:       make([]MetadataType, len(doc.MetadataObjects)),
		OrganizationNamespace: decodeLenient[string](doc.OrganizationNamespace),
		PartialSaveAllowed:    decodeLenient[bool](doc.PartialSaveAllowed),
		TestRequired:          decodeLenient[bool](doc.TestRequired),
	}
	for i, raw := range doc.MetadataObjects {
		result.MetadataObjects[i] = decodeMetadataType(raw)
	}
	return result, nil
}

func decodeMetadataType(raw json.RawMessage) MetadataType {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return MetadataType{}
	}
	return MetadataType{
		XMLName:       decodeLenient[string](fields["xmlName"]),
		DirectoryName: decodeLenient[string](fields["directoryName"]),
		Suffix:        decodeLenient[string](fields["suffix"]),
		InFolder:      decodeLenient[bool](fields["inFolder"]),
		MetaFile:      decodeLenient[bool](fields["metaFile"]),
		ChildNames:    decodeLenient[[]string](fields["childXmlNames"]),
	}
}

// decodeLenient returns the zero value when raw is absent or of another type.
func decodeLenient[T any](raw json.RawMessage) T {
	var v T
	if len(raw) == 0 {
		return v
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		var zero T
		return zero
	}
	return v
}

// Names returns the non-empty type names in listing order, duplicates included.
func (r *DescribeMetadataResult) Names() []string {
	names := make([]string, 0, len(r.MetadataObjects))
	for _, mt := range r.MetadataObjects {
		if mt.HasName() {
			names = append(names, mt.XMLName)
		}
	}
	return names
}

// Sorted returns a copy of the metadata types ordered by XMLName.
func (r *DescribeMetadataResult) Sorted() []MetadataType {
	sorted := append([]MetadataType(nil), r.MetadataObjects...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].XMLName < sorted[j].XMLName
	})
	return sorted
}
