// Package metadata models the metadata-type listing written by `sf org list metadata-types`.
package metadata

// MetadataType describes one metadata type available in the org.
type MetadataType struct {
	XMLName       string   `json:"xmlName" yaml:"xmlName"`
	DirectoryName string   `json:"directoryName,omitempty" yaml:"directoryName,omitempty"`
	Suffix        string   `json:"suffix,omitempty" yaml:"suffix,omitempty"`
	InFolder      bool     `json:"inFolder" yaml:"inFolder"`
	MetaFile      bool     `json:"metaFile" yaml:"metaFile"`
	ChildNames    []string `json:"childXmlNames,omitempty" yaml:"childXmlNames,omitempty"`
}

// HasName reports whether the descriptor carries a usable type name.
func (m MetadataType) HasName() bool {
	return m.XMLName != ""
}

// DescribeMetadataResult is the top-level object of a listing file.
type DescribeMetadataResult struct {
	MetadataObjects       []MetadataType `json:"metadataObjects"`
	OrganizationNamespace string         `json:"organizationNamespace"`
	PartialSaveAllowed    bool           `json:"partialSaveAllowed"`
	TestRequired          bool           `json:"testRequired"`
}
