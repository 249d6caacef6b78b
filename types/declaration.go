package types

// Classification tags a test declaration with the way it is executed.
type Classification string

const (
	ClassManual        Classification = "manual"
	ClassSemiAutomated Classification = "semi_automated"
	ClassAutomated     Classification = "automated"
	ClassSimulated     Classification = "simulated"
	ClassCommissioning Classification = "commissioning"
)

// Metadata identifies one test declaration.
type Metadata struct {
	PublicID    string
	Version     string
	Title       string
	Description string
}

// StepDeclaration is one parsed step of a test source.
type StepDeclaration struct {
	Label         string
	Command       string
	Verification  string
	Disabled      bool
	Commissioning bool
}

// CaseDeclaration is an immutable, parsed and classified test case source.
type CaseDeclaration struct {
	Metadata       Metadata
	Classification Classification
	PICS           PICS
	Config         map[string]any
	Steps          []StepDeclaration
	SourcePath     string
}

// SuiteDeclaration groups case declarations belonging to one collection.
type SuiteDeclaration struct {
	Metadata       Metadata
	CollectionID   string
	Classification Classification
	Mandatory      bool
	Cases          []*CaseDeclaration
}
