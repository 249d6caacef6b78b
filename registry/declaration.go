package registry

import (
	"regexp"
	"strings"

	"github.com/project-chip/certification-tool-backend-sub001/types"
)

// CustomTestIdentifier tags declarations loaded from operator-provided
// sources so they never shadow the curated set under the same identifier.
const CustomTestIdentifier = "custom"

// SimulatedPathMarker in a source path means the test drives a simulated
// app instead of a physical device under test.
const SimulatedPathMarker = "Simulated"

// declarationVersion is the schema version stamped on every declaration.
const declarationVersion = "0.0.1"

var (
	// Some titles carry [TC-XX-1.1], others a bare TC-XX-1.1.
	identifierPattern = regexp.MustCompile(`TC-[^\s\]]*`)
	safeNamePattern   = regexp.MustCompile(`[^0-9a-zA-Z]+`)
)

// promptCommands are step commands that need an operator in the loop.
var promptCommands = map[string]bool{
	"UserPrompt":         true,
	"PromptWithResponse": true,
	"VerifyVideoStream":  true,
}

// parsedTest is the source-format-independent shape both parsers produce.
type parsedTest struct {
	Name        string
	Description string
	PICS        []string
	Config      map[string]any
	Steps       []types.StepDeclaration
	Path        string
}

// Classify maps one parsed source onto its execution classification. The
// simulated path marker wins over every other rule; after that the first
// matching rule applies.
func Classify(path string, steps []types.StepDeclaration) types.Classification {
	if strings.Contains(path, SimulatedPathMarker) {
		return types.ClassSimulated
	}
	if len(steps) > 0 && steps[0].Commissioning {
		return types.ClassCommissioning
	}
	// Vacuously true for an empty step list: a source declaring nothing
	// runnable is an operator-driven test, not an automated one.
	if allDisabled(steps) {
		return types.ClassManual
	}
	for _, s := range steps {
		if promptCommands[s.Command] {
			return types.ClassSemiAutomated
		}
	}
	return types.ClassAutomated
}

// TestIdentifier extracts the TC token from a source title, falling back to
// the raw title when no token is present.
func TestIdentifier(name string) string {
	if match := identifierPattern.FindString(name); match != "" {
		return match
	}
	return name
}

// SafeName collapses every non-alphanumeric run into a single underscore.
func SafeName(identifier string) string {
	return safeNamePattern.ReplaceAllString(identifier, "_")
}

// NewCaseDeclaration builds the immutable declaration for one parsed test
// source. The classification tag replaces per-type subclasses; executors are
// selected from it at run time.
func NewCaseDeclaration(test parsedTest, version string) *types.CaseDeclaration {
	class := Classify(test.Path, test.Steps)
	identifier := TestIdentifier(test.Name)

	title := identifier
	if class == types.ClassSemiAutomated {
		title += " (Semi-automated)"
	}
	if someDisabled(test.Steps) {
		title += " (Steps Disabled)"
	}

	publicID := identifier
	if version == CustomTestIdentifier {
		publicID = identifier + "-" + CustomTestIdentifier
	}

	description := test.Description
	if description == "" {
		description = test.Name
	}

	pics := make(types.PICS, len(test.PICS))
	for _, item := range test.PICS {
		pics[item] = true
	}

	steps := test.Steps
	if class != types.ClassManual {
		// Disabled steps only survive in manual declarations, where the
		// operator walks every step by hand.
		steps = enabledSteps(test.Steps)
	}

	return &types.CaseDeclaration{
		Metadata: types.Metadata{
			PublicID:    publicID,
			Version:     declarationVersion,
			Title:       title,
			Description: description,
		},
		Classification: class,
		PICS:           pics,
		Config:         normalizeConfig(test.Config),
		Steps:          steps,
		SourcePath:     test.Path,
	}
}

func allDisabled(steps []types.StepDeclaration) bool {
	for _, s := range steps {
		if !s.Disabled {
			return false
		}
	}
	return true
}

// someDisabled reports whether the source disables a strict subset of its
// steps. All-disabled sources are manual, not annotated.
func someDisabled(steps []types.StepDeclaration) bool {
	enabled := 0
	for _, s := range steps {
		if !s.Disabled {
			enabled++
		}
	}
	return enabled > 0 && enabled < len(steps)
}

func enabledSteps(steps []types.StepDeclaration) []types.StepDeclaration {
	out := make([]types.StepDeclaration, 0, len(steps))
	for _, s := range steps {
		if !s.Disabled {
			out = append(out, s)
		}
	}
	return out
}

// normalizeConfig flattens {type, defaultValue} parameter wrappers down to
// the default value, matching how test parameters are declared in sources.
func normalizeConfig(config map[string]any) map[string]any {
	parameters := make(map[string]any, len(config))
	for name, value := range config {
		if nested, ok := value.(map[string]any); ok {
			if def, ok := nested["defaultValue"]; ok {
				parameters[name] = def
			}
			continue
		}
		parameters[name] = value
	}
	return parameters
}
