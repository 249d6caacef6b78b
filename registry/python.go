package registry

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/project-chip/certification-tool-backend-sub001/types"
)

// Python test scripts declare one method group per test case:
// test_[name] holds the logic, desc_[name] the description, and the
// optional steps_[name] / pics_[name] the step list and required PICS.
var (
	testFunctionPattern = regexp.MustCompile(`def test_(TC_[A-Za-z0-9_]+)\s*\(`)
	quotedPattern       = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
	stepDescPattern     = regexp.MustCompile(`^\s*[^,]*,\s*"((?:[^"\\]|\\.)*)"`)
)

// legacyStepLabel marks scripts written before per-step reporting existed.
const legacyStepLabel = "Run entire test"

// parsePythonScript scans a python script for test cases following the
// test_/desc_/steps_/pics_ method naming convention. One script can declare
// several test cases.
func parsePythonScript(path string) ([]parsedTest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read test source: %w", err)
	}
	source := string(raw)

	var tests []parsedTest
	for _, match := range testFunctionPattern.FindAllStringSubmatch(source, -1) {
		name := match[1]

		test := parsedTest{
			Name:   name,
			Config: map[string]any{},
			Path:   path,
		}
		if body := methodBody(source, "desc_"+name); body != "" {
			if m := quotedPattern.FindStringSubmatch(body); m != nil && m[1] != "" {
				test.Description = m[1]
			}
		}
		if body := methodBody(source, "pics_"+name); body != "" {
			for _, m := range quotedPattern.FindAllStringSubmatch(body, -1) {
				test.PICS = append(test.PICS, m[1])
			}
		}
		test.Steps = pythonSteps(methodBody(source, "steps_"+name))
		if len(test.Steps) == 0 {
			test.Steps = []types.StepDeclaration{{Label: legacyStepLabel}}
		}

		tests = append(tests, test)
	}

	if len(tests) == 0 {
		return nil, fmt.Errorf("python script %s declares no test cases", path)
	}
	return tests, nil
}

// methodBody slices out the source text of one method, from its def line to
// the next def at any indentation. Empty when the method is absent.
func methodBody(source, name string) string {
	marker := "def " + name
	start := strings.Index(source, marker)
	if start < 0 {
		return ""
	}
	body := source[start+len(marker):]
	if end := strings.Index(body, "def "); end >= 0 {
		body = body[:end]
	}
	return body
}

// pythonSteps extracts TestStep declarations from a steps_ method body. The
// step description is the second constructor argument.
func pythonSteps(body string) []types.StepDeclaration {
	var steps []types.StepDeclaration
	segments := strings.Split(body, "TestStep(")
	for _, seg := range segments[1:] {
		m := stepDescPattern.FindStringSubmatch(seg)
		if m == nil {
			continue
		}
		call := seg
		if end := strings.Index(seg, ")"); end >= 0 {
			call = seg[:end]
		}
		steps = append(steps, types.StepDeclaration{
			Label:         m[1],
			Commissioning: strings.Contains(call, "is_commissioning=True"),
		})
	}
	return steps
}
