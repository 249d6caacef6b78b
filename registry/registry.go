// Package registry discovers test sources on disk and turns them into
// immutable, classified declarations grouped by collection.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/project-chip/certification-tool-backend-sub001/types"
)

const (
	disabledCollectionsFilename = ".disabled_test_collections"
	disabledTestCasesFilename   = ".disabled_test_cases"

	// Suite folders carrying this suffix hold test cases that a
	// certification run is not allowed to skip.
	mandatorySuffix = "_mandatory"
)

// Registry holds every discovered test declaration.
type Registry struct {
	config Config
	suites []*types.SuiteDeclaration
	mu     sync.RWMutex
}

// Config contains registry configuration
type Config struct {
	Log      log.Logger
	TestsDir string
	// Version annotates declarations with the test source release they were
	// loaded from. CustomTestIdentifier marks operator-provided sources.
	Version string
}

// NewRegistry scans the tests directory and creates a new registry instance
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.TestsDir == "" {
		return nil, fmt.Errorf("tests directory is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{
		config: cfg,
	}

	if err := r.loadCollections(); err != nil {
		return nil, fmt.Errorf("failed to load test collections: %w", err)
	}

	cfg.Log.Debug("Registry loaded", "len(suites)", len(r.suites))

	return r, nil
}

// loadCollections walks TestsDir/<collection>/<suite>/ and parses every test
// source it finds. A malformed source is skipped and logged, never fatal.
func (r *Registry) loadCollections() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	disabledCollections := r.listFile(disabledCollectionsFilename)
	disabledCases := r.listFile(disabledTestCasesFilename)

	collections, err := sortedSubdirs(r.config.TestsDir)
	if err != nil {
		return err
	}

	var suites []*types.SuiteDeclaration
	for _, collection := range collections {
		if disabledCollections[collection] {
			r.config.Log.Info("Skipping disabled collection", "collection", collection)
			continue
		}

		collectionPath := filepath.Join(r.config.TestsDir, collection)
		suiteFolders, err := sortedSubdirs(collectionPath)
		if err != nil {
			return err
		}

		for _, folder := range suiteFolders {
			suite := r.loadSuite(collection, filepath.Join(collectionPath, folder), folder, disabledCases)
			if len(suite.Cases) > 0 {
				suites = append(suites, suite)
			}
		}
	}

	r.suites = suites
	return nil
}

// loadSuite parses every test source in one suite folder.
func (r *Registry) loadSuite(collection, path, folder string, disabledCases map[string]bool) *types.SuiteDeclaration {
	suite := &types.SuiteDeclaration{
		Metadata: types.Metadata{
			PublicID: SafeName(folder),
			Version:  declarationVersion,
			Title:    folder,
		},
		CollectionID: collection,
		Mandatory:    strings.HasSuffix(folder, mandatorySuffix),
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		r.config.Log.Error("Failed to read suite folder", "path", path, "error", err)
		return suite
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		sourcePath := filepath.Join(path, entry.Name())

		var parsed []parsedTest
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml":
			test, err := parseYAMLTest(sourcePath)
			if err != nil {
				r.config.Log.Error("Skipping malformed test source", "path", sourcePath, "error", err)
				continue
			}
			parsed = []parsedTest{test}
		case ".py":
			parsed, err = parsePythonScript(sourcePath)
			if err != nil {
				r.config.Log.Error("Skipping malformed test source", "path", sourcePath, "error", err)
				continue
			}
		default:
			continue
		}

		for _, test := range parsed {
			declaration := NewCaseDeclaration(test, r.config.Version)
			if disabledCases[declaration.Metadata.PublicID] {
				r.config.Log.Info("Skipping disabled test case", "publicID", declaration.Metadata.PublicID)
				continue
			}
			suite.Cases = append(suite.Cases, declaration)
		}
	}

	suite.Classification = suiteClassification(suite.Cases)
	return suite
}

// suiteClassification folds case classifications up to the suite. A suite
// with any simulated case is driven through the simulated app; a suite of
// only manual cases needs no runner at all.
func suiteClassification(cases []*types.CaseDeclaration) types.Classification {
	if len(cases) == 0 {
		return types.ClassManual
	}
	manual := 0
	for _, c := range cases {
		switch c.Classification {
		case types.ClassSimulated:
			return types.ClassSimulated
		case types.ClassManual:
			manual++
		}
	}
	if manual == len(cases) {
		return types.ClassManual
	}
	return types.ClassAutomated
}

// listFile reads one name per line from an optional filter file at the root
// of the tests directory.
func (r *Registry) listFile(name string) map[string]bool {
	path := filepath.Join(r.config.TestsDir, name)
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			r.config.Log.Warn("Failed to read filter file", "path", path, "error", err)
		}
		return nil
	}
	out := make(map[string]bool)
	for _, line := range strings.Split(string(raw), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out[line] = true
		}
	}
	return out
}

func sortedSubdirs(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", path, err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Suites returns every discovered suite declaration in stable order.
func (r *Registry) Suites() []*types.SuiteDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.suites
}

// SuitesForCollection returns the suite declarations of one collection.
func (r *Registry) SuitesForCollection(collection string) []*types.SuiteDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*types.SuiteDeclaration
	for _, s := range r.suites {
		if s.CollectionID == collection {
			out = append(out, s)
		}
	}
	return out
}

// Collections returns the distinct collection names in stable order.
func (r *Registry) Collections() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, s := range r.suites {
		if !seen[s.CollectionID] {
			seen[s.CollectionID] = true
			out = append(out, s.CollectionID)
		}
	}
	sort.Strings(out)
	return out
}

// FindCase looks a case declaration up by public id.
func (r *Registry) FindCase(publicID string) (*types.CaseDeclaration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.suites {
		for _, c := range s.Cases {
			if c.Metadata.PublicID == publicID {
				return c, true
			}
		}
	}
	return nil, false
}
