// Package learnpress bundles the LearnPress end-to-end workflows, the login
// workflow that authenticates a session, and the default locator configuration.
package learnpress

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"github.com/lmsqa/flowrunner/pkg/flow"
)

// Embedded file names.
const (
	LocatorsFile = "locators.yaml"
	LoginFile    = "login.yaml"
	WorkflowDir  = "workflows"
)

//go:embed locators.yaml login.yaml workflows/*.yaml
var files embed.FS

// Locators returns the default locator configuration.
func Locators() (*flow.LocatorSet, error) {
	data, err := files.ReadFile(LocatorsFile)
	if err != nil {
		return nil, err
	}
	return flow.ParseLocators(data, LocatorsFile)
}

// LoadLocators returns the default configuration with the entries of the file at
// overridePath replacing the defaults of the same name. Locales restricts the
// accepted indicator texts when non-empty.
func LoadLocators(overridePath string, locales []string) (*flow.LocatorSet, error) {
	set, err := Locators()
	if err != nil {
		return nil, err
	}
	var override *flow.LocatorSet
	if overridePath != "" {
		if override, err = flow.LoadLocators(overridePath); err != nil {
			return nil, err
		}
	}
	set = set.Merge(override)
	if len(locales) > 0 {
		set.Locales = locales
	}
	return set, nil
}

// Login parses the login workflow.
func Login(locators *flow.LocatorSet) (flow.Workflow, error) {
	wfs, err := parse(LoginFile, locators)
	if err != nil {
		return flow.Workflow{}, err
	}
	if len(wfs) != 1 {
		return flow.Workflow{}, fmt.Errorf("%s: expected one workflow, got %d", LoginFile, len(wfs))
	}
	return wfs[0], nil
}

// Workflows parses every bundled workflow in file order, matrix combinations expanded.
func Workflows(locators *flow.LocatorSet) ([]flow.Workflow, error) {
	names, err := WorkflowFiles()
	if err != nil {
		return nil, err
	}
	var out []flow.Workflow
	for _, name := range names {
		wfs, err := parse(name, locators)
		if err != nil {
			return nil, err
		}
		out = append(out, wfs...)
	}
	return out, nil
}

// WorkflowFiles lists the bundled workflow files, sorted.
func WorkflowFiles() ([]string, error) {
	entries, err := fs.ReadDir(files, WorkflowDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && path.Ext(e.Name()) == ".yaml" {
			names = append(names, path.Join(WorkflowDir, e.Name()))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Source returns the raw content of a bundled file.
func Source(name string) ([]byte, error) {
	return files.ReadFile(name)
}

func parse(name string, locators *flow.LocatorSet) ([]flow.Workflow, error) {
	data, err := files.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return flow.Parse(data, name, locators)
}
