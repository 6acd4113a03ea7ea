package monaco

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// manifestEnvName is the environment name referenced by generated manifests.
const manifestEnvName = "target"

// Monaco v2 deploy manifest. Only the fields the generated manifest needs.
type manifest struct {
	ManifestVersion   string             `yaml:"manifestVersion"`
	Projects          []manifestProject  `yaml:"projects"`
	EnvironmentGroups []environmentGroup `yaml:"environmentGroups"`
}

type manifestProject struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

type environmentGroup struct {
	Name         string                `yaml:"name"`
	Environments []manifestEnvironment `yaml:"environments"`
}

type manifestEnvironment struct {
	Name string        `yaml:"name"`
	URL  manifestValue `yaml:"url"`
	Auth manifestAuth  `yaml:"auth"`
}

type manifestValue struct {
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

type manifestAuth struct {
	Token manifestToken `yaml:"token"`
}

type manifestToken struct {
	Type string `yaml:"type"`
	Name string `yaml:"name"`
}

// writeManifest generates manifest.yaml inside backupPath pointing Monaco at
// the backup's project directory and the given token env var. Exports made
// by this tool keep their configs in a "project" subdirectory; older layouts
// with configs at the backup root are deployed as project "backup".
func writeManifest(backupPath, envURL, tokenVar string) (manifestPath, projectName string, err error) {
	projectName = "project"
	projectRel := "project"
	if _, statErr := os.Stat(filepath.Join(backupPath, "project")); statErr != nil {
		projectName = "backup"
		projectRel = "."
	}

	m := manifest{
		ManifestVersion: "1.0",
		Projects:        []manifestProject{{Name: projectName, Path: projectRel}},
		EnvironmentGroups: []environmentGroup{{
			Name: "default",
			Environments: []manifestEnvironment{{
				Name: manifestEnvName,
				URL:  manifestValue{Type: "value", Value: envURL},
				Auth: manifestAuth{Token: manifestToken{Type: "environment", Name: tokenVar}},
			}},
		}},
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal manifest: %w", err)
	}
	manifestPath = filepath.Join(backupPath, "manifest.yaml")
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return "", "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return manifestPath, projectName, nil
}
