package guest

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/uihost/internal/shared/utils"
)

// Manifest lists guests to host at startup
type Manifest struct {
	Guests []Entry `yaml:"guests" toml:"guests"`
}

// Entry names one guest. Source is a path (relative to the manifest) or
// an http(s) URL.
type Entry struct {
	Name   string `yaml:"name" toml:"name"`
	Source string `yaml:"source" toml:"source"`
}

// LoadManifest reads a YAML or TOML manifest, picked by extension
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	case ".toml":
		err = toml.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("manifest %s: unknown format", path)
	}
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}

	base := filepath.Dir(path)
	for i := range m.Guests {
		e := &m.Guests[i]
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("manifest %s: guest %d: %w", path, i, err)
		}
		if !isURL(e.Source) && !filepath.IsAbs(e.Source) {
			e.Source = filepath.Join(base, e.Source)
		}
	}
	return &m, nil
}

func (e *Entry) validate() error {
	if err := utils.ValidateString(e.Source, "source", 1, 4096, true); err != nil {
		return err
	}
	if e.Name == "" {
		e.Name = NameFromPath(e.Source)
	}
	return utils.ValidateName(e.Name, "name")
}

func isURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}
