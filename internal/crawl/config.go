package crawl

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ftkghost/SuperSaver/internal/data/repos"
	types "github.com/ftkghost/SuperSaver/internal/domain"
	"github.com/ftkghost/SuperSaver/internal/platform/dbctx"
)

const (
	DefaultConcurrency = 4
	DefaultLockTTL     = 30 * time.Minute
	DefaultMaxAttempts = 3
)

//go:embed sources.yaml
var builtinSources []byte

// SessionConfig controls one crawl session over a data source.
type SessionConfig struct {
	DataSourceID int16
	// Now is the session clock in epoch seconds. Seeding and sweeping both
	// use it.
	Now         int64
	Concurrency int
	LockTTL     time.Duration
	// MaxAttempts bounds how often an observation is applied when the
	// database reports a retryable failure.
	MaxAttempts int
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.LockTTL <= 0 {
		c.LockTTL = DefaultLockTTL
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Now == 0 {
		c.Now = time.Now().Unix()
	}
	return c
}

type FileConfig struct {
	Sources []SourceSettings `yaml:"sources"`
	Regions []RegionSettings `yaml:"regions"`
}

// RegionSettings seeds one region. A parent must be listed before its
// children, in the same country.
type RegionSettings struct {
	CountryCode string `yaml:"country_code"`
	Name        string `yaml:"name"`
	DisplayName string `yaml:"display_name"`
	Parent      string `yaml:"parent"`
}

// SourceSettings describes a crawled site and how to crawl it.
type SourceSettings struct {
	ID          int16         `yaml:"id"`
	Name        string        `yaml:"name"`
	DisplayName string        `yaml:"display_name"`
	Site        string        `yaml:"site"`
	LogoURL     *string       `yaml:"logo_url"`
	CountryCode string        `yaml:"country_code"`
	Concurrency int           `yaml:"concurrency"`
	LockTTL     time.Duration `yaml:"lock_ttl"`
}

// LoadFileConfig reads the sources file at path, or the built-in source list
// when path is empty.
func LoadFileConfig(path string) (FileConfig, error) {
	raw := builtinSources
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return FileConfig{}, fmt.Errorf("read crawl config: %w", err)
		}
		raw = b
	}
	return ParseFileConfig(raw)
}

func ParseFileConfig(raw []byte) (FileConfig, error) {
	var cfg FileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse crawl config: %w", err)
	}
	seen := map[int16]string{}
	for i, s := range cfg.Sources {
		if s.ID <= 0 || strings.TrimSpace(s.Name) == "" {
			return FileConfig{}, fmt.Errorf("source %d: id and name are required", i)
		}
		if prev, dup := seen[s.ID]; dup {
			return FileConfig{}, fmt.Errorf("source id %d used by %q and %q", s.ID, prev, s.Name)
		}
		seen[s.ID] = s.Name
	}
	known := map[string]bool{}
	for i, r := range cfg.Regions {
		country := strings.ToUpper(strings.TrimSpace(r.CountryCode))
		name := types.NormalizeName(r.Name)
		if country == "" || name == "" {
			return FileConfig{}, fmt.Errorf("region %d: country_code and name are required", i)
		}
		if r.Parent != "" && !known[country+"|"+types.NormalizeName(r.Parent)] {
			return FileConfig{}, fmt.Errorf("region %q: parent %q is not listed before it", r.Name, r.Parent)
		}
		known[country+"|"+name] = true
	}
	return cfg, nil
}

// SeedRegions ensures the configured regions of countryCode exist and are
// active. It returns how many were written.
func (c FileConfig) SeedRegions(ctx context.Context, repo repos.RegionRepo, countryCode string) (int, error) {
	countryCode = strings.ToUpper(strings.TrimSpace(countryCode))
	dbc := dbctx.Context{Ctx: ctx}
	ids := map[string]uuid.UUID{}
	n := 0
	for _, r := range c.Regions {
		if !strings.EqualFold(strings.TrimSpace(r.CountryCode), countryCode) {
			continue
		}
		reg := &types.Region{
			CountryCode: countryCode,
			Name:        r.Name,
			DisplayName: strings.TrimSpace(r.DisplayName),
		}
		if reg.DisplayName == "" {
			reg.DisplayName = strings.TrimSpace(r.Name)
		}
		if r.Parent != "" {
			parent := ids[types.NormalizeName(r.Parent)]
			reg.ParentID = &parent
		}
		if err := repo.Ensure(dbc, reg); err != nil {
			return n, fmt.Errorf("seed region %q: %w", r.Name, err)
		}
		ids[types.NormalizeName(r.Name)] = reg.ID
		n++
	}
	return n, nil
}

// Source finds a source by name, case-insensitively.
func (c FileConfig) Source(name string) (SourceSettings, bool) {
	name = strings.TrimSpace(name)
	for _, s := range c.Sources {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return SourceSettings{}, false
}

func (s SourceSettings) DataSource() *types.DataSource {
	ds := &types.DataSource{
		ID:          s.ID,
		Name:        s.Name,
		DisplayName: s.DisplayName,
		Site:        s.Site,
		LogoURL:     s.LogoURL,
		CountryCode: strings.ToUpper(strings.TrimSpace(s.CountryCode)),
	}
	if ds.DisplayName == "" {
		ds.DisplayName = s.Name
	}
	ds.Normalize()
	return ds
}

// SessionConfig applies the source's crawl settings on top of base.
func (s SourceSettings) SessionConfig(base SessionConfig) SessionConfig {
	base.DataSourceID = s.ID
	if base.Concurrency <= 0 {
		base.Concurrency = s.Concurrency
	}
	if base.LockTTL <= 0 {
		base.LockTTL = s.LockTTL
	}
	return base
}
