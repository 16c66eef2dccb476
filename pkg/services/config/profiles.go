package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

const DefaultProfilesFile = ".linkmindcfg"

// Profile describes how remediation commands reach the network.
type Profile struct {
	Name string
	// Actuator is "script" (MML batch file) or "noop" (record only).
	Actuator      string
	ScriptPath    string
	RatePerSecond float64
	Burst         int
}

type Registry interface {
	GetProfiles(ctx context.Context) ([]string, error)
	GetProfile(ctx context.Context, name string) (*Profile, error)
}

type cfgRegistry struct {
	cfg *ini.File
}

// DefaultProfilesPath is $HOME/.linkmindcfg.
func DefaultProfilesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultProfilesFile
	}
	return filepath.Join(home, DefaultProfilesFile)
}

func NewRegistry(path string) (Registry, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	return &cfgRegistry{cfg: cfg}, nil
}

func (cr *cfgRegistry) GetProfiles(_ context.Context) ([]string, error) {
	var profiles []string
	for _, section := range cr.cfg.Sections() {
		if len(section.Keys()) > 0 {
			profiles = append(profiles, section.Name())
		}
	}
	return profiles, nil
}

func (cr *cfgRegistry) GetProfile(_ context.Context, name string) (*Profile, error) {
	section, err := cr.cfg.GetSection(name)
	if err != nil {
		return nil, fmt.Errorf("profile %s not found", name)
	}

	p := &Profile{
		Name:          name,
		Actuator:      section.Key("actuator").MustString("script"),
		ScriptPath:    section.Key("script_path").MustString("remediation.mml"),
		RatePerSecond: section.Key("rate_per_second").MustFloat64(0),
		Burst:         section.Key("burst").MustInt(1),
	}
	switch p.Actuator {
	case "script", "noop":
	default:
		return nil, fmt.Errorf("profile %s: unknown actuator %q", name, p.Actuator)
	}
	if p.RatePerSecond < 0 {
		return nil, fmt.Errorf("profile %s: rate_per_second must not be negative", name)
	}
	return p, nil
}

// DefaultProfile is used when no profiles file exists: commands go to remediation.mml unthrottled.
func DefaultProfile() *Profile {
	return &Profile{Name: "default", Actuator: "script", ScriptPath: "remediation.mml", Burst: 1}
}
