package persist

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type (
	// Profile holds the persistence settings of a form. Unset fields fall
	// back to the defaults profile and then to the controller defaults.
	Profile struct {
		IgnoreFields     []string       `yaml:"ignore_fields"`
		Debounce         *time.Duration `yaml:"debounce"`
		SessionStorage   *bool          `yaml:"session_storage"`
		FullPathMatching *bool          `yaml:"full_path_matching"`
	}

	// Profiles maps form names to their settings, e.g.
	//
	//	defaults:
	//	  debounce: 300ms
	//	forms:
	//	  signup:
	//	    ignore_fields: [password, person.gender]
	//	    session_storage: true
	Profiles struct {
		Defaults Profile            `yaml:"defaults"`
		Forms    map[string]Profile `yaml:"forms"`
	}
)

// LoadProfiles reads a profiles document from a yaml file
func LoadProfiles(path string) (*Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read profiles")
	}
	return ParseProfiles(data)
}

// ParseProfiles decodes a yaml profiles document
func ParseProfiles(data []byte) (*Profiles, error) {
	p := &Profiles{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, errors.Wrapf(ErrConfiguration, "invalid profiles: %v", err)
	}
	for name, profile := range p.Forms {
		if name == "" {
			return nil, errors.Wrap(ErrConfiguration, "profile with empty form name")
		}
		if profile.Debounce != nil && *profile.Debounce < 0 {
			return nil, errors.Wrapf(ErrConfiguration, "profile %q: debounce must not be negative", name)
		}
	}
	if p.Defaults.Debounce != nil && *p.Defaults.Debounce < 0 {
		return nil, errors.Wrap(ErrConfiguration, "defaults: debounce must not be negative")
	}
	return p, nil
}

// Options resolves the controller options for the named form.
// A nil receiver yields no options.
func (p *Profiles) Options(name string) []Option {
	if p == nil {
		return nil
	}
	form := p.Forms[name]
	var opts []Option

	ignoreFields := form.IgnoreFields
	if ignoreFields == nil {
		ignoreFields = p.Defaults.IgnoreFields
	}
	if ignoreFields != nil {
		opts = append(opts, WithIgnoreFields(ignoreFields))
	}
	if v := firstDuration(form.Debounce, p.Defaults.Debounce); v != nil {
		opts = append(opts, WithDebounce(*v))
	}
	if v := firstBool(form.SessionStorage, p.Defaults.SessionStorage); v != nil {
		opts = append(opts, WithSessionStorage(*v))
	}
	if v := firstBool(form.FullPathMatching, p.Defaults.FullPathMatching); v != nil {
		opts = append(opts, WithFullPathMatching(*v))
	}
	return opts
}

func firstDuration(values ...*time.Duration) *time.Duration {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstBool(values ...*bool) *bool {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
