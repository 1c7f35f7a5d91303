package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ChannelFile mirrors the YAML layout accepted by -y. Declarations go
// through the same validation as -c, so a bad index or a missing name
// fails the whole parse.
type ChannelFile struct {
	Channels []struct {
		Index  int     `yaml:"index"`
		Name   string  `yaml:"name"`
		Format *string `yaml:"format"`
	} `yaml:"channels"`
}

// LoadChannelFile reads channel declarations from path into the registry.
func LoadChannelFile(path string, r *Registry) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read channel file")
	}

	var cf ChannelFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return errors.Wrapf(err, "parse channel file %s", path)
	}

	for _, c := range cf.Channels {
		if c.Format == nil {
			if err := r.SetChannel(c.Index, c.Name, "", false); err != nil {
				return err
			}
			continue
		}
		if err := r.SetChannel(c.Index, c.Name, Unescape(*c.Format), true); err != nil {
			return err
		}
	}
	return nil
}
