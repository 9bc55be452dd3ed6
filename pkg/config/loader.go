package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/caudal/pkg/logger"
	"github.com/ajitpratap0/caudal/pkg/persistence"
)

// EnvPrefix prefixes environment overrides, e.g. CAUDAL_WAREHOUSE_PROJECT_ID
const EnvPrefix = "CAUDAL"

// Load builds the configuration from the YAML file dir/fileName, or from
// literal when fileName is empty. When a file is named the literal mapping
// is ignored. ${VAR} references in the file are replaced with environment
// values before parsing.
func Load(dir, fileName string, literal map[string]any) (*Configs, error) {
	cfg, err := Read(dir, fileName, literal)
	if err != nil {
		return nil, err
	}
	cfg.LogSource(logger.Get())
	return cfg, nil
}

// Read is Load without logging, for callers that configure the logger
// from the result and call LogSource afterwards.
func Read(dir, fileName string, literal map[string]any) (*Configs, error) {
	doc := literal
	var path string
	if fileName != "" {
		path = filepath.Join(dir, fileName)
		data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the project layout
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		doc, err = persistence.NewYAMLStore().Decode([]byte(substituteEnvVars(string(data))), path)
		if err != nil {
			return nil, err
		}
	}

	cfg, err := FromMap(doc)
	if err != nil {
		return nil, err
	}
	cfg.source = path
	return cfg, nil
}

// LogSource logs the file the configuration was read from, if any.
func (c *Configs) LogSource(log *logger.Logger) {
	if c.source != "" {
		log.Named("configs").Info("Loaded configs from file", c.source)
	}
}

// Source returns the file the configuration was read from, or "" when it
// was built from a mapping.
func (c *Configs) Source() string {
	return c.source
}

// FromMap decodes a configuration mapping. Missing options take their
// defaults and CAUDAL_<SECTION>_<KEY> environment variables override both.
func FromMap(doc map[string]any) (*Configs, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, "", Default().toMap())

	if err := v.MergeConfigMap(doc); err != nil {
		return nil, fmt.Errorf("failed to merge configuration: %w", err)
	}

	cfg := &Configs{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	cfg.settings = cfg.toMap()
	for k, val := range doc {
		if _, known := cfg.settings[k]; !known {
			cfg.settings[k] = val
		}
	}
	return cfg, nil
}

// Save writes the recognized options to path as YAML.
func (c *Configs) Save(path string) error {
	return persistence.NewYAMLStore().WriteDocument(c, path)
}

func setDefaults(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			setDefaults(v, key, nested)
			continue
		}
		v.SetDefault(key, val)
	}
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
// Substituted values are not scanned again.
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		b.WriteString(content[:start])
		b.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
