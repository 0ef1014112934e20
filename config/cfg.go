package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	DocumentConfig struct {
		DefaultTitle          string   `yaml:"default_title" validate:"required"`
		Language              string   `yaml:"language" validate:"required,bcp47_language_tag"`
		Creator               string   `yaml:"creator" validate:"required"`
		StylesheetPath        string   `yaml:"stylesheet_path" sanitize:"assure_file_access"`
		OutputNameTemplate    string   `yaml:"output_name_template"`
		FileNameTransliterate bool     `yaml:"file_name_transliterate"`
		FixZip                bool     `yaml:"fix_zip"`
		ContainerSelectors    []string `yaml:"container_selectors" validate:"min=1,dive,required"`
		TitleSelectors        []string `yaml:"title_selectors" validate:"dive,required"`
		UnwantedSelectors     []string `yaml:"unwanted_selectors" validate:"dive,required"`
	}

	SecondaryFetchConfig struct {
		UserAgent     string       `yaml:"user_agent" validate:"required"`
		Proxy         string       `yaml:"proxy" validate:"omitempty,hostname_port"`
		ProxyUser     string       `yaml:"proxy_user"`
		ProxyPassword SecretString `yaml:"proxy_password"`
	}

	ImagesConfig struct {
		MinSize     int                  `yaml:"min_size" validate:"gte=0"`
		Concurrency int                  `yaml:"concurrency" validate:"min=1,max=64"`
		Timeout     time.Duration        `yaml:"timeout" validate:"gt=0"`
		MaxBytes    int64                `yaml:"max_bytes" validate:"min=1024"`
		UserAgent   string               `yaml:"user_agent" validate:"required"`
		Transcode   bool                 `yaml:"transcode"`
		JPEGQuality int                  `yaml:"jpeg_quality" validate:"min=40,max=100"`
		Secondary   SecondaryFetchConfig `yaml:"secondary"`
	}

	ServerConfig struct {
		Listen          string `yaml:"listen" validate:"required"`
		MaxRequestBytes int64  `yaml:"max_request_bytes" validate:"min=1024"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Document  DocumentConfig `yaml:"document"`
		Images    ImagesConfig   `yaml:"images"`
		Server    ServerConfig   `yaml:"server"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above, templates are expanded at the
	// time of packaging, not when configuration is loaded
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// lists from the file replace default lists, they are not merged
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %v", err)
	}
	return data, nil
}
