package config

import (
	"bufio"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nslz/broquet/pkg/er"
)

// Config is the broker's startup configuration. The canonical format is a
// line-oriented key=value file with the keys "port" and "logFile"; files
// named *.yml or *.yaml use the YAML layout instead. The optional usersDB
// key points at a sqlite users database used as an extra credential source.
type Config struct {
	Port    string
	LogFile string
	UsersDB string
}

type yamlConfig struct {
	Server struct {
		Port    string `yaml:"port"`
		LogFile string `yaml:"logFile"`
		UsersDB string `yaml:"usersDB"`
	} `yaml:"server"`
}

// FromFile loads and validates a configuration file. A missing port or
// logFile is fatal at startup.
func FromFile(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)

	if strings.HasSuffix(path, ".yml") || strings.HasSuffix(path, ".yaml") {
		cfg, err = readYAML(path)
	} else {
		cfg, err = readEntries(path)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Port == "" {
		return nil, &er.Err{Context: "Config", Message: er.ErrConfigMissingPort}
	}
	if cfg.LogFile == "" {
		return nil, &er.Err{Context: "Config", Message: er.ErrConfigMissingLogFile}
	}

	return cfg, nil
}

func readEntries(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := &Config{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, &er.Err{Context: "Config", Message: er.ErrConfigMalformedLine}
		}

		switch key {
		case "port":
			cfg.Port = value
		case "logFile":
			cfg.LogFile = value
		case "usersDB":
			cfg.UsersDB = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readYAML(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(raw, &yc); err != nil {
		return nil, err
	}

	return &Config{
		Port:    yc.Server.Port,
		LogFile: yc.Server.LogFile,
		UsersDB: yc.Server.UsersDB,
	}, nil
}
