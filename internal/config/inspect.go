package config

import "github.com/spf13/pflag"

// InspectConfig holds configuration for the inspect command.
type InspectConfig struct {
	StateFile string
	Events    string
	PGDSN     string
	Vault     string
	Names     []string
	LogLevel  string
}

// LoadInspect merges config file, environment variables, and flags into InspectConfig.
func LoadInspect(cfgFile string, flags *pflag.FlagSet) (InspectConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"state-file": "./data/vault_state.json",
		"events":     "./data/vault_events.jsonl",
		"log-level":  "info",
	})
	if err != nil {
		return InspectConfig{}, err
	}

	return InspectConfig{
		StateFile: v.GetString("state-file"),
		Events:    v.GetString("events"),
		PGDSN:     v.GetString("pg-dsn"),
		Vault:     v.GetString("vault"),
		Names:     getStringSlice(v, "event"),
		LogLevel:  v.GetString("log-level"),
	}, nil
}
