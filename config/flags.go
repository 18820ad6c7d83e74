package config

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single definition of a CLI flag and the config key it sets.
type Flag struct {
	Name        string
	Shorthand   string
	ViperKey    string
	Description string
}

// FlagSet maps registry keys to flags.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagConfig          = "config"
	FlagLogLevel        = "log-level"
	FlagPretty          = "pretty"
	FlagTimeout         = "timeout"
	FlagCredentialsFile = "credentials-file"
	FlagDotEnv          = "dotenv"
	FlagCatalog         = "catalog"
)

// GlobalFlags are shared by every llmctl command.
var GlobalFlags = FlagSet{
	FlagConfig:          {Name: "config", Shorthand: "c", Description: "Config file (yaml or toml)"},
	FlagLogLevel:        {Name: "log-level", ViperKey: "log.level", Description: "Log level: debug, info, warn, error"},
	FlagPretty:          {Name: "pretty", ViperKey: "log.pretty", Description: "Colorized log output"},
	FlagTimeout:         {Name: "timeout", ViperKey: "timeout", Description: "Timeout for single-shot calls"},
	FlagCredentialsFile: {Name: "credentials-file", ViperKey: "credentials.file", Description: "credentials.toml location"},
	FlagDotEnv:          {Name: "dotenv", ViperKey: "credentials.dotenv", Description: ".env file consulted for API keys"},
	FlagCatalog:         {Name: "catalog", ViperKey: "catalog", Description: "YAML catalog replacing the embedded routing catalog"},
}

// AddStringFlag registers a persistent string flag from fs.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string) {
	def, ok := fs[key]
	if !ok {
		return
	}
	cmd.PersistentFlags().StringP(def.Name, def.Shorthand, defaultString(def.ViperKey), def.Description)
}

// AddBoolFlag registers a persistent bool flag from fs.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string) {
	def, ok := fs[key]
	if !ok {
		return
	}
	cmd.PersistentFlags().BoolP(def.Name, def.Shorthand, defaultBool(def.ViperKey), def.Description)
}

// AddDurationFlag registers a persistent duration flag from fs.
func AddDurationFlag(cmd *cobra.Command, fs FlagSet, key string) {
	def, ok := fs[key]
	if !ok {
		return
	}
	cmd.PersistentFlags().DurationP(def.Name, def.Shorthand, defaultDuration(def.ViperKey), def.Description)
}

// BindRegisteredFlags binds flags that carry a viper key, so a flag the user
// set beats env, file and default.
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, keys []string) {
	for _, key := range keys {
		def, ok := fs[key]
		if !ok || def.ViperKey == "" {
			continue
		}
		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}
		_ = v.BindPFlag(def.ViperKey, f)
	}
}

func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}

func defaultString(viperKey string) string {
	if viperKey == "" {
		return ""
	}
	return defaults().GetString(viperKey)
}

func defaultBool(viperKey string) bool {
	return defaults().GetBool(viperKey)
}

func defaultDuration(viperKey string) time.Duration {
	return defaults().GetDuration(viperKey)
}
