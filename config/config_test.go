package config_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/haowjy/unillm-go"
	"github.com/haowjy/unillm-go/config"
)

var _ = Describe("Load", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	write := func(name, data string) string {
		path := filepath.Join(tmpDir, name)
		Expect(os.WriteFile(path, []byte(data), 0o600)).To(Succeed())
		return path
	}

	It("returns defaults when the file is missing", func() {
		cfg, err := config.Load(filepath.Join(tmpDir, "missing.yaml"))
		Expect(err).NotTo(HaveOccurred())

		defaults := config.NewDefaultConfig()
		Expect(cfg.Log.Level).To(Equal(defaults.Log.Level))
		Expect(cfg.Timeout).To(Equal(defaults.Timeout))
		Expect(cfg.Credentials.DotEnv).To(Equal(".env"))
		Expect(cfg.Routes).To(BeEmpty())
	})

	It("reads a YAML file", func() {
		path := write("config.yaml", `
log:
  level: debug
  pretty: true
timeout: 30s
credentials:
  file: /etc/unillm/credentials.toml
providers:
  openai:
    base_url: http://localhost:11434/v1
routes:
  - pattern: "llama*"
    provider: openai
`)
		cfg, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Log.Level).To(Equal("debug"))
		Expect(cfg.Log.Pretty).To(BeTrue())
		Expect(cfg.Timeout).To(Equal(30 * time.Second))
		Expect(cfg.Credentials.File).To(Equal("/etc/unillm/credentials.toml"))
		Expect(cfg.BaseURL(llmprovider.ProviderOpenAI)).To(Equal("http://localhost:11434/v1"))
		Expect(cfg.Routes).To(Equal([]llmprovider.RoutingRule{{Pattern: "llama*", Provider: llmprovider.ProviderOpenAI}}))
	})

	It("reads a TOML file", func() {
		path := write("config.toml", `
timeout = "5s"

[log]
level = "warn"

[providers.gemini]
base_url = "https://gateway.example.com/v1beta"
`)
		cfg, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Log.Level).To(Equal("warn"))
		Expect(cfg.Timeout).To(Equal(5 * time.Second))
		Expect(cfg.BaseURL(llmprovider.ProviderGoogle)).To(Equal("https://gateway.example.com/v1beta"))
	})

	It("lets UNILLM_ environment variables override the file", func() {
		path := write("config.yaml", "log:\n  level: warn\n")
		GinkgoT().Setenv("UNILLM_LOG_LEVEL", "error")
		GinkgoT().Setenv("UNILLM_TIMEOUT", "2m")

		cfg, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Log.Level).To(Equal("error"))
		Expect(cfg.Timeout).To(Equal(2 * time.Minute))
	})

	It("rejects invalid routes", func() {
		path := write("config.yaml", "routes:\n  - pattern: \"llama*\"\n    provider: mystery\n")
		_, err := config.Load(path)
		Expect(err).To(MatchError(ContainSubstring("routes[0]")))
	})

	It("rejects an unknown log level", func() {
		path := write("config.yaml", "log:\n  level: loud\n")
		_, err := config.Load(path)
		Expect(err).To(HaveOccurred())
	})

	It("reports malformed files", func() {
		path := write("config.yaml", "log: [unclosed\n")
		_, err := config.Load(path)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Config", func() {
	It("discovers credentials and fills in configured base URLs", func() {
		dir := GinkgoT().TempDir()
		dotenv := filepath.Join(dir, ".env")
		Expect(os.WriteFile(dotenv, []byte("ANTHROPIC_API_KEY=sk-ant\n"), 0o600)).To(Succeed())
		GinkgoT().Setenv("ANTHROPIC_API_KEY", "")
		GinkgoT().Setenv("ANTHROPIC_BASE_URL", "")

		cfg := config.NewDefaultConfig()
		cfg.Credentials = config.CredentialsConfig{DotEnv: dotenv, File: filepath.Join(dir, "credentials.toml")}
		cfg.Providers["anthropic"] = config.ProviderConfig{BaseURL: "https://proxy.example.com/v1"}

		creds, err := cfg.DiscoverCredentials()
		Expect(err).NotTo(HaveOccurred())

		var anthropic *llmprovider.Credential
		for i := range creds {
			if creds[i].Provider == llmprovider.ProviderAnthropic {
				anthropic = &creds[i]
			}
		}
		Expect(anthropic).NotTo(BeNil())
		Expect(anthropic.APIKey).To(Equal("sk-ant"))
		Expect(anthropic.BaseURL).To(Equal("https://proxy.example.com/v1"))
	})

	It("puts configured routes ahead of the catalog", func() {
		cfg := config.NewDefaultConfig()
		cfg.Routes = []llmprovider.RoutingRule{{Pattern: "claude-*", Provider: llmprovider.ProviderOpenAI}}

		opts, err := cfg.RegistryOptions(nil)
		Expect(err).NotTo(HaveOccurred())

		reg := llmprovider.NewRegistry(opts...)
		Expect(reg.Rules()[0]).To(Equal(cfg.Routes[0]))
		Expect(len(reg.Rules())).To(BeNumerically(">", 1))
	})

	It("builds a logger at the configured level", func() {
		cfg := config.NewDefaultConfig()
		cfg.Log.Level = "warn"
		Expect(cfg.Logger().Enabled(context.Background(), slog.LevelInfo)).To(BeFalse())
		Expect(cfg.Logger().Enabled(context.Background(), slog.LevelWarn)).To(BeTrue())
	})
})

var _ = Describe("BindRegisteredFlags", func() {
	It("lets a set flag beat the environment", func() {
		GinkgoT().Setenv("UNILLM_LOG_LEVEL", "error")

		cmd := &cobra.Command{Use: "test"}
		config.AddStringFlag(cmd, config.GlobalFlags, config.FlagLogLevel)
		Expect(cmd.ParseFlags([]string{"--log-level", "debug"})).To(Succeed())

		v, err := config.InitViper(filepath.Join(GinkgoT().TempDir(), "none.yaml"))
		Expect(err).NotTo(HaveOccurred())
		config.BindRegisteredFlags(v, cmd, config.GlobalFlags, []string{config.FlagLogLevel})

		cfg, err := config.FromViper(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Log.Level).To(Equal("debug"))
	})

	It("registers flags with their defaults", func() {
		cmd := &cobra.Command{Use: "test"}
		config.AddDurationFlag(cmd, config.GlobalFlags, config.FlagTimeout)
		f := cmd.PersistentFlags().Lookup("timeout")
		Expect(f).NotTo(BeNil())
		Expect(f.DefValue).To(Equal("2m0s"))
	})
})
