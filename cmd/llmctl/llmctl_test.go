package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/haowjy/unillm-go"
	"github.com/haowjy/unillm-go/credentials"
)

// setenv sets key for the current test and restores it afterwards.
func setenv(key, value string) {
	orig, had := os.LookupEnv(key)
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(func() {
		if had {
			_ = os.Setenv(key, orig)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}

var _ = Describe("llmctl", func() {
	var (
		dir       string
		credsPath string
		out       *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := newRootCmd()
		out = &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetIn(strings.NewReader(""))
		base := []string{
			"--credentials-file", credsPath,
			"--dotenv", filepath.Join(dir, ".env"),
			"--log-level", "error",
		}
		cmd.SetArgs(append(args, base...))
		return cmd.ExecuteContext(context.Background())
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		credsPath = filepath.Join(dir, "credentials.toml")

		origCwd, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(dir)).To(Succeed())
		DeferCleanup(os.Chdir, origCwd)

		setenv("XDG_CONFIG_HOME", dir)
		setenv("HOME", dir)
		for _, key := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"} {
			setenv(key, "")
		}
	})

	Describe("generate", func() {
		It("prints lorem text for every provider", func() {
			for _, model := range []string{"gpt-lorem-fast", "claude-lorem-fast", "gemini-lorem-fast"} {
				Expect(run("generate", "--lorem", "--max-tokens", "8", model, "hello")).To(Succeed())
				Expect(strings.Fields(out.String())).To(HaveLen(8), model)
			}
		})

		It("prints the normalized response as JSON", func() {
			Expect(run("generate", "--lorem", "--json", "--max-tokens", "5", "claude-lorem-fast", "hi")).To(Succeed())

			var resp llmprovider.Response
			Expect(json.Unmarshal(out.Bytes(), &resp)).To(Succeed())
			Expect(resp.Provider).To(Equal(llmprovider.ProviderAnthropic))
			Expect(resp.StopReason).To(Equal(llmprovider.StopReasonLength))
			Expect(strings.Fields(resp.Text)).To(HaveLen(5))
		})

		It("fails without credentials", func() {
			err := run("generate", "gpt-4o-mini", "hi")
			Expect(err).To(MatchError(llmprovider.ErrNoProvidersConfigured))
		})

		It("rejects invalid parameters before sending", func() {
			err := run("generate", "--lorem", "--temperature", "3", "gpt-lorem", "hi")
			Expect(llmprovider.IsInvalidRequest(err)).To(BeTrue())
		})

		It("requires a prompt", func() {
			Expect(run("generate", "gpt-4o-mini")).NotTo(Succeed())
		})
	})

	Describe("stream", func() {
		It("writes text deltas as they arrive", func() {
			Expect(run("stream", "--lorem", "--max-tokens", "6", "gemini-lorem-fast", "hi")).To(Succeed())
			Expect(strings.Fields(out.String())).To(HaveLen(6))
		})

		It("prints every event with --events", func() {
			Expect(run("stream", "--lorem", "--events", "--max-tokens", "3", "gpt-lorem-fast", "hi")).To(Succeed())

			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			Expect(lines[0]).To(Equal("block_start[0] text"))
			Expect(lines[len(lines)-1]).To(Equal("finish length"))
		})
	})

	Describe("resolve", func() {
		It("routes by name pattern", func() {
			Expect(run("resolve", "--lorem", "claude-haiku-4-5")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("anthropic"))
			Expect(out.String()).To(ContainSubstring("claude-haiku-4-5"))
		})

		It("strips an explicit provider prefix", func() {
			Expect(run("resolve", "--lorem", "openai:llama-3.1-8b")).To(Succeed())
			Expect(out.String()).To(ContainSubstring("openai"))
			Expect(out.String()).NotTo(ContainSubstring("openai:"))
		})

		It("fails for models no rule matches", func() {
			err := run("resolve", "--lorem", "mystery-model")
			Expect(err).To(MatchError(llmprovider.ErrUnknownModel))
		})
	})

	Describe("providers", func() {
		It("reports which providers have credentials", func() {
			setenv("OPENAI_API_KEY", "sk-test")

			Expect(run("providers")).To(Succeed())

			var openai, anthropic string
			for _, line := range strings.Split(out.String(), "\n") {
				switch {
				case strings.HasPrefix(line, "openai"):
					openai = line
				case strings.HasPrefix(line, "anthropic"):
					anthropic = line
				}
			}
			Expect(openai).To(ContainSubstring("ready"))
			Expect(openai).To(ContainSubstring("env:OPENAI_API_KEY"))
			Expect(anthropic).To(ContainSubstring("missing"))
		})
	})

	Describe("credentials", func() {
		It("stores, lists and removes keys", func() {
			Expect(run("credentials", "set", "anthropic", "sk-ant-test")).To(Succeed())
			Expect(out.String()).To(ContainSubstring(credsPath))

			info, err := os.Stat(credsPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

			m, err := credentials.NewManager(credsPath)
			Expect(err).NotTo(HaveOccurred())
			entry, ok, err := m.Get(llmprovider.ProviderAnthropic)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(entry.APIKey).To(Equal("sk-ant-test"))

			Expect(run("credentials", "list")).To(Succeed())
			Expect(out.String()).To(Equal("anthropic\n"))

			Expect(run("credentials", "remove", "anthropic")).To(Succeed())
			Expect(run("credentials", "list")).To(Succeed())
			Expect(out.String()).To(BeEmpty())
		})

		It("makes stored keys visible to discovery", func() {
			Expect(run("credentials", "set", "gemini", "g-key")).To(Succeed())
			Expect(run("providers")).To(Succeed())
			Expect(out.String()).To(MatchRegexp(`google\s+ready\s+\S*credentials\.toml`))
		})

		It("rejects unknown providers", func() {
			Expect(run("credentials", "set", "mistral", "k")).NotTo(Succeed())
		})
	})

	It("prints version information without config", func() {
		Expect(run("version")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("gitVersion:"))
	})
})
