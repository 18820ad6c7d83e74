package credentials_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/haowjy/unillm-go"
	"github.com/haowjy/unillm-go/credentials"
)

var _ = Describe("Discover", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("returns nothing when no source has keys", func() {
		creds, err := credentials.Discover(
			credentials.Vars(nil),
			credentials.DotEnv(filepath.Join(tmpDir, "missing.env")),
			credentials.TOMLFile(filepath.Join(tmpDir, "missing.toml")),
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(creds).To(BeEmpty())
	})

	It("maps environment variables, including the Google fallback", func() {
		creds, err := credentials.Discover(credentials.Vars(map[string]string{
			"OPENAI_API_KEY":  "sk-openai",
			"OPENAI_BASE_URL": "http://localhost:11434/v1",
			"GOOGLE_API_KEY":  "AIza-google",
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(creds).To(HaveLen(2))

		Expect(creds[0].Provider).To(Equal(llmprovider.ProviderGoogle))
		Expect(creds[0].APIKey).To(Equal("AIza-google"))
		Expect(creds[0].Source).To(Equal("env:GOOGLE_API_KEY"))

		Expect(creds[1].Provider).To(Equal(llmprovider.ProviderOpenAI))
		Expect(creds[1].BaseURL).To(Equal("http://localhost:11434/v1"))
	})

	It("prefers GEMINI_API_KEY over GOOGLE_API_KEY", func() {
		creds, err := credentials.Discover(credentials.Vars(map[string]string{
			"GEMINI_API_KEY": "gemini",
			"GOOGLE_API_KEY": "google",
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(creds).To(HaveLen(1))
		Expect(creds[0].APIKey).To(Equal("gemini"))
	})

	It("lets the first source win per provider", func() {
		dotenv := filepath.Join(tmpDir, ".env")
		Expect(os.WriteFile(dotenv, []byte("ANTHROPIC_API_KEY=from-dotenv\nOPENAI_API_KEY=from-dotenv\n"), 0o600)).To(Succeed())

		file := filepath.Join(tmpDir, "credentials.toml")
		Expect(os.WriteFile(file, []byte(`
[providers.anthropic]
api_key = "from-file"

[providers.gemini]
api_key = "gemini-from-file"
base_url = "https://gateway.example.com/v1beta"
`), 0o600)).To(Succeed())

		creds, err := credentials.Discover(
			credentials.Vars(map[string]string{"OPENAI_API_KEY": "from-env"}),
			credentials.DotEnv(dotenv),
			credentials.TOMLFile(file),
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(creds).To(HaveLen(3))

		byProvider := map[llmprovider.ProviderID]llmprovider.Credential{}
		for _, c := range creds {
			byProvider[c.Provider] = c
		}
		Expect(byProvider[llmprovider.ProviderOpenAI].APIKey).To(Equal("from-env"))
		Expect(byProvider[llmprovider.ProviderAnthropic].APIKey).To(Equal("from-dotenv"))
		Expect(byProvider[llmprovider.ProviderGoogle].APIKey).To(Equal("gemini-from-file"))
		Expect(byProvider[llmprovider.ProviderGoogle].BaseURL).To(Equal("https://gateway.example.com/v1beta"))
	})

	It("does not export .env values into the process environment", func() {
		dotenv := filepath.Join(tmpDir, ".env")
		Expect(os.WriteFile(dotenv, []byte("UNILLM_TEST_ONLY_KEY=x\nOPENAI_API_KEY=sk\n"), 0o600)).To(Succeed())

		_, err := credentials.Discover(credentials.DotEnv(dotenv))
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Getenv("UNILLM_TEST_ONLY_KEY")).To(BeEmpty())
	})

	It("rejects unknown providers in the credentials file", func() {
		file := filepath.Join(tmpDir, "credentials.toml")
		Expect(os.WriteFile(file, []byte("[providers.mystery]\napi_key = \"k\"\n"), 0o600)).To(Succeed())

		_, err := credentials.Discover(credentials.TOMLFile(file))
		Expect(err).To(MatchError(ContainSubstring("mystery")))
	})

	It("reports malformed files", func() {
		file := filepath.Join(tmpDir, "credentials.toml")
		Expect(os.WriteFile(file, []byte("not valid [[["), 0o600)).To(Succeed())

		_, err := credentials.Discover(credentials.TOMLFile(file))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Manager", func() {
	var (
		mgr  *credentials.Manager
		path string
	)

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "nested", "credentials.toml")
		var err error
		mgr, err = credentials.NewManager(path)
		Expect(err).NotTo(HaveOccurred())
	})

	It("returns an empty file when none exists", func() {
		file, err := mgr.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(file.Providers).To(BeEmpty())
	})

	It("writes the file with restricted permissions", func() {
		Expect(mgr.Set(llmprovider.ProviderOpenAI, credentials.ProviderEntry{APIKey: "sk-new"})).To(Succeed())

		info, err := os.Stat(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

		entry, ok, err := mgr.Get(llmprovider.ProviderOpenAI)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(entry.APIKey).To(Equal("sk-new"))
	})

	It("overwrites, lists and removes entries", func() {
		Expect(mgr.Set(llmprovider.ProviderOpenAI, credentials.ProviderEntry{APIKey: "old"})).To(Succeed())
		Expect(mgr.Set(llmprovider.ProviderOpenAI, credentials.ProviderEntry{APIKey: "new"})).To(Succeed())
		Expect(mgr.Set(llmprovider.ProviderAnthropic, credentials.ProviderEntry{APIKey: "ant"})).To(Succeed())

		names, err := mgr.List()
		Expect(err).NotTo(HaveOccurred())
		Expect(names).To(Equal([]string{"anthropic", "openai"}))

		Expect(mgr.Remove(llmprovider.ProviderOpenAI)).To(Succeed())
		_, ok, err := mgr.Get(llmprovider.ProviderOpenAI)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())
	})

	It("rejects unknown providers", func() {
		Expect(mgr.Set("mystery", credentials.ProviderEntry{APIKey: "k"})).NotTo(Succeed())
	})

	It("round-trips through discovery", func() {
		Expect(mgr.Set(llmprovider.ProviderGoogle, credentials.ProviderEntry{APIKey: "AIza"})).To(Succeed())

		creds, err := credentials.Discover(mgr.Source())
		Expect(err).NotTo(HaveOccurred())
		Expect(creds).To(ConsistOf(llmprovider.Credential{
			Provider: llmprovider.ProviderGoogle,
			APIKey:   "AIza",
			Source:   path,
		}))
	})
})

var _ = Describe("EnvVarForProvider", func() {
	It("names the primary key variable", func() {
		Expect(credentials.EnvVarForProvider(llmprovider.ProviderGoogle)).To(Equal("GEMINI_API_KEY"))
		Expect(credentials.EnvVarForProvider("mystery")).To(BeEmpty())
	})
})
