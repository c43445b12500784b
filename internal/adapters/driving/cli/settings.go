package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/services"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure providers, chunking, retrieval and storage settings.

Use 'settings set' for a single key or the embedding and llm subcommands to
configure a provider interactively.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a single setting",
	Long:  "Set a single setting by its config key. Known keys:\n\n  " + strings.Join(services.SettingKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Configure the embedding provider used for chunk vectors and vector search.`,
	RunE:  runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long:  `Configure the default provider used to generate answers.`,
	RunE:  runSettingsLLM,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	settings, err := s.Settings.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println(styled(cmd, titleStyle, "Current Settings"))
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	if settings.Embedding.Provider.IsLocal() {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", displayKey(settings.Embedding.APIKey))
	}
	cmd.Printf("  Batch: %d x %d concurrent\n", settings.Embedding.BatchSize, settings.Embedding.Concurrency)
	cmd.Printf("  Status: %s\n", configuredLabel(settings.Embedding.IsConfigured()))
	cmd.Println()

	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.LLM.Model)
	if settings.LLM.Provider.IsLocal() {
		cmd.Printf("  Base URL: %s\n", settings.LLM.BaseURL)
	}
	if settings.LLM.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", displayKey(settings.LLM.APIKey))
	}
	cmd.Printf("  Temperature: %.2f, max tokens %d\n", settings.LLM.Temperature, settings.LLM.MaxTokens)
	cmd.Printf("  Status: %s\n", configuredLabel(settings.LLM.IsConfigured()))
	cmd.Println()

	cmd.Println("[Chunking]")
	cmd.Printf("  Size: %d, overlap %d\n", settings.Chunking.Size, settings.Chunking.Overlap)
	cmd.Println()

	cmd.Println("[Search]")
	cmd.Printf("  Mode: %s\n", settings.Search.Mode.Description())
	cmd.Printf("  Limit: %d, threshold %.2f, keyword boost %.2f\n",
		settings.Search.Limit, settings.Search.Threshold, settings.Search.KeywordBoost)
	cmd.Println()

	cmd.Println("[Processing]")
	cmd.Printf("  Workers: %d, timeout %s\n", settings.Processing.Workers, settings.Processing.Timeout)
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Index: %s in %s\n", settings.Storage.Backend, settings.Storage.DataDir)
	cmd.Printf("  Blobs: %s\n", settings.Blob.Backend)
	cmd.Printf("  Metadata: %s\n", settings.Metadata.Backend)
	cmd.Printf("  Server: %s\n", settings.Server.Addr)
	cmd.Println()

	if err := s.Settings.Validate(); err != nil {
		cmd.Printf("%s %v\n", styled(cmd, errStyle, "Warning:"), err)
		cmd.Println("Run 'sercha-rag settings embedding' or 'settings llm' to fix configuration issues.")
	} else {
		cmd.Println(styled(cmd, okStyle, "Configuration is valid."))
	}
	return nil
}

func configuredLabel(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func displayKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	return maskAPIKey(key)
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	s, err := requireServices()
	if err != nil {
		return err
	}

	if err := s.Settings.Set(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	value := args[1]
	if strings.HasSuffix(args[0], "api_key") {
		value = maskAPIKey(value)
	}
	cmd.Printf("%s = %s\n", args[0], value)
	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if _, err := requireServices(); err != nil {
		return err
	}
	return configureEmbeddingProvider(cmd, bufio.NewReader(cmd.InOrStdin()))
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if _, err := requireServices(); err != nil {
		return err
	}
	return configureLLMProvider(cmd, bufio.NewReader(cmd.InOrStdin()))
}

type providerSetter func(provider domain.AIProvider, model, apiKey string) error

func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	return configureProvider(cmd, reader, "Embedding", domain.AllEmbeddingProviders(),
		domain.DefaultEmbeddingModels(), svc.Settings.SetEmbeddingProvider, svc.Settings.ValidateEmbeddingConfig)
}

func configureLLMProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	return configureProvider(cmd, reader, "LLM", domain.AllLLMProviders(),
		domain.DefaultLLMModels(), svc.Settings.SetLLMProvider, svc.Settings.ValidateLLMConfig)
}

func configureProvider(
	cmd *cobra.Command,
	reader *bufio.Reader,
	label string,
	providers []domain.AIProvider,
	defaults map[domain.AIProvider]string,
	set providerSetter,
	validate func() error,
) error {
	cmd.Printf("Select %s Provider\n", label)
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selected := providers[idx-1]

	defaultModel := defaults[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selected.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(cmd.InOrStdin(), reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := set(selected, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure %s provider: %w", label, err)
	}

	cmd.Print("Validating configuration... ")
	if err := validate(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("%s configuration validation failed: %w", label, err)
	}
	cmd.Println("OK")

	cmd.Printf("%s provider configured: %s (%s)\n", label, selected.Description(), model)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when in is a terminal.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
