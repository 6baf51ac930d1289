// krxagent — conversational agent for KRX market questions.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kosquant/krxagent/api"
	"github.com/kosquant/krxagent/internal/config"
	"github.com/kosquant/krxagent/internal/dialog"
	"github.com/kosquant/krxagent/internal/llm"
	"github.com/kosquant/krxagent/internal/nlu"
	"github.com/kosquant/krxagent/internal/ohlcv"
	"github.com/kosquant/krxagent/internal/resolve"
	"github.com/kosquant/krxagent/internal/tasks"
	"github.com/kosquant/krxagent/internal/universe"
	"github.com/kosquant/krxagent/pkg/models"
	"github.com/kosquant/krxagent/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "krxagent",
	Short: "krxagent — conversational agent for KRX market questions",
	Long: `krxagent answers natural-language questions about the Korean stock
market: price lookups, market rankings, breadth counts, and condition
searches over KOSPI and KOSDAQ listings. Under-specified questions open a
short follow-up dialog until every required slot is filled.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(tickersCmd)
	rootCmd.AddCommand(statusCmd)
}

// buildRouter wires the full conversational stack from configuration:
// catalog, CLOVA provider, NLU bridge, ticker resolver, bar source, task
// registry, and the dialog router on top.
func buildRouter(c *config.Config) (*dialog.Router, error) {
	catalog, err := universe.Load(c.Data.KospiCSV, c.Data.KosdaqCSV, c.Data.AliasCSV)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}

	provider := llm.NewClovaProvider(c.LLM.APIKey,
		llm.WithClovaBaseURL(c.LLM.BaseURL),
		llm.WithClovaModel(c.LLM.Model),
		llm.WithClovaEmbedModel(c.LLM.EmbedModel),
		llm.WithClovaHTTPClient(&http.Client{Timeout: time.Duration(c.LLM.TimeoutSec) * time.Second}),
	)

	bridge := nlu.New(provider, llm.ChatOptions{
		Model:       c.LLM.Model,
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
	})

	resolver := resolve.New(catalog, provider, bridge,
		resolve.WithFuzzyK(c.Resolver.FuzzyK),
		resolve.WithEmbedK(c.Resolver.EmbedK),
		resolve.WithConfThreshold(c.Resolver.ConfThreshold),
	)

	var source ohlcv.Source = ohlcv.NewYahoo()
	if c.Data.CacheDir != "" {
		cached, err := ohlcv.NewCachedSource(source, c.Data.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("open bar cache: %w", err)
		}
		source = cached
	}
	if c.Data.FetchTimeoutSec > 0 {
		source = ohlcv.NewDeadlineSource(source, time.Duration(c.Data.FetchTimeoutSec)*time.Second)
	}

	registry := tasks.New(tasks.Deps{
		Source:   source,
		Catalog:  catalog,
		Resolver: resolver,
	})

	return dialog.New(dialog.NewMemStore(), bridge, registry), nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("krxagent %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		router, err := buildRouter(cfg)
		if err != nil {
			return err
		}

		srv := api.NewServer(cfg, router, version)
		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("krxagent API server listening on %s\n", addr)
		return srv.ListenAndServe(addr)
	},
}

// --- Ask Command (one-shot / interactive dialog) ---

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question through the dialog router",
	Long: `Ask a single question from the command line. With --interactive the
session stays open so follow-up prompts can be answered on stdin.

Examples:
  krxagent ask "2024년 12월 2일 삼성전자 종가 알려줘"
  krxagent ask -i "요즘 거래량이 제일 많은 종목은?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bearer := cfg.LLM.APIKey
		if bearer == "" {
			return fmt.Errorf("no API key: set llm.api_key or KRXAGENT_LLM_API_KEY")
		}

		router, err := buildRouter(cfg)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		session := dialog.NewSessionID()
		fmt.Println(router.Route(ctx, strings.Join(args, " "), session, bearer))

		interactive, _ := cmd.Flags().GetBool("interactive")
		if !interactive {
			return nil
		}

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" || line == "exit" || line == "quit" {
				break
			}
			fmt.Println(router.Route(ctx, line, session, bearer))
		}
		return scanner.Err()
	},
}

func init() {
	askCmd.Flags().BoolP("interactive", "i", false, "keep the session open and read follow-ups from stdin")
}

// --- Tickers Command (catalog maintenance) ---

var tickersCmd = &cobra.Command{
	Use:   "tickers",
	Short: "Listing catalog utilities",
}

var tickersExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Regenerate the listing CSVs by scraping the public market tables",
	Long: `Scrape the public KOSPI/KOSDAQ market-cap tables and rewrite the
listing CSVs the agent loads at startup. Paths come from the data section of
the config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		marketFlag, _ := cmd.Flags().GetString("market")
		commonOnly, _ := cmd.Flags().GetBool("common-only")

		exp := universe.NewExporter()
		exp.CommonOnly = commonOnly

		type target struct {
			market models.Market
			path   string
		}
		var targets []target
		switch strings.ToLower(marketFlag) {
		case "kospi":
			targets = []target{{models.MarketKOSPI, cfg.Data.KospiCSV}}
		case "kosdaq":
			targets = []target{{models.MarketKOSDAQ, cfg.Data.KosdaqCSV}}
		case "all":
			targets = []target{
				{models.MarketKOSPI, cfg.Data.KospiCSV},
				{models.MarketKOSDAQ, cfg.Data.KosdaqCSV},
			}
		default:
			return fmt.Errorf("unknown market %q (kospi, kosdaq, all)", marketFlag)
		}

		for _, tgt := range targets {
			if dir := filepath.Dir(tgt.path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create %s: %w", dir, err)
				}
			}
			f, err := os.Create(tgt.path)
			if err != nil {
				return fmt.Errorf("create %s: %w", tgt.path, err)
			}
			if err := exp.Export(cmd.Context(), tgt.market, f); err != nil {
				f.Close()
				return fmt.Errorf("export %s: %w", tgt.market, err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", tgt.path)
		}
		return nil
	},
}

func init() {
	tickersExportCmd.Flags().String("market", "all", "which board to export (kospi, kosdaq, all)")
	tickersExportCmd.Flags().Bool("common-only", false, "drop SPACs, REITs, and preferred shares")
	tickersCmd.AddCommand(tickersExportCmd)
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := utils.NowKST()
		day := "trading day"
		if !utils.IsTradingDay(now) {
			day = "market holiday"
		}

		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  krxagent — System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:    %s (%s)\n", version, commit)
		fmt.Printf("  Time (KST): %s (%s)\n", utils.FormatDateTimeKST(now), day)
		fmt.Println()

		// Config summary
		fmt.Println("  Configuration:")
		fmt.Printf("    LLM:        %s (%s)\n", cfg.LLM.Model, cfg.LLM.BaseURL)
		fmt.Printf("    Listings:   %s, %s\n", cfg.Data.KospiCSV, cfg.Data.KosdaqCSV)
		fmt.Printf("    Bar cache:  %s\n", cfg.Data.CacheDir)
		fmt.Printf("    API Server: %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Printf("    Resolver:   fuzzy_k=%d embed_k=%d conf=%.2f\n",
			cfg.Resolver.FuzzyK, cfg.Resolver.EmbedK, cfg.Resolver.ConfThreshold)
		fmt.Println()

		// API keys status
		fmt.Println("  API Keys:")
		keys := config.CheckAPIKeys(cfg)
		for _, k := range keys {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}
		fmt.Println()

		// Data prerequisites
		fmt.Println("  Data files:")
		for _, f := range config.CheckDataFiles(cfg) {
			status := "❌ missing"
			if f.Exists {
				status = "✅ present"
			}
			fmt.Printf("    %-25s %s (%s)\n", f.Name+":", status, f.Path)
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}
