package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/paperfetch/paperfetch/internal/citation"
	"github.com/paperfetch/paperfetch/internal/config"
	"github.com/paperfetch/paperfetch/internal/pdfget"
	"github.com/paperfetch/paperfetch/internal/pipeline"
	"github.com/paperfetch/paperfetch/internal/selector"
)

var fetchFlags struct {
	out           string
	limit         int
	provider      string
	selector      string
	llmCandidates int
	llmTimeout    time.Duration

	downloadPDF      bool
	pdfOut           string
	pdfTimeout       time.Duration
	pdfArXivFallback bool

	minTitleSim float64
	cacheDir    string
}

func init() {
	f := fetchCmd.Flags()
	f.StringVar(&fetchFlags.out, "out", citation.DefaultOutputDir, "Directory for dated citation files")
	f.IntVar(&fetchFlags.limit, "limit", 50, "Per-provider candidate cap")
	f.StringVar(&fetchFlags.provider, "provider", pipeline.ModeAll, "Provider set: all, auto, s2, openalex or arxiv")
	f.StringVar(&fetchFlags.selector, "selector", selector.StrategyLLM, "Selection strategy: llm or rule")
	f.IntVar(&fetchFlags.llmCandidates, "llm-candidates", selector.DefaultValidationPoolSize, "Candidates shown to the llm selector")
	f.DurationVar(&fetchFlags.llmTimeout, "llm-timeout", 90*time.Second, "Timeout per model call")
	f.BoolVar(&fetchFlags.downloadPDF, "download-pdf", true, "Download the matched paper's PDF")
	f.StringVar(&fetchFlags.pdfOut, "pdf-out", pdfget.DefaultOutputDir, "Directory for downloaded PDFs")
	f.DurationVar(&fetchFlags.pdfTimeout, "pdf-timeout", pdfget.DefaultTimeout, "Timeout per PDF download attempt")
	f.BoolVar(&fetchFlags.pdfArXivFallback, "pdf-arxiv-fallback", true, "Re-search arXiv when the PDF download fails")
	f.Float64Var(&fetchFlags.minTitleSim, "min-title-sim", selector.DefaultSimilarityThreshold, "Minimum title similarity to the top proposal")
	f.StringVar(&fetchFlags.cacheDir, "cache-dir", "", "Enable the search cache under this directory")
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <keyword...>",
	Short: "Fetch one citation for a keyword",
	Long: `Fetch searches the configured providers for the paper best matching
the keyword and appends a citation entry to <out>/<date>.txt.

Examples:
  paperfetch fetch DETR
  paperfetch fetch attention is all you need
  paperfetch fetch --selector rule --provider s2 "resnet"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	keyword := strings.TrimSpace(strings.Join(args, " "))

	cfg, err := config.Load()
	if err != nil {
		return configErr(err)
	}

	p, err := pipeline.New(cfg, pipeline.Options{
		OutDir:             fetchFlags.out,
		Limit:              fetchFlags.limit,
		ProviderMode:       fetchFlags.provider,
		Selector:           fetchFlags.selector,
		LLMCandidates:      fetchFlags.llmCandidates,
		LLMTimeout:         fetchFlags.llmTimeout,
		MinTitleSimilarity: fetchFlags.minTitleSim,
		DownloadPDF:        fetchFlags.downloadPDF,
		PDFOutDir:          fetchFlags.pdfOut,
		PDFTimeout:         fetchFlags.pdfTimeout,
		PDFArXivFallback:   fetchFlags.pdfArXivFallback,
		CacheDir:           fetchFlags.cacheDir,
	})
	if err != nil {
		return configErr(err)
	}
	defer p.Close()

	result, err := p.Run(cmd.Context(), keyword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return &exitError{code: ExitError, err: err}
	}

	for _, failure := range result.Failures {
		fmt.Fprintf(os.Stderr, "warn: %s\n", failure)
	}

	fmt.Printf("citation: %s [%d]\n", result.CitationPath, result.CitationIndex)
	fmt.Printf("paper: %s (%d)\n", result.Paper.Title, result.Paper.Year)

	if fetchFlags.downloadPDF {
		if result.PDFErr != nil {
			fmt.Fprintf(os.Stderr, "warn: pdf download failed: %v\n", result.PDFErr)
		} else {
			fmt.Printf("pdf: %s\n", result.PDFPath)
		}
	}
	return nil
}

func configErr(err error) error {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return &exitError{code: ExitConfigError, err: err}
}
