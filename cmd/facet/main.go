// Command facet analyzes a source file across the configured analysis
// dimensions and prints the aggregated JSON report.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"facet/internal/llm"
	"facet/internal/orchestrator"
	"facet/internal/parsecache"
	"facet/internal/parser"
	"facet/internal/tool"
	"facet/internal/util/jsonutil"
)

func main() {
	input := flag.String("input", "", "path to the file to analyze, or - for stdin")
	dims := flag.String("dimensions", "", "comma-separated dimensions (default: all)")
	provider := flag.String("provider", "fake", "model provider: fake, gemini, openai")
	model := flag.String("model", "gemini-2.5-flash", "model id")
	timeout := flag.Duration("timeout", 30*time.Second, "per-dimension attempt timeout")
	retries := flag.Int("retries", 2, "extra attempts per dimension on weak results")
	rps := flag.Float64("rps", 2, "request rate limit toward the provider (0 disables)")
	repair := flag.Bool("repair", false, "allow a model round trip to repair malformed output")
	verbose := flag.Bool("verbose", false, "debug logging")
	flag.Parse()
	if *input == "" {
		log.Fatal("--input is required")
	}

	_ = godotenv.Load()

	logger, err := newLogger(*verbose)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	subject, err := readSubject(*input)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	client, err := newClient(ctx, *provider, *model)
	if err != nil {
		log.Fatal(err)
	}
	client = llm.Wrap(client,
		llm.WithLogging(logger),
		llm.RateLimit(*rps, 1),
		llm.Retry(3, 500*time.Millisecond),
	)
	defer client.Close()

	popts := parser.Options{
		Cache:  parsecache.New[parser.Result](parsecache.DefaultSize, parsecache.DefaultTTL),
		Logger: logger,
	}
	if *repair {
		popts.RepairClient = client
	}
	p := parser.New(popts)

	var tools []*tool.Tool
	for _, cfg := range tool.Dimensions() {
		tools = append(tools, tool.New(cfg, client, p, logger))
	}
	o := orchestrator.New(tools, orchestrator.Config{
		Retries:             *retries,
		Timeout:             *timeout,
		ConfidenceThreshold: 0.5,
		Logger:              logger,
	})

	analysis, err := o.Analyze(ctx, subject, splitDims(*dims))
	if err != nil {
		log.Fatal(err)
	}

	out, err := jsonutil.MarshalIndentNoEscape(analysis, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(out))
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func newClient(ctx context.Context, provider, model string) (llm.Client, error) {
	switch provider {
	case "fake":
		return llm.NewFakeClient(), nil
	case "gemini":
		if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is not set")
		}
		return llm.NewGeminiClient(ctx, model)
	case "openai":
		if os.Getenv("OPENAI_API_KEY") == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not set")
		}
		return llm.NewOpenAIClient("", model, ""), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

func readSubject(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func splitDims(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, d := range strings.Split(s, ",") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}
