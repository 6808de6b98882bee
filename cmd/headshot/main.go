package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"proprofile/internal/imagegen"
	"proprofile/internal/infra"
	"proprofile/internal/intake"
	imageprovider "proprofile/internal/providers/image"
	"proprofile/internal/studio"
)

func main() {
	_ = godotenv.Load()

	var (
		inFlag         string
		outFlag        string
		promptFlag     string
		promptFileFlag string
		providerFlag   string
		timeoutFlag    time.Duration
	)
	flag.StringVar(&inFlag, "in", "", "Source photo (required)")
	flag.StringVar(&outFlag, "out", studio.DownloadFilename, "Where to write the generated portrait")
	flag.StringVar(&promptFlag, "prompt", "", "Instruction text (defaults to the studio portrait instruction)")
	flag.StringVar(&promptFileFlag, "prompt-file", "", "Read the instruction from a file")
	flag.StringVar(&providerFlag, "provider", os.Getenv("PORTRAIT_PROVIDER"), "Portrait provider (gemini, genai-sdk or synthetic)")
	flag.DurationVar(&timeoutFlag, "timeout", 0, "Transport timeout for the service call (0 uses GEMINI_TIMEOUT_SECONDS)")
	flag.Parse()

	if strings.TrimSpace(inFlag) == "" {
		fmt.Fprintln(os.Stderr, "-in is required")
		flag.Usage()
		os.Exit(2)
	}
	if promptFlag != "" && promptFileFlag != "" {
		fmt.Fprintln(os.Stderr, "use either -prompt or -prompt-file, not both")
		os.Exit(2)
	}

	instruction := imagegen.DefaultInstruction
	switch {
	case promptFlag != "":
		instruction = promptFlag
	case promptFileFlag != "":
		data, err := os.ReadFile(promptFileFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read prompt file: %v\n", err)
			os.Exit(1)
		}
		instruction = string(data)
	}

	logger := infra.NewLogger("cli").With().Str("cmd", "headshot").Logger()

	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	provider := imageprovider.NormalizeProvider(providerFlag, apiKey)
	if provider == "" {
		fmt.Fprintf(os.Stderr, "unsupported provider %q\n", providerFlag)
		os.Exit(2)
	}
	timeout := timeoutFlag
	if timeout <= 0 {
		if cfg, err := infra.LoadConfig(); err == nil {
			timeout = cfg.GeminiTimeout
		}
	}

	ctx := context.Background()
	transformer, err := imageprovider.NewTransformer(ctx, imageprovider.Options{
		Provider: provider,
		APIKey:   apiKey,
		BaseURL:  os.Getenv("GEMINI_BASE_URL"),
		Model:    os.Getenv("GEMINI_MODEL"),
		Timeout:  timeout,
		Logger:   &logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure provider: %v\n", err)
		os.Exit(1)
	}
	client, err := imagegen.NewClient(imagegen.Options{
		Transformer: transformer,
		Provider:    provider,
		Model:       os.Getenv("GEMINI_MODEL"),
		Logger:      &logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build client: %v\n", err)
		os.Exit(1)
	}

	if err := run(ctx, client, inFlag, outFlag, instruction); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("portrait written to %s\n", outFlag)
}

// run drives one session through load, generate and download.
func run(ctx context.Context, gen studio.Generator, in, out, instruction string) error {
	src, err := intake.EncodeFile(in)
	if err != nil {
		return fmt.Errorf("read %s: %w", in, err)
	}

	sess := studio.NewSession("cli")
	if err := sess.LoadImage(src); err != nil {
		return err
	}
	sess.SetInstruction(instruction)
	if err := sess.Generate(ctx, gen); err != nil {
		return fmt.Errorf("generation failed: %s", sess.Snapshot().Error)
	}

	dl, err := sess.Download()
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, dl.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	return nil
}
