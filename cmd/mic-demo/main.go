// Command mic-demo exercises the core's four pillars against whichever
// provider credentials are present in the environment: a single Call, a
// streamed Call, a tool-calling round trip, and a retry/fallback sweep
// across providers via Orchestrator.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/taipm/mic/mic"
	"github.com/taipm/mic/mic/providers/anthropic"
	"github.com/taipm/mic/mic/providers/google"
	"github.com/taipm/mic/mic/providers/openai"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("mic-demo: no .env file loaded: %v", err)
	}

	mic.RegisterProvider(openai.New(mic.ProviderConfig{
		Credentials: mic.EnvCredentialSource("openai", "OPENAI_API_KEY"),
	}))
	mic.RegisterProvider(anthropic.New(mic.ProviderConfig{
		Credentials: mic.EnvCredentialSource("anthropic", "ANTHROPIC_API_KEY"),
	}))
	mic.RegisterProvider(google.New(mic.ProviderConfig{
		Credentials: mic.EnvCredentialSource("google", "GOOGLE_API_KEY"),
	}))

	logger := mic.NewStdLogger(mic.LogLevelInfo)
	ctx := context.Background()

	fmt.Println("=== Call ===")
	runCall(ctx, logger)

	fmt.Println("\n=== Stream ===")
	runStream(ctx, logger)

	fmt.Println("\n=== Tool calling ===")
	runToolCall(ctx, logger)

	fmt.Println("\n=== Retry + fallback ===")
	runFallback(ctx, logger)
}

func runCall(ctx context.Context, logger mic.Logger) {
	model := mic.NewModel("openai/gpt-4o-mini", mic.Params{MaxTokens: 256})
	resp, err := model.Call(ctx, mic.TextPart{Text: "What is the capital of Vietnam?"})
	if err != nil {
		logger.Error(ctx, "call failed", mic.F("error", err.Error()))
		return
	}
	fmt.Println(resp.Text())
}

func runStream(ctx context.Context, logger mic.Logger) {
	model := mic.NewModel("openai/gpt-4o-mini", mic.Params{MaxTokens: 256})
	stream, err := model.Stream(ctx, mic.TextPart{Text: "Count from one to five."})
	if err != nil {
		logger.Error(ctx, "stream failed", mic.F("error", err.Error()))
		return
	}
	for {
		chunk, ok, err := stream.Next(ctx)
		if err != nil {
			logger.Error(ctx, "stream error", mic.F("error", err.Error()))
			return
		}
		if !ok {
			break
		}
		if text, ok := chunk.(mic.TextChunk); ok {
			fmt.Print(text.Delta)
		}
	}
	fmt.Println()
}

func runToolCall(ctx context.Context, logger mic.Logger) {
	weather := mic.NewTool("get_weather", "Returns the current weather for a city").
		AddParameter("city", mic.StringParam("City name"), true).
		WithHandler(func(ctx context.Context, args string) (interface{}, error) {
			return map[string]string{"forecast": "sunny, 30C"}, nil
		})
	toolkit := mic.NewToolkit(weather)

	model := mic.NewModel("openai/gpt-4o-mini", mic.Params{MaxTokens: 256}).WithToolkit(toolkit)
	resp, err := model.Call(ctx, mic.TextPart{Text: "What's the weather in Hanoi?"})
	if err != nil {
		logger.Error(ctx, "tool call failed", mic.F("error", err.Error()))
		return
	}
	if calls := resp.ToolCalls(); len(calls) > 0 {
		outputs := resp.ExecuteTools(ctx)
		var parts []mic.UserPart
		for _, o := range outputs {
			parts = append(parts, o)
		}
		final, err := resp.Resume(ctx, parts...)
		if err != nil {
			logger.Error(ctx, "resume failed", mic.F("error", err.Error()))
			return
		}
		fmt.Println(final.Text())
		return
	}
	fmt.Println(resp.Text())
}

func runFallback(ctx context.Context, logger mic.Logger) {
	primary := mic.NewModel("openai/gpt-4o-mini", mic.Params{MaxTokens: 128})
	config := mic.DefaultRetryConfig()
	config.FallbackModels = []interface{}{
		mic.ModelID("anthropic/claude-3-5-sonnet-20241022"),
		mic.ModelID("google/gemini-1.5-flash"),
	}

	orch, err := mic.NewOrchestrator(primary, config)
	if err != nil {
		log.Fatalf("mic-demo: invalid retry config: %v", err)
	}
	orch = orch.WithLogger(logger)

	start := time.Now()
	resp, err := orch.Call(ctx, mic.TextPart{Text: "Say hello in one short sentence."})
	if err != nil {
		logger.Error(ctx, "every variant exhausted", mic.F("error", err.Error()), mic.F("elapsed", time.Since(start).String()))
		if exhausted, ok := err.(*mic.RetriesExhausted); ok {
			for _, f := range exhausted.Trail {
				fmt.Printf("  %s failed (%s): %v\n", f.ModelID, f.Kind, f.Err)
			}
		}
		return
	}
	fmt.Println(resp.Text())
	fmt.Printf("active model: %s\n", orch.ActiveModel().ID())
	os.Exit(0)
}
