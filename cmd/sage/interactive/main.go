package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/joeshaw/envdecode"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"sageagent"
	"sageagent/coordinator"
	"sageagent/coordinator/bedrock"
	"sageagent/coordinator/lmstudio"
	"sageagent/coordinator/mock"
	"sageagent/slack"
	"sageagent/tools"
	"sageagent/tools/remote"
	"sageagent/tools/storage"
	"sageagent/validate"
)

const version = "0.1.0"

func main() {
	ctx := context.Background()

	var modelConfig sageagent.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	var agentConfig sageagent.AgentConfig
	if err := envdecode.Decode(&agentConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	fileConfig, err := sageagent.LoadFileConfig(agentConfig.ConfigPath)
	if err != nil {
		log.Fatalf("SETUP: Failed to load agent config: %s", err)
	}
	modelID := modelConfig.ModelID
	if modelID == "" {
		modelID = fileConfig.Model
	}

	policy, err := validate.ParsePolicy(agentConfig.RegeneratePolicy)
	if err != nil {
		log.Fatalf("SETUP: Invalid regenerate policy: %s", err)
	}

	toolOpts := tools.Options{
		RootDirectory:     agentConfig.RecipesDir,
		AllowedExtensions: agentConfig.AllowedExtensions,
		MaxFilesPerBatch:  agentConfig.MaxFilesPerBatch,
		IgnorePatterns:    agentConfig.IgnorePatterns,
	}
	registry, err := tools.NewRegistry(storage.NewFileStore(), toolOpts)
	if err != nil {
		slog.Error("SETUP: Failed to create tool registry", "error", err)
		return
	}

	closeServers, err := remote.Register(ctx, registry, remoteServers(fileConfig.Servers), version)
	if err != nil {
		slog.Error("SETUP: Failed to connect tool servers", "error", err)
		return
	}
	defer func() {
		if err := closeServers(); err != nil {
			slog.Error("SETUP: Failed to close tool servers", "error", err)
		}
	}()
	slog.Info("SETUP: Tools registered", "count", len(registry.GetTools()), "recipes_dir", agentConfig.RecipesDir)

	llm, err := newLLMClient(ctx, agentConfig, modelID, modelConfig, fileConfig)
	if err != nil {
		slog.Error("SETUP: Failed to create LLM client", "error", err)
		return
	}

	tracerProvider, meterProvider, otelShutdown, err := sageagent.InitOtel(ctx)
	if err != nil {
		slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
		return
	}
	defer func() {
		if err := otelShutdown(ctx); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()
	tracer := tracerProvider.Tracer(sageagent.TracerName)
	meter := meterProvider.Meter(sageagent.MeterName)

	fileLogger, cleanup, err := newEventLogger(modelID)
	if err != nil {
		slog.Error("SETUP: Failed to create conversation logger", "error", err)
		return
	}
	defer func() {
		if err := cleanup(); err != nil {
			slog.Error("SETUP: Failed to flush conversation log", "error", err)
		}
	}()

	memory := sageagent.NewMemoryEventLogger()
	var eventLogger sageagent.EventLogger = fileLogger
	if agentConfig.DebugDump {
		eventLogger = sageagent.NewMultiEventLogger(fileLogger, memory)
	}

	var validator validate.Validator = validate.Nop{}
	if agentConfig.Validate || policy != validate.Never {
		validator = validate.NewKeywordValidator(nil, nil)
	}

	c := coordinator.NewInstrumentedCoordinator(llm, registry, validator, eventLogger, coordinator.Options{
		Temperature:       modelConfig.Temperature,
		StrictTemperature: modelConfig.StrictTemperature,
		MaxTokens:         modelConfig.MaxTokens,
		MaxToolRounds:     agentConfig.MaxToolRounds,
		FactExtraction:    agentConfig.FactExtraction,
		RegeneratePolicy:  policy,
		RootDirectory:     agentConfig.RecipesDir,
	}, tracer, meter)

	var notifier *slack.Notifier
	if agentConfig.SlackWebhookURL != "" {
		notifier = slack.NewNotifier(slack.NewClient(agentConfig.SlackWebhookURL, http.DefaultClient), agentConfig.SlackChannel)
	}

	fmt.Println("Sage is ready. Ask about your recipes, or type 'quit' to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nYou: ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if isQuit(question) {
			break
		}

		answer, err := ask(ctx, tracer, c, modelID, question)
		if err != nil {
			slog.Error("FAILURE: Error answering question", "error", err)
			fmt.Printf("\nSage: Error: %s\n", err)
			continue
		}
		fmt.Printf("\nSage: %s\n", answer)

		if agentConfig.DebugDump {
			sageagent.DumpEvents(os.Stderr, memory.Events())
			memory.Reset()
		}
		if notifier != nil {
			notifier.Notify(ctx, question, answer)
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Error("FAILURE: Failed to read input", "error", err)
	}
	fmt.Println("Goodbye!")
}

func ask(ctx context.Context, tracer trace.Tracer, c sageagent.Coordinator, modelID, question string) (string, error) {
	ctx, span := tracer.Start(ctx, "sage.question", trace.WithAttributes(
		attribute.String("model.id", modelID),
	))
	defer span.End()
	return c.Run(ctx, question)
}

func isQuit(s string) bool {
	switch strings.ToLower(s) {
	case "quit", "exit", "q":
		return true
	}
	return false
}

func newLLMClient(ctx context.Context, agentConfig sageagent.AgentConfig, modelID string, modelConfig sageagent.ModelConfig, fileConfig sageagent.FileConfig) (sageagent.LLMClient, error) {
	switch agentConfig.ModelProvider {
	case "lmstudio":
		return lmstudio.NewClient(lmstudio.ClientOpts{
			BaseURL:    fileConfig.BaseURL,
			APIKey:     fileConfig.APIKey,
			ModelID:    modelID,
			HTTPClient: http.DefaultClient,
		})
	case "bedrock":
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return bedrock.NewLLMClient(bedrockruntime.NewFromConfig(awsCfg), bedrock.LLMOptions{
			ModelID:   modelConfig.ModelID,
			MaxTokens: modelConfig.MaxTokens,
		}), nil
	case "mock":
		return mock.NewDemoClient(agentConfig.RecipesDir), nil
	}
	return nil, fmt.Errorf("unknown model provider %q", agentConfig.ModelProvider)
}

func remoteServers(cfgs []sageagent.ServerConfig) []remote.Server {
	servers := make([]remote.Server, 0, len(cfgs))
	for _, s := range cfgs {
		servers = append(servers, remote.Server{
			Name:    s.Name,
			Command: s.Config.Command,
			Args:    s.Config.Args,
			Env:     s.Config.Env,
		})
	}
	return servers
}

func newEventLogger(modelID string) (*sageagent.FileEventLogger, func() error, error) {
	logFilePath := sageagent.NewEventLogFilePath(modelID)
	if err := os.MkdirAll(filepath.Dir(logFilePath), 0o755); err != nil {
		return nil, func() error { return err }, fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, func() error { return err }, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := sageagent.NewFileEventLogger(logFile)
	cleanup := func() error {
		return errors.Join(logger.Flush(), logFile.Close())
	}
	return logger, cleanup, nil
}
