package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"

	"sageagent"
	"sageagent/coordinator"
	"sageagent/coordinator/bedrock"
	"sageagent/coordinator/lmstudio"
	"sageagent/tools"
	"sageagent/tools/storage"
	"sageagent/validate"
)

type Params struct {
	Question string `json:"question"`
}

type Results struct {
	Answer string `json:"answer"`
}

func main() {
	fn := func(ctx context.Context, params Params) (Results, error) {
		var modelConfig sageagent.ModelConfig
		if err := envdecode.Decode(&modelConfig); err != nil {
			return Results{}, fmt.Errorf("failed to decode model config: %w", err)
		}

		var agentConfig sageagent.AgentConfig
		if err := envdecode.Decode(&agentConfig); err != nil {
			return Results{}, fmt.Errorf("failed to decode agent config: %w", err)
		}
		if agentConfig.RecipesBucket == "" {
			return Results{}, fmt.Errorf("missing S3 config: RECIPES_S3_BUCKET must be set")
		}

		policy, err := validate.ParsePolicy(agentConfig.RegeneratePolicy)
		if err != nil {
			return Results{}, err
		}

		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
		if err != nil {
			return Results{}, fmt.Errorf("failed to load AWS config: %w", err)
		}

		store := storage.NewS3Store(s3.NewFromConfig(awsCfg), agentConfig.RecipesBucket)
		registry, err := tools.NewRegistry(store, tools.Options{
			RootDirectory:     agentConfig.RecipesDir,
			AllowedExtensions: agentConfig.AllowedExtensions,
			MaxFilesPerBatch:  agentConfig.MaxFilesPerBatch,
			IgnorePatterns:    agentConfig.IgnorePatterns,
		})
		if err != nil {
			slog.Error("SETUP: Failed to create tool registry", "error", err)
			return Results{}, err
		}
		slog.Info("SETUP: S3 recipe store initialized", "bucket", agentConfig.RecipesBucket, "prefix", agentConfig.RecipesDir)

		var llm sageagent.LLMClient
		switch agentConfig.ModelProvider {
		case "bedrock":
			llm = bedrock.NewLLMClient(bedrockruntime.NewFromConfig(awsCfg), bedrock.LLMOptions{
				ModelID:   modelConfig.ModelID,
				MaxTokens: modelConfig.MaxTokens,
			})
		case "lmstudio":
			fileConfig, err := sageagent.LoadFileConfig(agentConfig.ConfigPath)
			if err != nil {
				return Results{}, err
			}
			model := modelConfig.ModelID
			if model == "" {
				model = fileConfig.Model
			}
			llm, err = lmstudio.NewClient(lmstudio.ClientOpts{
				BaseURL:    fileConfig.BaseURL,
				APIKey:     fileConfig.APIKey,
				ModelID:    model,
				HTTPClient: http.DefaultClient,
			})
			if err != nil {
				return Results{}, err
			}
		default:
			return Results{}, fmt.Errorf("unknown model provider %q", agentConfig.ModelProvider)
		}

		tracerProvider, meterProvider, otelShutdown, err := sageagent.InitOtel(ctx)
		if err != nil {
			slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
			return Results{}, err
		}
		defer func() {
			if err := otelShutdown(ctx); err != nil {
				slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
			}
		}()

		var validator validate.Validator = validate.Nop{}
		if agentConfig.Validate || policy != validate.Never {
			validator = validate.NewKeywordValidator(nil, nil)
		}

		answer, err := coordinator.NewInstrumentedCoordinator(
			llm,
			registry,
			validator,
			sageagent.NewZerologEventLogger(os.Stdout),
			coordinator.Options{
				Temperature:       modelConfig.Temperature,
				StrictTemperature: modelConfig.StrictTemperature,
				MaxTokens:         modelConfig.MaxTokens,
				MaxToolRounds:     agentConfig.MaxToolRounds,
				FactExtraction:    agentConfig.FactExtraction,
				RegeneratePolicy:  policy,
				RootDirectory:     agentConfig.RecipesDir,
			},
			tracerProvider.Tracer(sageagent.TracerName),
			meterProvider.Meter(sageagent.MeterName),
		).Run(ctx, params.Question)
		if err != nil {
			slog.Error("RESULT: Error answering question", "error", err)
			return Results{Answer: "Error: " + err.Error()}, nil
		}

		return Results{Answer: answer}, nil
	}

	lambda.Start(fn)
}
