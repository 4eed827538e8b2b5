package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/hirelane/interview-agent/agent/contract"
	llmx "github.com/hirelane/interview-agent/agent/llm"
	profilex "github.com/hirelane/interview-agent/agent/profile"
	runtimex "github.com/hirelane/interview-agent/agent/runtime"
	statex "github.com/hirelane/interview-agent/agent/state"
	workersx "github.com/hirelane/interview-agent/agent/workers"
	configx "github.com/hirelane/interview-agent/pkg/config"
	_ "github.com/hirelane/interview-agent/pkg/logger/autoload"
	openrouterx "github.com/hirelane/interview-agent/pkg/openrouter"
	serperx "github.com/hirelane/interview-agent/pkg/serper"
)

type runtimeConfig struct {
	MaxConsecutiveRuns int           `envconfig:"MAX_CONSECUTIVE_RUNS" split_words:"true" default:"3"`
	MaxTurnsPerMessage int           `envconfig:"MAX_TURNS_PER_MESSAGE" split_words:"true" default:"12"`
	WorkerTimeout      time.Duration `envconfig:"WORKER_TIMEOUT" split_words:"true" default:"60s"`
	AutosaveEachTurn   bool          `envconfig:"AUTOSAVE_EACH_TURN" split_words:"true" default:"false"`
}

func main() {
	ctx := context.Background()

	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	openRouterClient := openrouterx.NewClient(llmCfg.OpenRouterFor(contractx.AgentTypeSupervisor))
	if openRouterClient == nil {
		panic("failed to initialize openrouter client")
	}

	storeCfg := configx.MustNew[statex.UpstashRedisConfig]("UPSTASH_REDIS")
	store, err := statex.NewUpstashRedisStore(*storeCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize session store")
	}

	serperCfg := configx.MustNew[serperx.Config]("SERPER")
	search := workersx.NewSerperSearchProvider(serperx.MustNew(*serperCfg))

	// The candidate directory is an optional collaborator: without a DSN the
	// research worker relies on web search alone.
	var directory contractx.ProfileDirectory
	if profileCfg, err := configx.New[profilex.Config]("PROFILE_DB"); err == nil {
		repo, err := profilex.NewRepo(*profileCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("initialize profile directory")
		}
		if err := repo.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("profile directory unreachable, continuing without it")
		} else {
			directory = repo
		}
	} else {
		log.Info().Msg("profile directory not configured, web search only")
	}

	registry, err := workersx.NewRegistry(ctx, *llmCfg, search, directory)
	if err != nil {
		log.Fatal().Err(err).Msg("build agent registry")
	}

	rtCfg := *configx.MustNew[runtimeConfig]("RUNTIME")
	rt, err := runtimex.New(ctx, store, registry, runtimex.Config{
		MaxConsecutiveRuns: rtCfg.MaxConsecutiveRuns,
		MaxTurnsPerMessage: rtCfg.MaxTurnsPerMessage,
		WorkerTimeout:      rtCfg.WorkerTimeout,
		AutosaveEachTurn:   rtCfg.AutosaveEachTurn,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build runtime")
	}
	_ = rt

	log.Info().Msg("interview agent runtime ready")
}
