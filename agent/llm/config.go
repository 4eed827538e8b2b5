package llm

import (
	"fmt"
	"strings"
	"time"

	contractx "github.com/hirelane/interview-agent/agent/contract"
	openrouterx "github.com/hirelane/interview-agent/pkg/openrouter"
)

// Config carries one OpenRouter base configuration plus optional per-agent
// model and temperature overrides. A temperature below zero means "inherit".
type Config struct {
	BaseURL            string        `envconfig:"BASE_URL" split_words:"true" default:"https://openrouter.ai/api/v1"`
	APIKey             string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	Model              string        `envconfig:"MODEL" split_words:"true" required:"true"`
	MaxCompletionToken int           `envconfig:"MAX_COMPLETION_TOKEN" split_words:"true" default:"2000"`
	Temperature        float32       `envconfig:"TEMPERATURE" split_words:"true" default:"0.5"`
	Timeout            time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`
	SiteURL            string        `envconfig:"SITE_URL" split_words:"true"`
	SiteName           string        `envconfig:"SITE_NAME" split_words:"true"`

	SupervisorModel string `envconfig:"SUPERVISOR_MODEL" split_words:"true"`
	ResearchModel   string `envconfig:"RESEARCH_MODEL" split_words:"true"`
	KPIModel        string `envconfig:"KPI_MODEL" split_words:"true"`
	InterviewModel  string `envconfig:"INTERVIEW_MODEL" split_words:"true"`
	FeedbackModel   string `envconfig:"FEEDBACK_MODEL" split_words:"true"`

	SupervisorTemperature float32 `envconfig:"SUPERVISOR_TEMPERATURE" split_words:"true" default:"-1"`
	ResearchTemperature   float32 `envconfig:"RESEARCH_TEMPERATURE" split_words:"true" default:"-1"`
	KPITemperature        float32 `envconfig:"KPI_TEMPERATURE" split_words:"true" default:"-1"`
	InterviewTemperature  float32 `envconfig:"INTERVIEW_TEMPERATURE" split_words:"true" default:"-1"`
	FeedbackTemperature   float32 `envconfig:"FEEDBACK_TEMPERATURE" split_words:"true" default:"-1"`
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("%w: openrouter api key is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("%w: default model is required", contractx.ErrValidation)
	}
	return nil
}

func (c Config) OpenRouterFor(agentType contractx.AgentType) openrouterx.Config {
	modelName := strings.TrimSpace(c.Model)
	temp := c.Temperature

	override := func(model string, temperature float32) {
		if v := strings.TrimSpace(model); v != "" {
			modelName = v
		}
		if temperature >= 0 {
			temp = temperature
		}
	}

	switch agentType {
	case contractx.AgentTypeSupervisor:
		override(c.SupervisorModel, c.SupervisorTemperature)
	case contractx.AgentTypeResearch:
		override(c.ResearchModel, c.ResearchTemperature)
	case contractx.AgentTypeKPI:
		override(c.KPIModel, c.KPITemperature)
	case contractx.AgentTypeInterview:
		override(c.InterviewModel, c.InterviewTemperature)
	case contractx.AgentTypeFeedback:
		override(c.FeedbackModel, c.FeedbackTemperature)
	}

	maxCompletionToken := c.MaxCompletionToken
	return openrouterx.Config{
		BaseURL:            strings.TrimSpace(c.BaseURL),
		APIKey:             strings.TrimSpace(c.APIKey),
		Model:              modelName,
		MaxCompletionToken: &maxCompletionToken,
		Temperature:        temp,
		Timeout:            c.Timeout,
		SiteURL:            strings.TrimSpace(c.SiteURL),
		SiteName:           strings.TrimSpace(c.SiteName),
	}
}
