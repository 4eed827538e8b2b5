package workers

import (
	"context"
	"fmt"

	contractx "github.com/hirelane/interview-agent/agent/contract"
	llmx "github.com/hirelane/interview-agent/agent/llm"
	promptx "github.com/hirelane/interview-agent/agent/prompt"
	supervisorx "github.com/hirelane/interview-agent/agent/supervisor"
)

type registryImpl struct {
	supervisor contractx.Supervisor
	research   contractx.Worker
	kpi        contractx.Worker
	interview  contractx.Worker
	feedback   contractx.Worker
}

func (r *registryImpl) Supervisor() contractx.Supervisor {
	return r.supervisor
}

func (r *registryImpl) Research() contractx.Worker {
	return r.research
}

func (r *registryImpl) KPI() contractx.Worker {
	return r.kpi
}

func (r *registryImpl) Interview() contractx.Worker {
	return r.interview
}

func (r *registryImpl) Feedback() contractx.Worker {
	return r.feedback
}

// NewRegistry builds the supervisor and the four workers, one chat model per
// agent, from the shared model configuration and the embedded prompt set.
func NewRegistry(
	ctx context.Context,
	cfg llmx.Config,
	search contractx.SearchProvider,
	directory contractx.ProfileDirectory,
) (contractx.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prompts := promptx.LoadPromptSet()

	supervisorModelCfg := cfg.OpenRouterFor(contractx.AgentTypeSupervisor)
	supervisorModel, err := supervisorModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create supervisor model: %v", contractx.ErrModelInvoke, err)
	}
	researchModelCfg := cfg.OpenRouterFor(contractx.AgentTypeResearch)
	researchModel, err := researchModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create research model: %v", contractx.ErrModelInvoke, err)
	}
	kpiModelCfg := cfg.OpenRouterFor(contractx.AgentTypeKPI)
	kpiModel, err := kpiModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create kpi model: %v", contractx.ErrModelInvoke, err)
	}
	interviewModelCfg := cfg.OpenRouterFor(contractx.AgentTypeInterview)
	interviewModel, err := interviewModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create interview model: %v", contractx.ErrModelInvoke, err)
	}
	feedbackModelCfg := cfg.OpenRouterFor(contractx.AgentTypeFeedback)
	feedbackModel, err := feedbackModelCfg.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create feedback model: %v", contractx.ErrModelInvoke, err)
	}

	classifier, err := supervisorx.NewLLMClassifier(ctx, supervisorModel, prompts.Supervisor)
	if err != nil {
		return nil, err
	}

	research, err := newResearchWorker(ctx, researchModel, prompts.Research, search, directory)
	if err != nil {
		return nil, err
	}
	kpi, err := newKPIWorker(ctx, kpiModel, prompts.KPI)
	if err != nil {
		return nil, err
	}
	interview, err := newInterviewWorker(ctx, interviewModel, prompts.Interview)
	if err != nil {
		return nil, err
	}
	feedback, err := newFeedbackWorker(ctx, feedbackModel, prompts.Feedback)
	if err != nil {
		return nil, err
	}

	return &registryImpl{
		supervisor: supervisorx.New(classifier, supervisorx.Config{}),
		research:   research,
		kpi:        kpi,
		interview:  interview,
		feedback:   feedback,
	}, nil
}
