package scenario

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Sender delivers one prompt and returns the cleaned response.
type Sender interface {
	SendMessage(ctx context.Context, text string) (string, error)
}

// Scenario is a named prompt with the indicators its response should
// contain. Setup prompts are sent first and their responses discarded.
type Scenario struct {
	Name       string
	Setup      []string
	Prompt     string
	Indicators []string
	Policy     Policy
}

// Runner executes scenarios sequentially over one Sender.
type Runner struct {
	sender Sender
	log    zerolog.Logger
}

// NewRunner returns a Runner that logs progress to logger.
func NewRunner(sender Sender, logger zerolog.Logger) *Runner {
	return &Runner{sender: sender, log: logger}
}

// RunScenario sends prompt and checks the response. A send error is
// recorded in the Result and fails it; whatever text came back is still
// checked so the report shows what was seen.
func (r *Runner) RunScenario(ctx context.Context, prompt string, indicators []string, policy Policy) Result {
	response, err := r.sender.SendMessage(ctx, prompt)
	result := Check(response, indicators, policy)
	if err != nil {
		result.Err = err
		result.Success = false
	}

	for _, indicator := range result.Found {
		r.log.Debug().Str("indicator", indicator).Msg("Found")
	}
	for _, indicator := range result.Missing {
		r.log.Debug().Str("indicator", indicator).Msg("Missing")
	}
	return result
}

// Run executes one scenario, including its setup prompts.
func (r *Runner) Run(ctx context.Context, s Scenario) Result {
	r.log.Info().Str("scenario", s.Name).Msg("Running scenario")

	for i, prompt := range s.Setup {
		if _, err := r.sender.SendMessage(ctx, prompt); err != nil {
			r.log.Error().Err(err).Str("scenario", s.Name).Int("step", i+1).Msg("Setup failed")
			return Result{Name: s.Name, Missing: s.Indicators, Err: fmt.Errorf("setup step %d: %w", i+1, err)}
		}
	}

	result := r.RunScenario(ctx, s.Prompt, s.Indicators, s.Policy)
	result.Name = s.Name

	event := r.log.Info()
	if !result.Success {
		event = r.log.Warn()
	}
	event.Str("scenario", s.Name).
		Bool("success", result.Success).
		Int("found", len(result.Found)).
		Int("total", len(s.Indicators)).
		Int("length", result.ResponseLength).
		AnErr("error", result.Err).
		Msg("Scenario finished")
	return result
}

// RunSuite runs every scenario in order. A failed scenario does not stop
// the suite; once ctx is done the remaining scenarios are reported with
// its error.
func (r *Runner) RunSuite(ctx context.Context, scenarios []Scenario) Report {
	var report Report
	for _, s := range scenarios {
		if err := ctx.Err(); err != nil {
			report.Results = append(report.Results, Result{Name: s.Name, Missing: s.Indicators, Err: err})
			continue
		}
		report.Results = append(report.Results, r.Run(ctx, s))
	}
	return report
}
