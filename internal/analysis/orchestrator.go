// Package analysis drives the bounded negotiation between the planning
// entity and the sandbox: the orchestrator state machine, the planner action
// contract, and the report assembler.
package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/analysis-engine/internal/apperror"
	"github.com/sakif/analysis-engine/internal/metrics"
	"github.com/sakif/analysis-engine/internal/planner"
	"github.com/sakif/analysis-engine/internal/sandbox"
)

const (
	// DefaultMaxTurns bounds the negotiation; past it the session fails.
	DefaultMaxTurns = 4
	// DefaultOutputBudget caps the sandbox output fed back to the planner,
	// in bytes.
	DefaultOutputBudget = 6000
)

// Config tunes one orchestrator. Zero values take the defaults above.
type Config struct {
	MaxTurns     int
	OutputBudget int
	// ResultsDir is where Plot-mode artifacts are collected on the host.
	ResultsDir string
}

// Request describes one analysis to run. Metadata is the planner-facing
// dataset description, opaque text from the orchestrator's point of view.
type Request struct {
	Context    string
	Metadata   string
	InputFiles []string
	// OutputName is the caller-supplied unique artifact name prefix; it
	// keeps concurrent analyses collision-free in the shared results dir.
	OutputName string
}

// Orchestrator owns one side of the negotiation. It is stateless between
// Analyze calls and safe for concurrent use; per-session state lives on the
// stack of each call.
type Orchestrator struct {
	runner  sandbox.Runner
	planner planner.Planner
	config  Config
	logger  *slog.Logger
}

// NewOrchestrator wires an orchestrator over a sandbox runner and a planner.
func NewOrchestrator(runner sandbox.Runner, p planner.Planner, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.OutputBudget <= 0 {
		cfg.OutputBudget = DefaultOutputBudget
	}
	return &Orchestrator{
		runner:  runner,
		planner: p,
		config:  cfg,
		logger:  logger,
	}
}

// Analyze runs one interactive session to completion.
//
// Each turn the planner either requests a computation (run silently, output
// truncated and fed back) or finalizes (chart code run in plot mode, report
// assembled). Malformed responses cost a turn and get a corrective message.
// Exhausting the turn budget fails the session with ErrIncomplete; a final
// action without chart code fails it with ErrContractViolation before any
// job is dispatched.
func (o *Orchestrator) Analyze(ctx context.Context, req Request) (*Report, error) {
	messages := []planner.Message{
		{Role: planner.RoleSystem, Content: systemPrompt},
		{Role: planner.RoleUser, Content: fmt.Sprintf(
			"Context Description: %s\n\nResult Content and Metadata:\n%s",
			req.Context, req.Metadata,
		)},
	}

	for turn := 1; turn <= o.config.MaxTurns; turn++ {
		raw, err := o.planner.Send(ctx, messages)
		if err != nil {
			metrics.SessionCompleted("failed", turn)
			return nil, fmt.Errorf("planner request failed: %w", err)
		}

		action := DecodeAction(raw)
		o.logger.Debug("planner action decoded",
			slog.String("kind", string(action.Kind)),
			slog.Int("turn", turn),
		)

		switch action.Kind {
		case ActionCompute:
			feedback, err := o.runCompute(ctx, req, action, turn)
			if err != nil {
				metrics.SessionCompleted("failed", turn)
				return nil, err
			}
			messages = append(messages,
				planner.Message{Role: planner.RoleAssistant, Content: raw},
				planner.Message{Role: planner.RoleUser, Content: feedback},
			)

		case ActionFinal:
			report, err := o.runFinal(ctx, req, action)
			if err != nil {
				metrics.SessionCompleted("failed", turn)
				return nil, err
			}
			metrics.SessionCompleted("succeeded", turn)
			return report, nil

		case ActionMalformed:
			messages = append(messages,
				planner.Message{Role: planner.RoleAssistant, Content: raw},
				planner.Message{Role: planner.RoleUser, Content: correctiveMessage},
			)
		}
	}

	metrics.SessionCompleted("incomplete", o.config.MaxTurns)
	return nil, apperror.Incomplete(fmt.Sprintf(
		"analysis did not complete within %d turns", o.config.MaxTurns,
	))
}

// runCompute executes one compute action and returns the feedback text for
// the next user turn. Sandbox failures are recovered into feedback here;
// only infrastructure errors (backend gone, context canceled) end the
// session.
func (o *Orchestrator) runCompute(ctx context.Context, req Request, action Action, turn int) (string, error) {
	code := ExtractCode(action.Code)
	if code == "" {
		// No extractable code block: treat like a malformed response and
		// spend the turn on a correction instead of failing the session.
		return correctiveMessage + " The compute action must carry a fenced python code block.", nil
	}

	outcome, err := o.runner.Run(ctx, sandbox.Job{
		Code:       code,
		Mode:       sandbox.ModeCompute,
		InputFiles: req.InputFiles,
	})
	if err != nil {
		return "", fmt.Errorf("compute execution: %w", err)
	}

	output := outcome.CombinedLog
	if !outcome.Succeeded {
		output = fmt.Sprintf("ERROR: Execution failed (exit=%d). Logs:\n%s", outcome.ExitCode, output)
	}
	output = truncateOutput(output, o.config.OutputBudget)

	return fmt.Sprintf(
		"Computation output (turn %d):\n%s\nIf more data is needed, request another computation.",
		turn, output,
	), nil
}

// runFinal executes the terminal plot action and assembles the report.
// A failed visualization is terminal for the session; the corrective
// budget is reserved for malformed responses, not broken chart code.
func (o *Orchestrator) runFinal(ctx context.Context, req Request, action Action) (*Report, error) {
	chartCode := ExtractCode(action.ChartCode)
	if chartCode == "" {
		return nil, apperror.ContractViolation("chart_code", "final action is missing chart code")
	}

	outcome, err := o.runner.Run(ctx, sandbox.Job{
		Code:       chartCode,
		Mode:       sandbox.ModePlot,
		InputFiles: req.InputFiles,
		OutputDir:  o.config.ResultsDir,
		OutputName: req.OutputName,
	})
	if err != nil {
		return nil, fmt.Errorf("chart execution: %w", err)
	}
	if !outcome.Succeeded {
		log := truncateOutput(outcome.CombinedLog, o.config.OutputBudget)
		if outcome.TimedOut {
			return nil, apperror.ExecutionTimeout(fmt.Sprintf("chart code timed out. Logs:\n%s", log))
		}
		return nil, apperror.ExecutionFailed(fmt.Sprintf(
			"chart code failed (exit=%d). Logs:\n%s", outcome.ExitCode, log,
		))
	}

	report := BuildReport(action.Summary, action.Figures, outcome.Artifacts)
	report.OriginalContext = req.Context
	return &report, nil
}

// truncateOutput enforces the byte budget on sandbox output before it
// re-enters the planner's context.
func truncateOutput(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "\n...<truncated>..."
}
