package qa

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/grovetools/socratic/config"
	"github.com/grovetools/socratic/errors"
	"github.com/grovetools/socratic/logging"
	"github.com/grovetools/socratic/pkg/completion"
	"github.com/sirupsen/logrus"
)

const sampleLogRunes = 300

// RunOptions are the command-line switches of a QA run.
type RunOptions struct {
	PlanPath   string
	Apply      bool
	Autodeploy bool
}

// RunResult summarises a QA run.
type RunResult struct {
	Report     Report        `json:"report"`
	ReportPath string        `json:"report_path"`
	Sample     string        `json:"sample,omitempty"`
	Publish    PublishResult `json:"publish"`
}

// Agent runs a plan, saves the report and publishes it.
type Agent struct {
	cfg       *config.Config
	completer completion.Completer
	publisher *Publisher
	logger    *logrus.Entry
	now       func() time.Time
}

// NewAgent wires an Agent from configuration.
func NewAgent(cfg *config.Config, completer completion.Completer, publisher *Publisher) *Agent {
	return &Agent{
		cfg:       cfg,
		completer: completer,
		publisher: publisher,
		logger:    logging.NewLogger("qa"),
		now:       time.Now,
	}
}

// Run executes one QA pass. Only a plan that cannot be loaded, or a report
// that cannot be written, is an error; publishing problems are carried in
// RunResult.Publish.
func (a *Agent) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	planPath := opts.PlanPath
	if planPath == "" {
		planPath = a.cfg.Agent.PlanPath
	}

	a.logger.WithFields(logrus.Fields{
		"plan":                  planPath,
		"apply":                 opts.Apply,
		"autodeploy":            opts.Autodeploy,
		"anthropic_key_present": a.completer.Available(),
		"github_repo":           a.cfg.GitHub.Repo,
		"github_token_present":  a.cfg.GitHub.Token != "",
	}).Info("Starting QA agent")

	if err := os.MkdirAll(a.cfg.Agent.ReportsDir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeReportWrite, "failed to create reports directory").
			WithDetail("path", a.cfg.Agent.ReportsDir)
	}

	result := &RunResult{}
	if a.completer.Available() {
		result.Sample = a.sample(ctx)
	} else {
		a.logger.Info("Running in dry-run (stub) mode, no completion calls")
	}

	plan, err := LoadPlan(planPath)
	if err != nil {
		return nil, err
	}
	result.Report = RunStub(plan)
	a.logger.WithFields(logrus.Fields{
		"plan":   result.Report.Plan,
		"passed": result.Report.Passed,
		"failed": result.Report.Failed,
	}).Info("Plan finished")

	now := a.now()
	result.ReportPath, err = SaveReport(a.cfg.Agent.ReportsDir, result.Report, now)
	if err != nil {
		return nil, err
	}
	a.logger.WithField("path", result.ReportPath).Info("Saved report")

	branch := fmt.Sprintf("qa/dev-agent/%d", now.Unix())
	result.Publish = a.publisher.Publish(ctx, result.Report, branch)
	a.logger.WithFields(logrus.Fields{
		"outcome": result.Publish.Outcome,
		"pr":      result.Publish.PRURL,
		"saved":   result.Publish.Saved,
	}).Info("Done")

	return result, nil
}

// sample sends one prompt through the bot system prompt to prove the
// credentials work. Failures are logged only.
func (a *Agent) sample(ctx context.Context) string {
	system := ""
	if data, err := os.ReadFile(a.cfg.Agent.PromptPath); err == nil {
		system = string(data)
		a.logger.WithField("length", len([]rune(system))).Info("Loaded bot system prompt")
	}

	a.logger.Info("Calling completion API for a sample reply")
	reply, err := a.completer.Complete(ctx, completion.Request{
		System: system,
		Turns:  []completion.Turn{{Role: completion.RoleUser, Content: a.cfg.Agent.SamplePrompt}},
	})
	if err != nil {
		a.logger.WithError(err).Warn("Sample completion failed")
		return ""
	}

	short := []rune(reply)
	if len(short) > sampleLogRunes {
		short = short[:sampleLogRunes]
	}
	a.logger.Infof("Sample reply: %s", strings.TrimSpace(string(short)))
	return reply
}
