package qa

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/grovetools/socratic/errors"
	"github.com/grovetools/socratic/logging"
	"github.com/grovetools/socratic/version"
	"github.com/sirupsen/logrus"
)

const (
	prBody        = "Auto-generated QA report. Please review."
	defaultBranch = "main"
)

// PublisherConfig configures a Publisher.
type PublisherConfig struct {
	// Repo is "owner/name".
	Repo  string
	Token string
	// APIURL overrides https://api.github.com/.
	APIURL string
	// ReportsDir receives suggestions.md when no token is configured.
	ReportsDir string
	// RemotePath is where the report is committed on the new branch.
	RemotePath string
}

// PublishResult describes what Publish achieved. Exactly one of Saved,
// PRURL or Error is set.
type PublishResult struct {
	Saved   string         `json:"saved,omitempty"`
	Branch  string         `json:"branch,omitempty"`
	PRURL   string         `json:"pr,omitempty"`
	Error   string         `json:"pr_error,omitempty"`
	Outcome errors.Outcome `json:"outcome"`
	Err     error          `json:"-"`
}

// Publisher opens draft pull requests carrying QA reports.
type Publisher struct {
	cfg    PublisherConfig
	client *github.Client
	logger *logrus.Entry
	now    func() time.Time
}

// NewPublisher builds a Publisher. The GitHub client is only created when a
// token is configured.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if cfg.RemotePath == "" {
		cfg.RemotePath = "ai_agent/reports/suggestions.md"
	}

	p := &Publisher{
		cfg:    cfg,
		logger: logging.NewLogger("publisher"),
		now:    time.Now,
	}
	if cfg.Token == "" {
		return p, nil
	}

	client := github.NewClient(&http.Client{Timeout: 30 * time.Second}).WithAuthToken(cfg.Token)
	client.UserAgent = version.UserAgent()
	if cfg.APIURL != "" {
		base, err := url.Parse(strings.TrimSuffix(cfg.APIURL, "/") + "/")
		if err != nil {
			return nil, errors.ConfigInvalid(fmt.Sprintf("github api_url: %v", err))
		}
		client.BaseURL = base
	}
	p.client = client
	return p, nil
}

// Publish commits the report to a new branch and opens a draft pull request.
// Without a token the report is saved locally instead. It never panics;
// failures are reported through the result.
func (p *Publisher) Publish(ctx context.Context, report Report, branch string) PublishResult {
	if p.cfg.Token == "" {
		p.logger.Info("No GITHUB_TOKEN set, skipping PR creation and saving local report")
		path := filepath.Join(p.cfg.ReportsDir, "suggestions.md")
		if err := writeReport(path, report); err != nil {
			return p.failed(err)
		}
		return PublishResult{Saved: path, Outcome: errors.OutcomeOK}
	}

	owner, name, ok := strings.Cut(p.cfg.Repo, "/")
	if !ok || owner == "" || name == "" {
		return p.failed(errors.RepoNotConfigured())
	}
	log := p.logger.WithField("repo", p.cfg.Repo)
	log.Info("Publishing QA report")

	repo, resp, err := p.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return p.failed(errors.PublishFailed("get repository", status(resp), err))
	}
	base := repo.GetDefaultBranch()
	if base == "" {
		base = defaultBranch
	}
	log.WithField("status", status(resp)).Infof("Default branch: %s", base)

	ref, resp, err := p.client.Git.GetRef(ctx, owner, name, "heads/"+base)
	if err != nil {
		return p.failed(errors.PublishFailed("get base ref", status(resp), err))
	}

	_, resp, err = p.client.Git.CreateRef(ctx, owner, name, &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: ref.GetObject().SHA},
	})
	if err != nil {
		// The branch may already exist; keep going.
		log.WithError(err).WithField("status", status(resp)).Warn("Branch create failed")
	} else {
		log.WithField("status", status(resp)).Infof("Created branch %s", branch)
	}

	now := p.now()
	body, err := RenderMarkdown(report, now)
	if err != nil {
		return p.failed(errors.Wrap(err, errors.ErrCodeReportWrite, "failed to render report"))
	}
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(fmt.Sprintf("chore(qaa): add suggestions report %d", now.Unix())),
		Content: []byte(body),
		Branch:  github.String(branch),
	}
	// A report merged earlier is overwritten, which requires its blob sha.
	existing, _, resp, err := p.client.Repositories.GetContents(ctx, owner, name, p.cfg.RemotePath, &github.RepositoryContentGetOptions{Ref: branch})
	switch {
	case err == nil:
		if existing != nil {
			opts.SHA = existing.SHA
			log.WithField("sha", existing.GetSHA()).Debugf("Overwriting existing %s", p.cfg.RemotePath)
		}
	case status(resp) != http.StatusNotFound:
		log.WithError(err).WithField("status", status(resp)).Warn("Failed to look up existing report file")
	}

	_, resp, err = p.client.Repositories.CreateFile(ctx, owner, name, p.cfg.RemotePath, opts)
	if err != nil {
		log.WithError(err).WithField("status", status(resp)).Warn("Failed to write file in branch")
	} else {
		log.WithField("status", status(resp)).Infof("Wrote %s in branch", p.cfg.RemotePath)
	}

	pr, resp, err := p.client.PullRequests.Create(ctx, owner, name, &github.NewPullRequest{
		Title: github.String(fmt.Sprintf("QA: auto report %d", now.Unix())),
		Head:  github.String(branch),
		Base:  github.String(base),
		Body:  github.String(prBody),
		Draft: github.Bool(true),
	})
	if err != nil {
		res := p.failed(errors.PublishFailed("create pull request", status(resp), err))
		res.Branch = branch
		return res
	}

	log.WithField("status", status(resp)).Infof("Created PR: %s", pr.GetHTMLURL())
	return PublishResult{Branch: branch, PRURL: pr.GetHTMLURL(), Outcome: errors.OutcomeOK}
}

func (p *Publisher) failed(err error) PublishResult {
	outcome := errors.Classify(err)
	p.logger.WithError(err).WithField("outcome", outcome).Error("Publishing failed")
	return PublishResult{Error: err.Error(), Outcome: outcome, Err: err}
}

func status(resp *github.Response) int {
	if resp == nil || resp.Response == nil {
		return 0
	}
	return resp.StatusCode
}
