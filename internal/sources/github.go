package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/communitypulse/pulse/internal/community"
	"github.com/communitypulse/pulse/internal/config"
	"github.com/communitypulse/pulse/internal/fetch"
)

const githubPageSize = 100

// GitHub aggregates metrics across every repository of an organization, or
// across an explicit repository list. The API is the only retrieval path;
// without a token the public API is used at its lower rate limit.
type GitHub struct {
	cfg    config.GitHubConfig
	client *fetch.Client
	logger zerolog.Logger
}

func NewGitHub(cfg config.GitHubConfig, client *fetch.Client, logger zerolog.Logger) *GitHub {
	return &GitHub{cfg: cfg, client: client, logger: logger}
}

func (g *GitHub) Name() string { return "github" }

type githubRepo struct {
	Name       string `json:"name"`
	FullName   string `json:"full_name"`
	Stars      int64  `json:"stargazers_count"`
	Forks      int64  `json:"forks_count"`
	OpenIssues int64  `json:"open_issues_count"`
}

type githubContributor struct {
	Login string `json:"login"`
	Type  string `json:"type"`
}

type githubIssue struct {
	Number      int64     `json:"number"`
	PullRequest *struct{} `json:"pull_request,omitempty"`
}

type githubMember struct {
	Login string `json:"login"`
}

// Collect lists repositories, sums stars and forks, unions contributor sets,
// classifies open issues versus pull requests, and counts organization
// members. Listing failure fails the whole record; a per-repo sub-call
// failure only degrades it to partial.
func (g *GitHub) Collect(ctx context.Context) (rec community.Record) {
	out := &community.GitHubOrgRecord{Meta: enabledMeta()}
	rec = out

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error().Interface("panic", r).Str("source", g.Name()).
				Msg("sources: collector panicked")
			rec = &community.GitHubOrgRecord{Meta: enabledMeta()}
		}
	}()

	repos, err := g.listRepos(ctx)
	if err != nil {
		g.logger.Warn().Err(err).Str("source", g.Name()).
			Msg("sources: repository listing failed")
		return rec
	}
	if len(repos) == 0 {
		g.logger.Warn().Str("source", g.Name()).Msg("sources: no repositories found")
		return rec
	}

	out.TotalRepositories = int64(len(repos))
	for _, r := range repos {
		out.TotalStars += r.Stars
		out.TotalForks += r.Forks
	}

	degraded := false
	contributors := make(map[string]struct{})
	for _, r := range repos {
		if ctx.Err() != nil {
			degraded = true
			break
		}
		if err := g.countRepoActivity(ctx, r, contributors, out); err != nil {
			g.logger.Warn().Err(err).Str("source", g.Name()).Str("repo", r.FullName).
				Msg("sources: per-repo metrics failed")
			degraded = true
		}
	}
	out.UniqueContributors = int64(len(contributors))

	if g.cfg.Organization != "" {
		members, err := fetchPages[githubMember](ctx, g.client,
			fmt.Sprintf("%s/orgs/%s/members?per_page=%d",
				g.cfg.APIBaseURL, url.PathEscape(g.cfg.Organization), githubPageSize),
			g.headers())
		if err != nil {
			g.logger.Warn().Err(err).Str("source", g.Name()).
				Msg("sources: member listing failed")
			degraded = true
		} else {
			out.MemberCount = int64(len(members))
		}
	}

	out.Method = community.MethodAPI
	if degraded {
		out.Status = community.StatusPartial
	} else {
		out.Status = community.StatusOK
	}
	return rec
}

// listRepos returns the repositories in scope: the organization's full
// paginated listing, or the explicitly configured list.
func (g *GitHub) listRepos(ctx context.Context) ([]githubRepo, error) {
	if g.cfg.Organization != "" {
		return fetchPages[githubRepo](ctx, g.client,
			fmt.Sprintf("%s/orgs/%s/repos?per_page=%d&type=public",
				g.cfg.APIBaseURL, url.PathEscape(g.cfg.Organization), githubPageSize),
			g.headers())
	}

	var repos []githubRepo
	for _, full := range g.cfg.Repositories {
		var repo githubRepo
		err := g.client.GetJSON(ctx,
			fmt.Sprintf("%s/repos/%s", g.cfg.APIBaseURL, full), g.headers(), &repo)
		if err != nil {
			return nil, fmt.Errorf("repo %s: %w", full, err)
		}
		if repo.FullName == "" {
			repo.FullName = full
		}
		repos = append(repos, repo)
	}
	return repos, nil
}

// countRepoActivity unions the repo's contributors and classifies its open
// issues into issues and pull requests.
func (g *GitHub) countRepoActivity(ctx context.Context, r githubRepo, contributors map[string]struct{}, out *community.GitHubOrgRecord) error {
	contribs, err := fetchPages[githubContributor](ctx, g.client,
		fmt.Sprintf("%s/repos/%s/contributors?per_page=%d",
			g.cfg.APIBaseURL, r.FullName, githubPageSize),
		g.headers())
	if err != nil {
		return fmt.Errorf("contributors: %w", err)
	}
	for _, c := range contribs {
		if c.Login == "" || strings.EqualFold(c.Type, "Bot") {
			continue
		}
		contributors[c.Login] = struct{}{}
	}

	issues, err := fetchPages[githubIssue](ctx, g.client,
		fmt.Sprintf("%s/repos/%s/issues?state=open&per_page=%d",
			g.cfg.APIBaseURL, r.FullName, githubPageSize),
		g.headers())
	if err != nil {
		// open_issues_count from the listing lumps pull requests in with
		// issues, but a coarse count beats reporting zero.
		out.OpenIssues += r.OpenIssues
		return fmt.Errorf("issues: %w", err)
	}
	for _, issue := range issues {
		if issue.PullRequest != nil {
			out.OpenPRs++
		} else {
			out.OpenIssues++
		}
	}
	return nil
}

func (g *GitHub) headers() map[string]string {
	h := map[string]string{
		"Accept": "application/vnd.github+json",
	}
	if g.cfg.Token != "" {
		h["Authorization"] = "Bearer " + g.cfg.Token
	}
	return h
}

// fetchPages follows GitHub-style page numbering, appending &page=N to
// pageURL until a short page signals the end of the listing. A 204 (empty
// repository) reads as an empty page.
func fetchPages[T any](ctx context.Context, client *fetch.Client, pageURL string, headers map[string]string) ([]T, error) {
	var all []T
	for page := 1; ; page++ {
		var batch []T
		u := fmt.Sprintf("%s&page=%d", pageURL, page)
		if err := client.GetJSON(ctx, u, headers, &batch); err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < githubPageSize {
			break
		}
	}
	return all, nil
}
