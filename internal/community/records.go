// Package community defines the domain types for one metrics collection run:
// the per-source record variants, their shared status metadata, and the
// Snapshot that merges them.
package community

import "strconv"

// Status describes the outcome of collecting one source.
type Status string

const (
	StatusOK       Status = "ok"
	StatusPartial  Status = "partial"
	StatusFailed   Status = "failed"
	StatusDisabled Status = "disabled"
)

// Method records which retrieval path produced a source record.
type Method string

const (
	MethodAPI    Method = "api"
	MethodScrape Method = "scrape"
	MethodNone   Method = ""
)

// Field is one column of the flat history projection of a record. Sentinel is
// the placeholder written for this column when a row has no data for it.
type Field struct {
	Column   string
	Value    string
	Sentinel string
}

func intField(column string, v int64) Field {
	return Field{Column: column, Value: strconv.FormatInt(v, 10), Sentinel: "0"}
}

func strField(column, v string) Field {
	return Field{Column: column, Value: v, Sentinel: ""}
}

// statusField marks rows that predate the column as disabled rather than
// zero, so a backfilled history does not read as a run of failures.
func statusField(column string, s Status) Field {
	return Field{Column: column, Value: string(s), Sentinel: string(StatusDisabled)}
}

// Meta carries the status fields shared by every source record variant.
type Meta struct {
	Enabled bool   `json:"enabled"`
	Status  Status `json:"status"`
	Method  Method `json:"method"`
}

// State returns the collection status. It exists so the Record interface can
// expose the status without colliding with the embedded Status field.
func (m Meta) State() Status { return m.Status }

// Mode returns the retrieval method, for the same reason.
func (m Meta) Mode() Method { return m.Method }

// Record is the closed set of per-source metric variants. Each variant knows
// its source name, its flat column projection, and how to attach itself to a
// Snapshot.
type Record interface {
	Source() string
	State() Status
	Mode() Method
	Fields() []Field
	Attach(*Snapshot)
}

// GitHubOrgRecord aggregates metrics across every repository of an
// organization (or an explicit repository list).
type GitHubOrgRecord struct {
	Meta
	TotalStars         int64 `json:"total_stars"`
	TotalForks         int64 `json:"total_forks"`
	TotalRepositories  int64 `json:"total_repositories"`
	UniqueContributors int64 `json:"unique_contributors"`
	OpenIssues         int64 `json:"open_issues"`
	OpenPRs            int64 `json:"open_prs"`
	MemberCount        int64 `json:"member_count"`
}

func (r *GitHubOrgRecord) Source() string { return "github" }

func (r *GitHubOrgRecord) Attach(s *Snapshot) { s.GitHub = r }

func (r *GitHubOrgRecord) Fields() []Field {
	return []Field{
		intField("github_total_stars", r.TotalStars),
		intField("github_total_forks", r.TotalForks),
		intField("github_total_repositories", r.TotalRepositories),
		intField("github_unique_contributors", r.UniqueContributors),
		intField("github_open_issues", r.OpenIssues),
		intField("github_open_prs", r.OpenPRs),
		intField("github_member_count", r.MemberCount),
		statusField("github_status", r.Status),
		strField("github_method", string(r.Method)),
	}
}

// YouTubeRecord holds channel statistics.
type YouTubeRecord struct {
	Meta
	Subscribers int64  `json:"subscribers"`
	TotalViews  int64  `json:"total_views"`
	VideoCount  int64  `json:"video_count"`
	ChannelURL  string `json:"channel_url"`
}

func (r *YouTubeRecord) Source() string { return "youtube" }

func (r *YouTubeRecord) Attach(s *Snapshot) { s.YouTube = r }

func (r *YouTubeRecord) Fields() []Field {
	return []Field{
		intField("youtube_subscribers", r.Subscribers),
		intField("youtube_total_views", r.TotalViews),
		intField("youtube_video_count", r.VideoCount),
		statusField("youtube_status", r.Status),
		strField("youtube_method", string(r.Method)),
	}
}

// ScholarRecord sums citation metrics across the configured author profiles.
// HIndex and I10Index report the maximum seen across profiles.
type ScholarRecord struct {
	Meta
	Citations int64 `json:"citations"`
	HIndex    int64 `json:"h_index"`
	I10Index  int64 `json:"i10_index"`
	Profiles  int64 `json:"profiles"`
}

func (r *ScholarRecord) Source() string { return "scholar" }

func (r *ScholarRecord) Attach(s *Snapshot) { s.Scholar = r }

func (r *ScholarRecord) Fields() []Field {
	return []Field{
		intField("scholar_citations", r.Citations),
		intField("scholar_h_index", r.HIndex),
		intField("scholar_i10_index", r.I10Index),
		intField("scholar_profiles", r.Profiles),
		statusField("scholar_status", r.Status),
		strField("scholar_method", string(r.Method)),
	}
}

// SlackRecord counts workspace membership.
type SlackRecord struct {
	Meta
	TotalMembers int64 `json:"total_members"`
}

func (r *SlackRecord) Source() string { return "slack" }

func (r *SlackRecord) Attach(s *Snapshot) { s.Slack = r }

func (r *SlackRecord) Fields() []Field {
	return []Field{
		intField("slack_total_members", r.TotalMembers),
		statusField("slack_status", r.Status),
		strField("slack_method", string(r.Method)),
	}
}

// PyPIRecord holds recent download statistics for one package.
type PyPIRecord struct {
	Meta
	Package            string `json:"package"`
	DownloadsLastMonth int64  `json:"downloads_last_month"`
	DownloadsLastWeek  int64  `json:"downloads_last_week"`
	DownloadsLastDay   int64  `json:"downloads_last_day"`
}

func (r *PyPIRecord) Source() string { return "pypi" }

func (r *PyPIRecord) Attach(s *Snapshot) { s.PyPI = r }

func (r *PyPIRecord) Fields() []Field {
	return []Field{
		intField("pypi_downloads_last_month", r.DownloadsLastMonth),
		intField("pypi_downloads_last_week", r.DownloadsLastWeek),
		intField("pypi_downloads_last_day", r.DownloadsLastDay),
		statusField("pypi_status", r.Status),
		strField("pypi_method", string(r.Method)),
	}
}
