package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/google/go-github/v81/github"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	gh "organvm/internal/github"
)

const (
	defaultRemoteConcurrency = 4
	// Stays under the authenticated REST budget of 5000 requests/hour with headroom for bursts.
	defaultRemoteRate = rate.Limit(1.2)
	remoteBurst       = 10
	listPageSize      = 100
)

// RemoteSource reads seed.yaml files straight from GitHub for every
// non-archived repository of the given organizations.
type RemoteSource struct {
	client      *gh.Client
	ref         string
	concurrency int
	limiter     *rate.Limiter
	budget      *gh.RateBudget
	logger      *slog.Logger
}

type RemoteOption func(*RemoteSource)

// WithRef reads seed.yaml at ref instead of each repository's default branch.
func WithRef(ref string) RemoteOption {
	return func(s *RemoteSource) { s.ref = ref }
}

func WithConcurrency(n int) RemoteOption {
	return func(s *RemoteSource) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithRate caps API requests per second. A non-positive value disables limiting.
func WithRate(perSecond float64) RemoteOption {
	return func(s *RemoteSource) {
		if perSecond <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), remoteBurst)
	}
}

// WithBudget makes every request draw from b and report the rate limit
// headers it gets back.
func WithBudget(b *gh.RateBudget) RemoteOption {
	return func(s *RemoteSource) { s.budget = b }
}

func WithRemoteLogger(l *slog.Logger) RemoteOption {
	return func(s *RemoteSource) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewRemoteSource(client *gh.Client, opts ...RemoteOption) (*RemoteSource, error) {
	if client == nil || client.Client == nil {
		return nil, errors.New("remote source: github client is nil")
	}
	s := &RemoteSource{
		client:      client,
		concurrency: defaultRemoteConcurrency,
		limiter:     rate.NewLimiter(defaultRemoteRate, remoteBurst),
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, apply := range opts {
		if apply != nil {
			apply(s)
		}
	}
	return s, nil
}

type remoteRepo struct {
	owner  string
	name   string
	branch string
}

func (r remoteRepo) path() string {
	return fmt.Sprintf("github.com/%s/%s/%s", r.owner, r.name, FileName)
}

// Fetch returns one Document per repository that has a seed.yaml, sorted by
// path. Listing failures abort; per-file failures are kept on the document.
func (s *RemoteSource) Fetch(ctx context.Context, orgs []string) ([]Document, error) {
	if ctx == nil {
		return nil, errors.New("remote source: ctx is nil")
	}

	var repos []remoteRepo
	for _, org := range orgs {
		rs, err := s.listOrg(ctx, org)
		if err != nil {
			return nil, err
		}
		repos = append(repos, rs...)
	}
	s.logger.Debug("remote seed discovery", "orgs", len(orgs), "repos", len(repos))

	slots := make([]*Document, len(repos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, r := range repos {
		g.Go(func() error {
			doc, err := s.fetchSeed(gctx, r)
			if err != nil {
				return err
			}
			slots[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(slots))
	for _, d := range slots {
		if d != nil {
			docs = append(docs, *d)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}

func (s *RemoteSource) listOrg(ctx context.Context, org string) ([]remoteRepo, error) {
	var out []remoteRepo
	opts := &github.RepositoryListByOrgOptions{
		ListOptions: github.ListOptions{PerPage: listPageSize},
	}
	for {
		if err := s.wait(ctx); err != nil {
			return nil, err
		}
		page, resp, err := s.client.Client.Repositories.ListByOrg(ctx, org, opts)
		s.observe(resp)
		if err != nil {
			return nil, fmt.Errorf("list repos for %s: %w", org, err)
		}
		for _, r := range page {
			if r.GetArchived() {
				continue
			}
			owner := r.GetOwner().GetLogin()
			if owner == "" {
				owner = org
			}
			out = append(out, remoteRepo{owner: owner, name: r.GetName(), branch: r.GetDefaultBranch()})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// fetchSeed returns (nil, nil) when the repository has no seed.yaml. Only
// context cancellation is returned as an error.
func (s *RemoteSource) fetchSeed(ctx context.Context, r remoteRepo) (*Document, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	ref := s.ref
	if ref == "" {
		ref = r.branch
	}
	var getOpts *github.RepositoryContentGetOptions
	if ref != "" {
		getOpts = &github.RepositoryContentGetOptions{Ref: ref}
	}

	file, _, resp, err := s.client.Client.Repositories.GetContents(ctx, r.owner, r.name, FileName, getOpts)
	s.observe(resp)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		s.logger.Debug("seed fetch failed", "repo", r.owner+"/"+r.name, "error", err)
		return &Document{Path: r.path(), Err: fmt.Errorf("fetch: %w", err)}, nil
	}
	if file == nil {
		return &Document{Path: r.path(), Err: errors.New("fetch: seed.yaml is a directory")}, nil
	}
	content, err := file.GetContent()
	if err != nil {
		return &Document{Path: r.path(), Err: fmt.Errorf("decode content: %w", err)}, nil
	}
	return &Document{Path: r.path(), Content: []byte(content)}, nil
}

// wait paces one request through the rate limiter and the budget.
func (s *RemoteSource) wait(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if s.budget == nil {
		return nil
	}
	return s.budget.Acquire(ctx)
}

func (s *RemoteSource) observe(resp *github.Response) {
	if s.budget == nil || resp == nil {
		return
	}
	s.budget.Observe(resp.Response)
}
