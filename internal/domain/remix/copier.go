package remix

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/remixhub/remixhub-api/internal/pkg/githubapi"
	"github.com/remixhub/remixhub-api/internal/pkg/upstream"
)

// GitClient is the subset of the GitHub API the copier needs.
type GitClient interface {
	GetRepository(ctx context.Context, token, owner, repo string) (*githubapi.Repository, error)
	GetTreeRecursive(ctx context.Context, token, owner, repo, ref string) (*githubapi.Tree, error)
	GetBlob(ctx context.Context, token, blobURL string) (*githubapi.Blob, error)
	CreateBlob(ctx context.Context, token, owner, repo, content, encoding string) (string, error)
	CreateTree(ctx context.Context, token, owner, repo string, entries []githubapi.TreeEntry) (string, error)
	CreateCommit(ctx context.Context, token, owner, repo, message, treeSHA string) (string, error)
	UpdateRef(ctx context.Context, token, owner, repo, branch, sha string, force bool) error
	CreateUserRepository(ctx context.Context, token, name string, private, autoInit bool) error
}

// CopierOptions tunes the copy pipeline.
type CopierOptions struct {
	// Concurrency bounds parallel blob transfers.
	Concurrency int

	// FailFast aborts the whole copy on the first blob failure. When false,
	// failed blobs are skipped and counted.
	FailFast bool

	// InitWait and InitRetries control polling for a freshly created
	// destination repository to become readable.
	InitWait    time.Duration
	InitRetries int
}

// CopyInput describes one copy operation. SourceToken must read the source;
// DestToken must write the destination. They may be the same token.
type CopyInput struct {
	Source      RepoRef
	Destination RepoRef
	SourceToken string
	DestToken   string
}

// CopyResult reports what a completed copy did.
type CopyResult struct {
	BlobsCopied  int
	BlobsSkipped int
	BlobsTotal   int
	CommitSHA    string
	Branch       string
}

// Copier copies a repository's file tree into another repository as a single
// parentless commit. No git history is carried over.
type Copier struct {
	git  GitClient
	opts CopierOptions
}

func NewCopier(git GitClient, opts CopierOptions) *Copier {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.InitWait <= 0 {
		opts.InitWait = 2 * time.Second
	}
	if opts.InitRetries <= 0 {
		opts.InitRetries = 5
	}
	return &Copier{git: git, opts: opts}
}

// Copy runs the full pipeline: read the source tree, ensure the destination
// exists, transfer blobs, then write tree, commit and ref on the destination.
func (c *Copier) Copy(ctx context.Context, in CopyInput) (*CopyResult, error) {
	srcRepo, err := c.git.GetRepository(ctx, in.SourceToken, in.Source.Owner, in.Source.Name)
	if err != nil {
		if upstream.IsStatus(err, http.StatusNotFound) {
			return nil, ErrSourceNotFound
		}
		return nil, fmt.Errorf("read source repository: %w", err)
	}

	tree, err := c.git.GetTreeRecursive(ctx, in.SourceToken, in.Source.Owner, in.Source.Name, srcRepo.DefaultBranch)
	if err != nil {
		if upstream.IsStatus(err, http.StatusNotFound) {
			return nil, ErrSourceNotFound
		}
		return nil, fmt.Errorf("read source tree: %w", err)
	}
	if tree.Truncated {
		log.Warn().
			Str("source", in.Source.String()).
			Msg("source tree listing truncated, copy will be partial")
	}

	destBranch, err := c.ensureDestination(ctx, in)
	if err != nil {
		return nil, err
	}

	blobs := make([]githubapi.TreeItem, 0, len(tree.Tree))
	for _, item := range tree.Tree {
		if item.Type == "blob" {
			blobs = append(blobs, item)
		}
	}

	entries, skipped, err := c.transferBlobs(ctx, in, blobs)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no blobs could be copied from %s", ErrInternal, in.Source)
	}

	treeSHA, err := c.git.CreateTree(ctx, in.DestToken, in.Destination.Owner, in.Destination.Name, entries)
	if err != nil {
		return nil, fmt.Errorf("create destination tree: %w", err)
	}

	message := fmt.Sprintf("Remix of %s", srcRepo.FullName)
	commitSHA, err := c.git.CreateCommit(ctx, in.DestToken, in.Destination.Owner, in.Destination.Name, message, treeSHA)
	if err != nil {
		return nil, fmt.Errorf("create destination commit: %w", err)
	}

	branch, err := c.updateRef(ctx, in, destBranch, commitSHA)
	if err != nil {
		return nil, err
	}

	return &CopyResult{
		BlobsCopied:  len(entries),
		BlobsSkipped: skipped,
		BlobsTotal:   len(blobs),
		CommitSHA:    commitSHA,
		Branch:       branch,
	}, nil
}

// ensureDestination makes sure the destination repository exists and is
// readable, creating it when missing. Returns its default branch.
func (c *Copier) ensureDestination(ctx context.Context, in CopyInput) (string, error) {
	repo, err := c.git.GetRepository(ctx, in.DestToken, in.Destination.Owner, in.Destination.Name)
	if err == nil {
		return repo.DefaultBranch, nil
	}
	if !upstream.IsStatus(err, http.StatusNotFound) {
		return "", fmt.Errorf("read destination repository: %w", err)
	}

	log.Info().
		Str("destination", in.Destination.String()).
		Msg("destination repository missing, creating")

	if err := c.git.CreateUserRepository(ctx, in.DestToken, in.Destination.Name, false, true); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDestinationUnavailable, err)
	}

	// Repository creation is eventually consistent; poll until the git data
	// API can see it.
	for attempt := 0; attempt < c.opts.InitRetries; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.opts.InitWait):
		}

		repo, err = c.git.GetRepository(ctx, in.DestToken, in.Destination.Owner, in.Destination.Name)
		if err == nil {
			return repo.DefaultBranch, nil
		}
	}

	return "", ErrDestinationUnavailable
}

// transferBlobs moves blob content from source to destination with bounded
// concurrency. Entries come back in tree order regardless of completion
// order.
func (c *Copier) transferBlobs(ctx context.Context, in CopyInput, blobs []githubapi.TreeItem) ([]githubapi.TreeEntry, int, error) {
	results := make([]*githubapi.TreeEntry, len(blobs))

	var mu sync.Mutex
	skipped := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)

	for i, item := range blobs {
		i, item := i, item
		g.Go(func() error {
			blob, err := c.git.GetBlob(gctx, in.SourceToken, item.URL)
			if err != nil {
				return c.skipOrFail(&mu, &skipped, item.Path, "fetch blob", err)
			}

			sha, err := c.git.CreateBlob(gctx, in.DestToken, in.Destination.Owner, in.Destination.Name, blob.Content, blob.Encoding)
			if err != nil {
				return c.skipOrFail(&mu, &skipped, item.Path, "create blob", err)
			}

			results[i] = &githubapi.TreeEntry{
				Path: item.Path,
				Mode: item.Mode,
				Type: "blob",
				SHA:  sha,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("copy blobs: %w", err)
	}

	entries := make([]githubapi.TreeEntry, 0, len(blobs))
	for _, e := range results {
		if e != nil {
			entries = append(entries, *e)
		}
	}

	return entries, skipped, nil
}

func (c *Copier) skipOrFail(mu *sync.Mutex, skipped *int, path, op string, err error) error {
	if c.opts.FailFast {
		return fmt.Errorf("%s %s: %w", op, path, err)
	}

	log.Warn().Err(err).Str("path", path).Msgf("skipping blob, %s failed", op)

	mu.Lock()
	*skipped++
	mu.Unlock()
	return nil
}

// updateRef points the destination branch at the new commit, falling back
// through main and master when the default branch ref does not exist yet.
func (c *Copier) updateRef(ctx context.Context, in CopyInput, defaultBranch, commitSHA string) (string, error) {
	candidates := []string{defaultBranch}
	for _, b := range []string{"main", "master"} {
		if b != defaultBranch {
			candidates = append(candidates, b)
		}
	}

	var lastErr error
	for _, branch := range candidates {
		err := c.git.UpdateRef(ctx, in.DestToken, in.Destination.Owner, in.Destination.Name, branch, commitSHA, true)
		if err == nil {
			return branch, nil
		}
		lastErr = err
		if !upstream.IsStatus(err, http.StatusNotFound) && !upstream.IsStatus(err, http.StatusUnprocessableEntity) {
			break
		}
	}

	return "", fmt.Errorf("update destination ref: %w", lastErr)
}
