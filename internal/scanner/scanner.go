package scanner

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/repoviral/backend/internal/database"
	"github.com/repoviral/backend/internal/github"
	"golang.org/x/sync/errgroup"
)

const (
	maxTreePaths      = 200
	maxReadmeChars    = 8000
	maxEntryChars     = 1500
	maxShallowPaths   = 300
	readmePlaceholder = "No README found."
)

// Evidence holds the verifiable claims extracted from a repository.
// Every feature string cites the file it was derived from.
type Evidence struct {
	Features       []string `json:"features"`
	TestCount      int      `json:"test_count"`
	Entities       []string `json:"entities"`
	ConfigEvidence []string `json:"config_evidence"`
}

// ContextBundle is the bounded repository context handed to the content
// generator. Everything in it comes from fetched data, never invention.
type ContextBundle struct {
	FileTree          []string `json:"file_tree"`
	TechStack         []string `json:"tech_stack"`
	Evidence          Evidence `json:"evidence"`
	EntryPointName    string   `json:"entry_point_name"`
	EntryPointContent string   `json:"entry_point_content"`
	ReadmeContent     string   `json:"readme_content"`
}

// RepoClient is the slice of the GitHub client the scanner needs.
type RepoClient interface {
	DefaultBranch(ctx context.Context, ref github.RepoRef) (string, error)
	Tree(ctx context.Context, ref github.RepoRef, branch string) ([]string, error)
	FileContent(ctx context.Context, ref github.RepoRef, path string) (string, bool)
	Readme(ctx context.Context, ref github.RepoRef) string
}

// Cache is the slice of the cache layer the scanner needs. A Get error of
// any kind is treated as a miss.
type Cache interface {
	Get(key string, dest interface{}) error
	Set(key string, value interface{}, ttl time.Duration) error
}

type Scanner struct {
	client RepoClient
	cache  Cache
}

func New(client RepoClient) *Scanner {
	return &Scanner{client: client, cache: database.RedisCache{}}
}

// Deep walks the repository tree and builds an evidence bundle. Only
// reference resolution and the initial metadata/tree fetches are fatal;
// every individual file fetch degrades to an absent field.
func (s *Scanner) Deep(ctx context.Context, repoURL string) (*ContextBundle, error) {
	ref, err := github.ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	cacheKey := database.CacheKeyScan + ref.String()
	var cached ContextBundle
	if err := s.cache.Get(cacheKey, &cached); err == nil {
		return &cached, nil
	}

	branch, err := s.client.DefaultBranch(ctx, ref)
	if err != nil {
		return nil, err
	}

	files, err := s.client.Tree(ctx, ref, branch)
	if err != nil {
		return nil, err
	}

	// Pick the representative file per category up front, then fetch the
	// four candidates concurrently. Rule evaluation stays sequential so
	// the bundle is deterministic regardless of completion order.
	readmePath := findReadme(files)
	manifestPath := firstWithSuffix(files, "requirements.txt")
	modelPath := firstModelFile(files)
	entryPath := resolveEntryPoint(files)

	var readmeContent, manifestContent, modelContent, entryContent string

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	g.Go(func() error {
		if readmePath != "" {
			readmeContent, _ = s.client.FileContent(gctx, ref, readmePath)
		}
		return nil
	})
	g.Go(func() error {
		if manifestPath != "" {
			manifestContent, _ = s.client.FileContent(gctx, ref, manifestPath)
		}
		return nil
	})
	g.Go(func() error {
		if modelPath != "" {
			modelContent, _ = s.client.FileContent(gctx, ref, modelPath)
		}
		return nil
	})
	g.Go(func() error {
		if entryPath != "" {
			entryContent, _ = s.client.FileContent(gctx, ref, entryPath)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bundle := &ContextBundle{
		FileTree:       truncatePaths(files, maxTreePaths),
		TechStack:      detectStack(files),
		EntryPointName: entryPath,
		Evidence: Evidence{
			Features:       []string{},
			Entities:       []string{},
			ConfigEvidence: []string{},
		},
	}

	bundle.ReadmeContent = readmePlaceholder
	if readmeContent != "" {
		bundle.ReadmeContent = truncateRunes(readmeContent, maxReadmeChars)
	}

	collectPresenceEvidence(files, &bundle.Evidence)
	collectManifestEvidence(manifestPath, manifestContent, &bundle.Evidence)
	collectEntities(modelPath, modelContent, &bundle.Evidence)

	if entryContent != "" {
		bundle.EntryPointContent = truncateRunes(entryContent, maxEntryChars)
	}

	if err := s.cache.Set(cacheKey, bundle, database.CacheTTLScan); err != nil && err != database.ErrCacheUnavailable {
		log.Printf("scan cache write failed for %s: %v", ref, err)
	}

	return bundle, nil
}

// Shallow fetches the README without authentication and appends the file
// listing as extra context. Tree failures are absorbed: the README alone
// is still useful.
func (s *Scanner) Shallow(ctx context.Context, repoURL string) (string, error) {
	ref, err := github.ParseRepoURL(repoURL)
	if err != nil {
		return "", err
	}

	cacheKey := database.CacheKeyReadme + ref.String()
	var cached string
	if err := s.cache.Get(cacheKey, &cached); err == nil {
		return cached, nil
	}

	readme := s.client.Readme(ctx, ref)
	if readme == "" {
		readme = "Could not fetch README.md content."
	}

	result := strings.TrimSpace(readme)

	if branch, err := s.client.DefaultBranch(ctx, ref); err == nil {
		if files, err := s.client.Tree(ctx, ref, branch); err == nil && len(files) > 0 {
			listed := truncatePaths(files, maxShallowPaths)
			result += fmt.Sprintf("\n\n\n--- Repository Structure Context (%d files) ---\n%s",
				len(files), strings.Join(listed, "\n"))
		}
	}

	if err := s.cache.Set(cacheKey, result, database.CacheTTLReadme); err != nil && err != database.ErrCacheUnavailable {
		log.Printf("readme cache write failed for %s: %v", ref, err)
	}

	return result, nil
}

func truncatePaths(files []string, max int) []string {
	if len(files) > max {
		files = files[:max]
	}
	out := make([]string, len(files))
	copy(out, files)
	return out
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max])
	}
	return s
}
