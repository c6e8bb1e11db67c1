// Command jn-plugin-git is the bundled protocol plugin for git-backed
// data sources (spec §4.2.2 rule 2's profile namespace and rule 3's URL
// scheme match): it clones a repository with go-git and emits one NDJSON
// record per commit reachable from HEAD, or — when a "path" parameter is
// given — one record per file entry under that path at HEAD. This
// mirrors the teacher's repo plugin (internal/plugins/repo), redirected
// from a declarative clone-or-update step to a read-only NDJSON source.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"encoding/json"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/jnpipe/jn/pkg/pluginsdk"
)

const defaultCommitLimit = 100

func main() {
	inv := pluginsdk.Parse(os.Args[1:])

	if inv.MetaRequested {
		if err := pluginsdk.EmitMetadata(os.Stdout, metadata()); err != nil {
			fmt.Fprintln(os.Stderr, "git: emit metadata:", err)
			os.Exit(1)
		}
		return
	}

	if inv.Mode != "read" {
		fmt.Fprintf(os.Stderr, "git: unsupported mode %q\n", inv.Mode)
		os.Exit(2)
	}

	if err := run(inv); err != nil {
		fmt.Fprintln(os.Stderr, "git:", err)
		os.Exit(1)
	}
}

// metadata declares git as a protocol plugin under the "git" namespace
// (so "@git/<repo>" profile addresses route here per spec §4.2.2 rule 2)
// and matching a "git+https://"/"git+ssh://"/"git://" scheme directly
// (rule 3). ManagesParameters is true because, like the teacher's repo
// plugin, this one owns its own clone options (branch, depth, path,
// limit) rather than having the resolver classify them.
func metadata() pluginsdk.Metadata {
	return pluginsdk.Metadata{
		Name:              "git",
		Version:           "1.0.0",
		Role:              "protocol",
		Modes:             []string{"read"},
		Matches:           []string{`^git\+https://`, `^git\+ssh://`, `^git://`},
		Namespace:         "git",
		ManagesParameters: true,
	}
}

func run(inv pluginsdk.Invocation) error {
	rawURL := inv.Config["url"]
	if rawURL == "" {
		return fmt.Errorf("missing required --url")
	}

	dir, err := os.MkdirTemp("", "jn-plugin-git-*")
	if err != nil {
		return fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	opts, err := cloneOptions(rawURL, inv.Config)
	if err != nil {
		return err
	}

	repo, err := git.PlainClone(dir, false, opts)
	if err != nil {
		return fmt.Errorf("clone %s: %w", opts.URL, err)
	}

	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("resolve HEAD: %w", err)
	}

	if path := inv.Config["path"]; path != "" {
		return emitTreeEntries(os.Stdout, repo, head.Hash(), path)
	}
	return emitCommits(os.Stdout, repo, head.Hash(), commitLimit(inv.Config))
}

// cloneOptions translates the plugin's own config keys into go-git clone
// options, stripping the "git+" address-scheme prefix down to the
// transport URL go-git actually expects.
func cloneOptions(rawURL string, config map[string]string) (*git.CloneOptions, error) {
	opts := &git.CloneOptions{URL: transportURL(rawURL), Depth: 1}

	if branch := config["branch"]; branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		opts.SingleBranch = true
	}
	if depth := config["depth"]; depth != "" {
		n, err := strconv.Atoi(depth)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid depth %q: must be a non-negative integer", depth)
		}
		opts.Depth = n
	}
	return opts, nil
}

func transportURL(raw string) string {
	if rest, ok := strings.CutPrefix(raw, "git+https://"); ok {
		return "https://" + rest
	}
	if rest, ok := strings.CutPrefix(raw, "git+ssh://"); ok {
		return "ssh://" + rest
	}
	return raw
}

func commitLimit(config map[string]string) int {
	if s := config["limit"]; s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return defaultCommitLimit
}

// emitCommits walks the commit log reachable from "from", newest first,
// and emits one NDJSON record per commit up to limit entries.
func emitCommits(w io.Writer, repo *git.Repository, from plumbing.Hash, limit int) error {
	iter, err := repo.Log(&git.LogOptions{From: from})
	if err != nil {
		return fmt.Errorf("walk commit log: %w", err)
	}
	defer iter.Close()

	enc := json.NewEncoder(w)
	count := 0
	err = iter.ForEach(func(c *object.Commit) error {
		if count >= limit {
			return storer.ErrStop
		}
		count++
		return enc.Encode(map[string]string{
			"hash":         c.Hash.String(),
			"author_name":  c.Author.Name,
			"author_email": c.Author.Email,
			"message":      strings.TrimSpace(c.Message),
			"when":         c.Author.When.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	})
	if err != nil {
		return fmt.Errorf("emit commits: %w", err)
	}
	return nil
}

// emitTreeEntries emits one NDJSON record per file entry under path in
// the tree at the given commit.
func emitTreeEntries(w io.Writer, repo *git.Repository, from plumbing.Hash, path string) error {
	commit, err := repo.CommitObject(from)
	if err != nil {
		return fmt.Errorf("resolve commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return fmt.Errorf("resolve tree: %w", err)
	}
	if path != "." {
		tree, err = tree.Tree(path)
		if err != nil {
			return fmt.Errorf("resolve path %q: %w", path, err)
		}
	}

	enc := json.NewEncoder(w)
	files := tree.Files()
	defer files.Close()
	return files.ForEach(func(f *object.File) error {
		return enc.Encode(map[string]any{
			"name": f.Name,
			"mode": f.Mode.String(),
			"hash": f.Hash.String(),
			"size": f.Size,
		})
	})
}
