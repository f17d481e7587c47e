package spec

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/spectrace/rule"
)

// DocKind tells the loader how to decode a fetched document body.
type DocKind string

// Document kinds returned by a RemoteLoader.
const (
	KindJSON DocKind = "json"
	KindText DocKind = "text"
)

// RemoteLoader fetches a spec document over a network transport. HTML pages
// are expected to arrive already converted to plain text or markdown.
type RemoteLoader interface {
	FetchDocument(ctx context.Context, url string) ([]byte, DocKind, error)
}

// Source names one spec and where its rule definitions live. Exactly one of
// RulesURL and RulesFile must be set.
type Source struct {
	// Name of the spec, for display.
	Name string
	// RulesURL points to a remote manifest or spec document.
	RulesURL string
	// RulesFile is a local path or doublestar glob, relative to BaseDir.
	RulesFile string
	// BaseDir anchors relative RulesFile paths (usually the config dir).
	BaseDir string
}

// Loader assembles rule manifests from local documents or remote sources.
type Loader struct {
	parser *Parser
	remote RemoteLoader
	logger *slog.Logger
}

// NewLoader creates a manifest loader. remote may be nil when only local
// sources are used; logger nil selects slog.Default().
func NewLoader(parser *Parser, remote RemoteLoader, logger *slog.Logger) *Loader {
	if parser == nil {
		parser = NewParser("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{parser: parser, remote: remote, logger: logger}
}

// LoadManifest loads all rule definitions for one spec source into a fresh
// manifest. Duplicate rule IDs are rejected, including across documents
// matched by the same glob.
func (l *Loader) LoadManifest(ctx context.Context, src Source) (*rule.Manifest, error) {
	switch {
	case src.RulesURL != "" && src.RulesFile != "":
		return nil, fmt.Errorf("spec %q has both rules_url and rules_file - specify only one", src.Name)
	case src.RulesURL == "" && src.RulesFile == "":
		return nil, fmt.Errorf("spec %q has neither rules_url nor rules_file - specify one", src.Name)
	case src.RulesURL != "":
		return l.loadRemote(ctx, src)
	default:
		return l.loadLocal(src)
	}
}

func (l *Loader) loadRemote(ctx context.Context, src Source) (*rule.Manifest, error) {
	if l.remote == nil {
		return nil, fmt.Errorf("spec %q: no remote loader configured for rules_url", src.Name)
	}

	l.logger.Debug("Fetching spec manifest", slog.String("spec", src.Name), slog.String("url", src.RulesURL))
	body, kind, err := l.remote.FetchDocument(ctx, src.RulesURL)
	if err != nil {
		return nil, fmt.Errorf("fetch spec manifest for %q: %w", src.Name, err)
	}

	defs, err := l.decode(src.RulesURL, kind, body)
	if err != nil {
		return nil, err
	}

	manifest := rule.NewManifest()
	if err := manifest.AddAll(defs); err != nil {
		return nil, err
	}
	return manifest, nil
}

func (l *Loader) loadLocal(src Source) (*rule.Manifest, error) {
	paths, err := l.resolveLocal(src)
	if err != nil {
		return nil, err
	}

	manifest := rule.NewManifest()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read spec document: %w", err)
		}

		kind := KindText
		if strings.HasSuffix(path, ".json") {
			kind = KindJSON
		}
		defs, err := l.decode(path, kind, data)
		if err != nil {
			return nil, err
		}
		if err := manifest.AddAll(defs); err != nil {
			return nil, err
		}
	}
	return manifest, nil
}

// resolveLocal expands RulesFile to concrete document paths. Plain paths are
// required to exist; glob patterns may match any number of documents.
func (l *Loader) resolveLocal(src Source) ([]string, error) {
	pattern := src.RulesFile
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(src.BaseDir, pattern)
	}

	if !strings.ContainsAny(pattern, "*?[{") {
		if _, err := os.Stat(pattern); err != nil {
			return nil, fmt.Errorf("spec %q: rules_file: %w", src.Name, err)
		}
		return []string{pattern}, nil
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("spec %q: rules_file glob: %w", src.Name, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("spec %q: rules_file glob %q matched no documents", src.Name, src.RulesFile)
	}
	sort.Strings(matches)
	return matches, nil
}

func (l *Loader) decode(source string, kind DocKind, body []byte) ([]rule.Definition, error) {
	if kind == KindJSON {
		return DecodeRulesJSON(source, body)
	}
	return l.parser.Parse(source, string(body))
}
