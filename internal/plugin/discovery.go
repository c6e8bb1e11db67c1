package plugin

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	jnerrors "github.com/jnpipe/jn/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Discovery tunables (spec §4.1).
const (
	DefaultMetaTimeout    = 5 * time.Second
	DefaultMetaMaxBytes   = 1 << 20 // 1 MiB
	DefaultHeaderMaxBytes = 64 << 10 // 64 KiB
)

var reservedNames = map[string]struct{}{
	"__pycache__": {},
	"node_modules": {},
	".git":        {},
}

var reservedSuffixes = []string{".pyc", ".pyo", ".o", ".class"}

// scriptExtensions lists the recognized interpreter-script extensions,
// each paired with its interpreter's name. Discovery only checks whether an
// extension is present here; the interpreter names are not used when a
// stage's argv is built, so a script plugin is spawned through its own path
// exactly like a binary one.
var scriptExtensions = map[string]string{
	".py": "python3",
	".rb": "ruby",
	".sh": "sh",
	".pl": "perl",
}

// headerStart and headerEnd delimit the declarative metadata block inside
// a script plugin's source (spec §4.1 step 2(ii), "a framed region such as
// lines between two fixed sentinels").
const (
	headerStart = "#--- jn:meta ---"
	headerEnd   = "#--- jn:end ---"
)

// Advisory is a non-fatal event surfaced during discovery (spec §4.1
// "Errors", §7 propagation policy): a duplicate-name tiebreak,
// a skipped unreadable directory, or a demoted PluginMetadataError.
type Advisory struct {
	Code   string
	Plugin string
	Detail string
}

// Scanner performs discovery (spec §4.1). It is stateless and safe to
// reuse across calls to Build.
type Scanner struct {
	MetaTimeout    time.Duration
	MetaMaxBytes   int64
	HeaderMaxBytes int64
	Runner         func(ctx context.Context, path string, args ...string) ([]byte, error)
}

// NewScanner builds a Scanner with spec-mandated defaults.
func NewScanner() *Scanner {
	return &Scanner{
		MetaTimeout:    DefaultMetaTimeout,
		MetaMaxBytes:   DefaultMetaMaxBytes,
		HeaderMaxBytes: DefaultHeaderMaxBytes,
	}
}

func (s *Scanner) runner() func(ctx context.Context, path string, args ...string) ([]byte, error) {
	if s.Runner != nil {
		return s.Runner
	}
	return runMeta
}

// runMeta spawns the plugin with the given args and reads up to
// DefaultMetaMaxBytes from stdout (spec §4.1 step 2(i)); the Scanner's
// MetaMaxBytes field is not consulted here.
func runMeta(ctx context.Context, path string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	data, readErr := io.ReadAll(io.LimitReader(stdout, DefaultMetaMaxBytes))
	waitErr := cmd.Wait()
	if readErr != nil {
		return nil, readErr
	}
	if waitErr != nil {
		return nil, waitErr
	}
	return data, nil
}

// candidate is one directory entry considered during discovery.
type candidate struct {
	path     string
	name     string
	isBinary bool
}

// listCandidates lists the plugin candidates in a single search directory,
// sorted by file name. It does not itself build descriptors; Build and
// Stamp call it once per search directory.
func (s *Scanner) listCandidates(dir string) ([]candidate, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if isReserved(e.Name()) {
			continue
		}

		full := filepath.Join(dir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}

		ext := filepath.Ext(e.Name())
		_, isScript := scriptExtensions[ext]
		isBinary := !isScript && (info.Mode()&0111 != 0)
		if !isBinary && !isScript {
			continue
		}

		out = append(out, candidate{path: full, name: e.Name(), isBinary: isBinary})
	}
	return out, nil
}

// isReserved reports whether a file name matches the reserved
// prefix/suffix set, using path-component comparison rather than
// substring tests (spec §4.1 step 1).
func isReserved(name string) bool {
	if _, ok := reservedNames[name]; ok {
		return true
	}
	for _, suf := range reservedSuffixes {
		if strings.HasSuffix(name, suf) {
			return true
		}
	}
	return false
}

// describe extracts a Descriptor from one candidate (spec §4.1 step 2).
func (s *Scanner) describe(ctx context.Context, c candidate, layer int) (*Descriptor, error) {
	if c.isBinary {
		return s.describeBinary(ctx, c, layer)
	}
	return s.describeScript(c, layer)
}

func (s *Scanner) describeBinary(ctx context.Context, c candidate, layer int) (*Descriptor, error) {
	timeout := s.MetaTimeout
	if timeout <= 0 {
		timeout = DefaultMetaTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := s.runner()(callCtx, c.path, MetaFlag)
	if err != nil {
		return nil, jnerrors.NewPluginMetadataError(c.path, err)
	}

	meta, err := ParseMetadataJSON(data)
	if err != nil {
		return nil, jnerrors.NewPluginMetadataError(c.path, err)
	}
	if meta.Name == "" || meta.Role == "" || len(meta.Modes) == 0 {
		return nil, jnerrors.NewPluginMetadataError(c.path, errMissingRequiredField)
	}

	return toDescriptor(meta, c.path, layer, true), nil
}

func (s *Scanner) describeScript(c candidate, layer int) (*Descriptor, error) {
	maxBytes := s.HeaderMaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultHeaderMaxBytes
	}

	f, err := os.Open(c.path)
	if err != nil {
		return nil, jnerrors.NewPluginMetadataError(c.path, err)
	}
	defer f.Close()

	prefix, err := io.ReadAll(io.LimitReader(f, maxBytes))
	if err != nil {
		return nil, jnerrors.NewPluginMetadataError(c.path, err)
	}

	header, ok := extractHeader(prefix)
	if !ok {
		return nil, jnerrors.NewPluginMetadataError(c.path, errNoHeaderBlock)
	}

	var fields map[string]interface{}
	if err := yaml.Unmarshal(header, &fields); err != nil {
		return nil, jnerrors.NewPluginMetadataError(c.path, err)
	}

	meta := metadataFromFields(fields)
	if meta.Name == "" || meta.Role == "" || len(meta.Modes) == 0 {
		return nil, jnerrors.NewPluginMetadataError(c.path, errMissingRequiredField)
	}

	return toDescriptor(meta, c.path, layer, false), nil
}

// extractHeader locates the header block between the sentinel lines and
// returns its raw YAML content.
func extractHeader(prefix []byte) ([]byte, bool) {
	start := bytes.Index(prefix, []byte(headerStart))
	if start < 0 {
		return nil, false
	}
	start += len(headerStart)
	end := bytes.Index(prefix[start:], []byte(headerEnd))
	if end < 0 {
		return nil, false
	}
	return prefix[start : start+end], true
}

// metadataFromFields converts the loosely-typed YAML map into MetadataJSON.
// Unknown keys are preserved in the map but simply never read — "unused"
// per spec §4.1 step 2(ii).
func metadataFromFields(fields map[string]interface{}) MetadataJSON {
	m := MetadataJSON{}
	if v, ok := fields["name"].(string); ok {
		m.Name = v
	}
	if v, ok := fields["version"].(string); ok {
		m.Version = v
	}
	if v, ok := fields["role"].(string); ok {
		m.Role = v
	}
	if v, ok := fields["namespace"].(string); ok {
		m.Namespace = v
	}
	if v, ok := fields["manages_parameters"].(bool); ok {
		m.ManagesParameters = v
	}
	if v, ok := fields["supports_container"].(bool); ok {
		m.SupportsContainer = v
	}
	m.Modes = stringList(fields["modes"])
	m.Matches = stringList(fields["matches"])
	m.ConfigParams = stringList(fields["config_params"])
	return m
}

func stringList(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

var (
	errMissingRequiredField = pluginErr("metadata missing a required field (name, role, or modes)")
	errNoHeaderBlock        = pluginErr("no declarative metadata header block found")
)

type pluginErrString string

func (e pluginErrString) Error() string { return string(e) }

func pluginErr(s string) error { return pluginErrString(s) }
