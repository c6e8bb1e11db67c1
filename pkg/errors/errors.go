// Package errors defines JN's error taxonomy (spec §7): typed, wrapped
// errors the CLI layer can distinguish with errors.As instead of string
// matching.
package errors

import "fmt"

// Kind identifies which branch of the taxonomy an error belongs to.
type Kind string

const (
	KindInvalidAddress     Kind = "invalid_address"
	KindInvalidConfigValue Kind = "invalid_config_value"
	KindUnknownFormat      Kind = "unknown_format"
	KindUnknownProfile     Kind = "unknown_profile"
	KindUnknownPlugin      Kind = "unknown_plugin"
	KindModeUnsupported    Kind = "mode_unsupported"
	KindPluginMetadata     Kind = "plugin_metadata_error"
	KindSpawnFailed        Kind = "spawn_failed"
	KindPipelineFailure    Kind = "pipeline_failure"
	KindTimeout            Kind = "timeout"
	KindCancelled          Kind = "cancelled"
	KindInternal           Kind = "internal_error"
)

// Kinded is implemented by every error in this taxonomy so callers can
// branch on Kind() without a type switch over every concrete type.
type Kinded interface {
	error
	Kind() Kind
}

// AddressError represents a syntactic failure parsing a raw address
// (§4.2.1, §4.2.6 InvalidAddress).
type AddressError struct {
	Raw     string
	Offense string
	Err     error
}

// NewAddressError constructs an AddressError carrying the offending substring.
func NewAddressError(raw, offense string, err error) error {
	return &AddressError{Raw: raw, Offense: offense, Err: err}
}

func (e *AddressError) Error() string {
	if e == nil {
		return ""
	}
	if e.Offense != "" {
		return fmt.Sprintf("invalid address %q: %s", e.Raw, e.Offense)
	}
	return fmt.Sprintf("invalid address %q", e.Raw)
}

func (e *AddressError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Kind reports KindInvalidAddress.
func (e *AddressError) Kind() Kind { return KindInvalidAddress }

// ConfigValueError represents a parameter value that failed type coercion
// (§4.2.6 — kept distinct from AddressError so the CLI can tell them apart).
type ConfigValueError struct {
	Key   string
	Value string
	Want  string
	Err   error
}

// NewConfigValueError constructs a ConfigValueError.
func NewConfigValueError(key, value, want string, err error) error {
	return &ConfigValueError{Key: key, Value: value, Want: want, Err: err}
}

func (e *ConfigValueError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("invalid value for %q: %q is not a valid %s", e.Key, e.Value, e.Want)
}

func (e *ConfigValueError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Kind reports KindInvalidConfigValue.
func (e *ConfigValueError) Kind() Kind { return KindInvalidConfigValue }

// ResolutionError covers UnknownFormat, UnknownProfile, UnknownPlugin and
// ModeUnsupported (§4.2.6) — all "the resolver found no usable candidate"
// failures, distinguished by their Kind.
type ResolutionError struct {
	ResolutionKind Kind
	Subject        string // base path, namespace, or plugin name
	Mode           string // populated for ModeUnsupported
	Err            error
}

func newResolutionError(kind Kind, subject, mode string, err error) error {
	return &ResolutionError{ResolutionKind: kind, Subject: subject, Mode: mode, Err: err}
}

// NewUnknownFormatError reports that no plugin matches a file-kind address.
func NewUnknownFormatError(basePath string) error {
	return newResolutionError(KindUnknownFormat, basePath, "", nil)
}

// NewUnknownProfileError reports that no plugin claims a requested namespace.
func NewUnknownProfileError(namespace string) error {
	return newResolutionError(KindUnknownProfile, namespace, "", nil)
}

// NewUnknownPluginError reports that an explicit plugin reference did not resolve.
func NewUnknownPluginError(name string) error {
	return newResolutionError(KindUnknownPlugin, name, "", nil)
}

// NewModeUnsupportedError reports that the best-matching plugin does not
// support the requested mode and no mode-aware fallback applied (§4.2.3).
func NewModeUnsupportedError(plugin, mode string) error {
	return newResolutionError(KindModeUnsupported, plugin, mode, nil)
}

func (e *ResolutionError) Error() string {
	if e == nil {
		return ""
	}
	switch e.ResolutionKind {
	case KindUnknownFormat:
		return fmt.Sprintf("no plugin matches format of %q", e.Subject)
	case KindUnknownProfile:
		return fmt.Sprintf("no plugin claims profile namespace %q", e.Subject)
	case KindUnknownPlugin:
		return fmt.Sprintf("no plugin named %q", e.Subject)
	case KindModeUnsupported:
		return fmt.Sprintf("plugin %q does not support mode %q", e.Subject, e.Mode)
	default:
		return fmt.Sprintf("resolution error: %s", e.Subject)
	}
}

func (e *ResolutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Kind reports the specific resolution failure kind.
func (e *ResolutionError) Kind() Kind { return e.ResolutionKind }

// PluginMetadataError represents missing, malformed, or inconsistent
// plugin metadata encountered during discovery (§4.1 Errors).
type PluginMetadataError struct {
	Path string
	Err  error
}

// NewPluginMetadataError constructs a PluginMetadataError.
func NewPluginMetadataError(path string, err error) error {
	return &PluginMetadataError{Path: path, Err: err}
}

func (e *PluginMetadataError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("plugin metadata error [%s]: %v", e.Path, e.Err)
}

func (e *PluginMetadataError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Kind reports KindPluginMetadata.
func (e *PluginMetadataError) Kind() Kind { return KindPluginMetadata }

// SpawnError represents an OS refusal to create a child process (§7).
type SpawnError struct {
	StageIndex int
	Argv       []string
	Err        error
}

// NewSpawnError constructs a SpawnError for the given stage.
func NewSpawnError(stageIndex int, argv []string, err error) error {
	return &SpawnError{StageIndex: stageIndex, Argv: argv, Err: err}
}

func (e *SpawnError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("spawn failed for stage %d (%v): %v", e.StageIndex, e.Argv, e.Err)
}

func (e *SpawnError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Kind reports KindSpawnFailed.
func (e *SpawnError) Kind() Kind { return KindSpawnFailed }

// PipelineError represents at least one stage exiting non-zero (§4.3.4);
// it carries the failing stage's buffered stderr tail per §7.
type PipelineError struct {
	StageIndex int
	PluginName string
	ExitCode   int
	StderrTail string
}

// NewPipelineError constructs a PipelineError.
func NewPipelineError(stageIndex int, pluginName string, exitCode int, stderrTail string) error {
	return &PipelineError{StageIndex: stageIndex, PluginName: pluginName, ExitCode: exitCode, StderrTail: stderrTail}
}

func (e *PipelineError) Error() string {
	if e == nil {
		return ""
	}
	if e.StderrTail != "" {
		return fmt.Sprintf("stage %d (%s) exited %d: %s", e.StageIndex, e.PluginName, e.ExitCode, e.StderrTail)
	}
	return fmt.Sprintf("stage %d (%s) exited %d", e.StageIndex, e.PluginName, e.ExitCode)
}

// Kind reports KindPipelineFailure.
func (e *PipelineError) Kind() Kind { return KindPipelineFailure }

// ExecAbortError represents the executor aborting a plan via timeout or
// user cancellation (§4.3.3, §4.3.4 rule 4) — distinguished from a plugin
// exit code by its ExecKind.
type ExecAbortError struct {
	ExecKind Kind // KindTimeout or KindCancelled
	Err      error
}

// NewTimeoutError reports that the plan's wall-clock deadline expired.
func NewTimeoutError(err error) error {
	return &ExecAbortError{ExecKind: KindTimeout, Err: err}
}

// NewCancelledError reports that the user cancelled the plan (SIGINT/SIGTERM).
func NewCancelledError(err error) error {
	return &ExecAbortError{ExecKind: KindCancelled, Err: err}
}

func (e *ExecAbortError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.ExecKind, e.Err)
	}
	return string(e.ExecKind)
}

func (e *ExecAbortError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Kind reports KindTimeout or KindCancelled.
func (e *ExecAbortError) Kind() Kind { return e.ExecKind }

// InternalError represents an invariant violation that should never occur
// in correct operation (§7).
type InternalError struct {
	Invariant string
	Err       error
}

// NewInternalError constructs an InternalError.
func NewInternalError(invariant string, err error) error {
	return &InternalError{Invariant: invariant, Err: err}
}

func (e *InternalError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("internal error (%s): %v", e.Invariant, e.Err)
}

func (e *InternalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Kind reports KindInternal.
func (e *InternalError) Kind() Kind { return KindInternal }
