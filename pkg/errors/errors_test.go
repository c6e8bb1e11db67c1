package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddressErrorWrapsUnderlying(t *testing.T) {
	t.Parallel()

	underlying := fmt.Errorf("unbalanced query string")
	err := NewAddressError("data.csv?a=", "a=", underlying)

	var addrErr *AddressError
	require.ErrorAs(t, err, &addrErr)
	require.Equal(t, "data.csv?a=", addrErr.Raw)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "data.csv?a=")

	var kinded Kinded
	require.ErrorAs(t, err, &kinded)
	require.Equal(t, KindInvalidAddress, kinded.Kind())
}

func TestConfigValueErrorReportsExpectedType(t *testing.T) {
	t.Parallel()

	err := NewConfigValueError("limit", "abc", "integer", nil)

	var cfgErr *ConfigValueError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "limit", cfgErr.Key)
	require.Contains(t, err.Error(), "integer")

	var kinded Kinded
	require.ErrorAs(t, err, &kinded)
	require.Equal(t, KindInvalidConfigValue, kinded.Kind())
}

func TestResolutionErrorKinds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want Kind
	}{
		{NewUnknownFormatError("data.weird"), KindUnknownFormat},
		{NewUnknownProfileError("weather"), KindUnknownProfile},
		{NewUnknownPluginError("csv"), KindUnknownPlugin},
		{NewModeUnsupportedError("csv", "write"), KindModeUnsupported},
	}

	for _, tc := range cases {
		var resErr *ResolutionError
		require.ErrorAs(t, tc.err, &resErr)
		require.Equal(t, tc.want, resErr.Kind())
	}
}

func TestPipelineErrorIncludesStderrTail(t *testing.T) {
	t.Parallel()

	err := NewPipelineError(0, "csv", 7, "boom")

	var pipeErr *PipelineError
	require.ErrorAs(t, err, &pipeErr)
	require.Equal(t, 7, pipeErr.ExitCode)
	require.Contains(t, err.Error(), "boom")
}

func TestExecAbortErrorDistinguishesTimeoutAndCancel(t *testing.T) {
	t.Parallel()

	timeout := NewTimeoutError(nil)
	cancelled := NewCancelledError(nil)

	var t1, t2 *ExecAbortError
	require.ErrorAs(t, timeout, &t1)
	require.ErrorAs(t, cancelled, &t2)
	require.Equal(t, KindTimeout, t1.Kind())
	require.Equal(t, KindCancelled, t2.Kind())
}

func TestInternalErrorWrapsInvariant(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("plan had zero stages")
	err := NewInternalError("plan.non_empty", underlying)

	var intErr *InternalError
	require.ErrorAs(t, err, &intErr)
	require.Equal(t, "plan.non_empty", intErr.Invariant)
	require.True(t, stdErrors.Is(err, underlying))
}
