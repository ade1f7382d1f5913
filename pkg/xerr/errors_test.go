package xerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	base := errors.New("dial tcp: connection refused")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: OK},
		{name: "plain", err: base, want: ServerCommonError},
		{name: "code", err: NewErrCode(Unauthorized), want: Unauthorized},
		{name: "wrapped", err: Wrap(base, StoreUnavailable, "registry"), want: StoreUnavailable},
		{name: "nested", err: fmt.Errorf("cycle: %w", Wrap(base, StoreUnavailable, "registry")), want: StoreUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}

	assert.ErrorIs(t, Wrap(base, StoreUnavailable, "registry"), base)
	assert.Nil(t, Wrap(nil, StoreUnavailable, "registry"))
	assert.Equal(t, "unauthorized", MapErrMsg(Unauthorized))
}
