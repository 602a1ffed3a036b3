package api

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFontsResponse_MarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp FontsResponse
		want string
	}{
		{name: "fonts", resp: FontsResult([]string{"arial"}), want: `{"ok":true,"fontFamilies":["arial"]}`},
		{name: "no fonts", resp: FontsResult(nil), want: `{"ok":true,"fontFamilies":[]}`},
		{name: "zero value success", resp: FontsResponse{OK: true}, want: `{"ok":true,"fontFamilies":[]}`},
		{name: "failure", resp: FontsFailure(errors.New("browser unavailable")), want: `{"ok":false,"reason":"browser unavailable"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := json.Marshal(tc.resp)
			require.NoError(t, err)
			require.JSONEq(t, tc.want, string(got))
		})
	}
}
