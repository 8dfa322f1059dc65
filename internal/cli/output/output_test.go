package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_EffectiveMode(t *testing.T) {
	tests := []struct {
		mode Mode
		want Mode
	}{
		{mode: "", want: ModeText},
		{mode: ModeAuto, want: ModeText},
		{mode: ModeText, want: ModeText},
		{mode: ModeJSON, want: ModeJSON},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			r := NewRendererWithTTY(&bytes.Buffer{}, &bytes.Buffer{}, false, tt.mode)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestRenderer_PlainWhenNotTTY(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewRendererWithTTY(out, &bytes.Buffer{}, false, ModeText)

	assert.Equal(t, "Success", r.Status("success"))
	assert.Equal(t, "Skipped", r.Status("skipped"))
	r.Header(1, "Plan")
	assert.Equal(t, "Plan\n", out.String())
}

func TestRenderer_Table(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewRendererWithTTY(out, &bytes.Buffer{}, false, ModeText)

	r.Table([]string{"node", "status"}, [][]string{{"public.orders", "success"}})
	assert.Contains(t, out.String(), "NODE")
	assert.Contains(t, out.String(), "public.orders")
}

func TestRenderer_JSON(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewRendererWithTTY(out, &bytes.Buffer{}, false, ModeJSON)

	require.NoError(t, r.JSON(DAGOutput{Levels: []DAGLevel{{Level: 0, Nodes: []string{"public.orders"}}}, TotalNodes: 1}))

	var got DAGOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 1, got.TotalNodes)
	assert.Equal(t, []string{"public.orders"}, got.Levels[0].Nodes)
}

func TestRenderer_Warning(t *testing.T) {
	errOut := &bytes.Buffer{}
	r := NewRendererWithTTY(&bytes.Buffer{}, errOut, false, ModeText)

	r.Warning("relation changed")
	assert.Equal(t, "warning: relation changed\n", errOut.String())
}
