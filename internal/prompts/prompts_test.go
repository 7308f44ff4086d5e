package prompts

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func promptText(t *testing.T, r *mcp.GetPromptResult) string {
	t.Helper()
	if r == nil || len(r.Messages) == 0 {
		t.Fatal("empty prompt result")
	}
	tc, ok := r.Messages[0].Content.(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", r.Messages[0].Content)
	}
	return tc.Text
}

func TestStartPrompt(t *testing.T) {
	p := NewStartPrompt()
	def := p.Definition()
	if def.Name != "panda-start" || len(def.Arguments) != 2 {
		t.Errorf("definition = %+v", def)
	}

	tests := []struct {
		name string
		args map[string]string
		want []string
	}{
		{"defaults", nil, []string{"position=[" + DefaultTarget + "]", "Guided mode"}},
		{"custom target", map[string]string{"target": "0.3, 0.2, 0.5", "mode": "expert"}, []string{"position=[0.3, 0.2, 0.5]", "Expert mode"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mcp.GetPromptRequest{}
			req.Params.Arguments = tt.args
			r, err := p.Handle(context.Background(), req)
			if err != nil {
				t.Fatal(err)
			}
			text := promptText(t, r)
			for _, w := range append(tt.want, "kinematics_inverse", "kinematics_singularity", "workspace_calculate") {
				if !strings.Contains(text, w) {
					t.Errorf("prompt missing %q", w)
				}
			}
		})
	}
}

func TestProgressPrompt(t *testing.T) {
	p := NewProgressPrompt()
	if def := p.Definition(); def.Name != "panda-progress" {
		t.Errorf("name = %q", def.Name)
	}
	r, err := p.Handle(context.Background(), mcp.GetPromptRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if text := promptText(t, r); !strings.Contains(text, "achievements_progress") {
		t.Errorf("prompt = %q", text)
	}
}
