package commitmsg_test

import (
	"testing"

	"github.com/byte4ever/image_updater/gitops/commitmsg"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	t.Parallel()

	fields := commitmsg.Fields{
		Image:   "app",
		Version: "2.0",
		Path:    "deploy.yaml",
	}

	tests := []struct {
		name string
		tpl  string
		want string
	}{
		{
			name: "default template",
			tpl:  commitmsg.DefaultTemplate,
			want: "Image version updated to 2.0",
		},
		{
			name: "empty template falls back to default",
			tpl:  "",
			want: "Image version updated to 2.0",
		},
		{
			name: "all placeholders",
			tpl:  "chore({path}): bump {image} to {version}",
			want: "chore(deploy.yaml): bump app to 2.0",
		},
		{
			name: "unknown placeholder kept",
			tpl:  "{image} {ticket}",
			want: "app {ticket}",
		},
		{
			name: "no placeholders",
			tpl:  "bump",
			want: "bump",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(
				t, tt.want, commitmsg.Render(tt.tpl, fields),
			)
		})
	}
}
