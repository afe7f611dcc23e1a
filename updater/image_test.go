package updater_test

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/byte4ever/image_updater/updater"
)

func TestSplitImage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ref      string
		wantName string
		wantTag  string
		wantOK   bool
	}{
		{ref: "app:1.0", wantName: "app", wantTag: "1.0", wantOK: true},
		{
			ref:      "registry:5000/app:1.0",
			wantName: "registry:5000/app",
			wantTag:  "1.0",
			wantOK:   true,
		},
		{ref: "registry:5000/app", wantName: "registry", wantTag: "5000/app", wantOK: true},
		{ref: "app:tag:", wantName: "app", wantTag: "tag:", wantOK: true},
		{ref: "app", wantOK: false},
		{ref: ":1.0", wantOK: false},
		{ref: "app:", wantOK: false},
		{ref: ":", wantOK: false},
		{ref: "", wantOK: false},
		{ref: "a:b\nc", wantName: "a", wantTag: "b", wantOK: true},
		{ref: "a:b\nc:d", wantName: "a", wantTag: "b", wantOK: true},
		{ref: "a\nb:c", wantOK: false},
		{ref: "a:\nb", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			t.Parallel()

			name, tag, ok := updater.SplitImage(tt.ref)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantTag, tag)
		})
	}
}

func TestRewriteContainers(t *testing.T) {
	t.Parallel()

	containers := []interface{}{
		map[string]interface{}{"name": "a", "image": "app:1.0"},
		map[string]interface{}{"name": "b", "image": "sidecar:3"},
		map[string]interface{}{"name": "c", "image": "app:2.0"},
		map[string]interface{}{"name": "d"},
		map[string]interface{}{"name": "e", "image": "app"},
		map[string]interface{}{"name": "f", "image": 42},
		"not a container",
		map[string]interface{}{"name": "g", "image": "registry:5000/app:1.0"},
	}

	got := updater.RewriteContainers(
		slog.New(slog.DiscardHandler),
		containers,
		updater.Request{Image: "app", Version: "2.0"},
	)

	assert.Equal(t, 2, got)
	assert.Equal(t, []interface{}{
		map[string]interface{}{"name": "a", "image": "app:2.0"},
		map[string]interface{}{"name": "b", "image": "sidecar:3"},
		map[string]interface{}{"name": "c", "image": "app:2.0"},
		map[string]interface{}{"name": "d"},
		map[string]interface{}{"name": "e", "image": "app"},
		map[string]interface{}{"name": "f", "image": 42},
		"not a container",
		map[string]interface{}{"name": "g", "image": "registry:5000/app:1.0"},
	}, containers)
}

func TestRewriteContainers_fully_qualified_name(t *testing.T) {
	t.Parallel()

	containers := []interface{}{
		map[string]interface{}{"image": "registry:5000/app:1.0"},
	}

	got := updater.RewriteContainers(
		slog.New(slog.DiscardHandler),
		containers,
		updater.Request{Image: "registry:5000/app", Version: "2.0"},
	)

	assert.Equal(t, 1, got)
	assert.Equal(
		t,
		"registry:5000/app:2.0",
		containers[0].(map[string]interface{})["image"],
	)
}

func FuzzSplitImage(f *testing.F) {
	f.Add("app:1.0")
	f.Add("registry:5000/app:1.0")
	f.Add("::")
	f.Add("app:1.0\nother:2.0")

	f.Fuzz(func(t *testing.T, ref string) {
		name, tag, ok := updater.SplitImage(ref)
		if !ok {
			return
		}

		assert.NotEmpty(t, name)
		assert.NotEmpty(t, tag)
		assert.NotContains(t, name+tag, "\n")
		assert.True(t, strings.HasPrefix(ref, name+":"+tag))
	})
}
