package assign

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edupath/coursesync/pkg/api"
)

func TestRegistry_BuiltinTypes(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"comments", "file", "onlinetext"}, r.Types())
}

func TestRegistry_UnknownTypeFallsBack(t *testing.T) {
	r := NewRegistry()

	h := r.Handler("hologram")
	assert.True(t, h.EnabledForEdit())
	assert.False(t, h.CanEditOffline(), "unknown plugins must block offline drafts")
}

func TestRegistry_CanEditOffline(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.CanEditOffline([]api.SubmissionPlugin{
		{Type: "onlinetext"},
		{Type: "comments"}, // display-only, never blocks
	}))
	assert.False(t, r.CanEditOffline([]api.SubmissionPlugin{
		{Type: "onlinetext"},
		{Type: "file"},
	}))
	assert.False(t, r.CanEditOffline([]api.SubmissionPlugin{
		{Type: "hologram"},
	}))
}

func TestRegistry_DraftData(t *testing.T) {
	r := NewRegistry()

	data := r.DraftData([]api.SubmissionPlugin{
		{Type: "onlinetext"},
		{Type: "comments"},
	}, map[string]string{"onlinetext": "hello"})

	assert.Equal(t, "hello", data["onlinetext_editor[text]"])
	assert.Equal(t, "1", data["onlinetext_editor[format]"])
}

func TestRegistry_UnsupportedTypes(t *testing.T) {
	r := NewRegistry()

	missing := r.UnsupportedTypes([]api.SubmissionPlugin{
		{Type: "onlinetext"},
		{Type: "hologram"},
	})
	assert.Equal(t, []string{"hologram"}, missing)
}

func TestRegistry_RegisterOverrides(t *testing.T) {
	r := NewRegistry()
	r.Register(offlineFilePlugin{})

	assert.True(t, r.CanEditOffline([]api.SubmissionPlugin{{Type: "file"}}))
}

// offlineFilePlugin is a file handler variant used to verify that
// registration replaces the built-in.
type offlineFilePlugin struct{ filePlugin }

func (offlineFilePlugin) CanEditOffline() bool { return true }
