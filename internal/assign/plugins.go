package assign

import (
	"sort"
	"sync"

	"github.com/edupath/coursesync/pkg/api"
)

// PluginHandler adapts one submission plugin type (online text, file
// uploads, comments) to the generic edit and sync flows. The plugin's Data
// map stays opaque; handlers only describe its capabilities and map a draft
// back into request plugin data.
type PluginHandler interface {
	// Type is the plugin type key as reported by the server.
	Type() string

	// EnabledForEdit reports whether the submission form edits this
	// plugin at all.
	EnabledForEdit() bool

	// CanEditOffline reports whether a draft of this plugin can be staged
	// locally. A submission is offline-editable only when every plugin in
	// it is.
	CanEditOffline() bool

	// DraftData maps the plugin's slice of a draft into the request
	// plugin-data keys the save endpoint expects.
	DraftData(plugin api.SubmissionPlugin, draft map[string]string) map[string]string
}

// Registry resolves submission plugin types to handlers. Unknown types fall
// back to a handler that blocks editing, so a submission carrying a plugin
// this client does not understand is never partially saved.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]PluginHandler
	fallback PluginHandler
}

// NewRegistry creates a registry with the built-in handlers registered.
func NewRegistry() *Registry {
	r := &Registry{
		handlers: make(map[string]PluginHandler),
		fallback: unsupportedPlugin{},
	}
	r.Register(onlineTextPlugin{})
	r.Register(filePlugin{})
	r.Register(commentsPlugin{})
	return r
}

// Register adds or replaces the handler for its plugin type.
func (r *Registry) Register(h PluginHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Type()] = h
}

// Handler returns the handler for a plugin type, falling back to the
// unsupported handler for unknown types.
func (r *Registry) Handler(pluginType string) PluginHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[pluginType]; ok {
		return h
	}
	return r.fallback
}

// Types returns the registered plugin types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// CanEditOffline reports whether every editable plugin of the submission
// supports offline drafts.
func (r *Registry) CanEditOffline(plugins []api.SubmissionPlugin) bool {
	for _, p := range plugins {
		h := r.Handler(p.Type)
		if h.EnabledForEdit() && !h.CanEditOffline() {
			return false
		}
	}
	return true
}

// DraftData flattens the drafts of every editable plugin into one request
// plugin-data map.
func (r *Registry) DraftData(plugins []api.SubmissionPlugin, draft map[string]string) map[string]string {
	data := make(map[string]string)
	for _, p := range plugins {
		h := r.Handler(p.Type)
		if !h.EnabledForEdit() {
			continue
		}
		for k, v := range h.DraftData(p, draft) {
			data[k] = v
		}
	}
	return data
}

// onlineTextPlugin handles typed rich-text submissions.
type onlineTextPlugin struct{}

func (onlineTextPlugin) Type() string         { return "onlinetext" }
func (onlineTextPlugin) EnabledForEdit() bool { return true }
func (onlineTextPlugin) CanEditOffline() bool { return true }

func (onlineTextPlugin) DraftData(_ api.SubmissionPlugin, draft map[string]string) map[string]string {
	return map[string]string{
		"onlinetext_editor[text]":   draft["onlinetext"],
		"onlinetext_editor[format]": "1",
	}
}

// filePlugin handles uploaded-file submissions. The files themselves are
// uploaded by the surrounding shell; the draft carries the item id of the
// prepared upload area.
type filePlugin struct{}

func (filePlugin) Type() string         { return "file" }
func (filePlugin) EnabledForEdit() bool { return true }
func (filePlugin) CanEditOffline() bool { return false }

func (filePlugin) DraftData(_ api.SubmissionPlugin, draft map[string]string) map[string]string {
	if itemID, ok := draft["files_itemid"]; ok {
		return map[string]string{"files_filemanager": itemID}
	}
	return nil
}

// commentsPlugin is display-only; comments live in their own endpoint.
type commentsPlugin struct{}

func (commentsPlugin) Type() string         { return "comments" }
func (commentsPlugin) EnabledForEdit() bool { return false }
func (commentsPlugin) CanEditOffline() bool { return false }

func (commentsPlugin) DraftData(api.SubmissionPlugin, map[string]string) map[string]string {
	return nil
}

// unsupportedPlugin blocks edits for plugin types this client does not
// recognize.
type unsupportedPlugin struct{}

func (unsupportedPlugin) Type() string         { return "" }
func (unsupportedPlugin) EnabledForEdit() bool { return true }
func (unsupportedPlugin) CanEditOffline() bool { return false }

func (unsupportedPlugin) DraftData(api.SubmissionPlugin, map[string]string) map[string]string {
	return nil
}

// UnsupportedTypes returns the plugin types in the submission that no
// registered handler covers, for surfacing in the edit form.
func (r *Registry) UnsupportedTypes(plugins []api.SubmissionPlugin) []string {
	var missing []string
	for _, p := range plugins {
		r.mu.RLock()
		_, ok := r.handlers[p.Type]
		r.mu.RUnlock()
		if !ok {
			missing = append(missing, p.Type)
		}
	}
	return missing
}
