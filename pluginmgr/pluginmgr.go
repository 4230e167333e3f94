// Package pluginmgr implements pion's plugin manager (spec §4.7):
// loading a WebService implementation out of a separately compiled
// shared object and wiring its create/destroy symbols. Go's stdlib
// plugin package is the only mechanism the runtime offers for this;
// no example repo in the retrieval pack loads plugins, so the ABI
// convention (create_<Name>/destroy_<Name> symbol names) is carried
// over from the specification directly rather than from a teacher
// file.
package pluginmgr

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"sync"

	"github.com/avgx/pion/httpmsg"
	"github.com/avgx/pion/pionerr"
	"github.com/avgx/pion/tcp"
)

// Extensions lists the shared-object suffixes load searches, in
// platform order (spec §4.7: ".so", ".dll", ".dylib").
var Extensions = []string{".so", ".dll", ".dylib"}

// WebService is the ABI a plugin-provided service instance must
// satisfy; it is structurally identical to httpserver.WebService, so
// a loaded instance can be handed to httpserver.Server.AddService
// directly.
type WebService interface {
	Handle(req *httpmsg.Request, conn *tcp.Connection) bool
}

// CreateFunc is the symbol signature a plugin exports as
// "create_<Name>": invoked with no arguments, returns a live instance.
type CreateFunc func() WebService

// DestroyFunc is the symbol signature a plugin exports as
// "destroy_<Name>": invoked with the instance create produced.
type DestroyFunc func(WebService)

type entry struct {
	handle   *plugin.Plugin
	path     string
	destroy  DestroyFunc
	instance WebService
}

// Manager maps plugin_id -> (handle, destroy_fn, instance); the create
// function is only called once, during Load, and is not kept.
type Manager struct {
	mu         sync.Mutex
	searchPath []string
	plugins    map[string]*entry
}

// New constructs an empty Manager.
func New() *Manager {
	return &Manager{plugins: make(map[string]*entry)}
}

// AddSearchPath appends dir to the path list load() consults when
// name is not already an absolute or relative path that exists.
func (m *Manager) AddSearchPath(dir string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchPath = append(m.searchPath, dir)
}

// resolve tries name verbatim, then name+extension in each search
// directory, for each of Extensions.
func (m *Manager) resolve(name string) (string, error) {
	candidates := []string{name}
	for _, dir := range m.searchPath {
		for _, ext := range Extensions {
			candidates = append(candidates, filepath.Join(dir, name+ext))
		}
	}
	for _, c := range candidates {
		if p, err := filepath.Abs(c); err == nil {
			if _, statErr := os.Stat(p); statErr == nil {
				return p, nil
			}
		}
	}
	return "", pionerr.PluginError("not found", nil)
}

// Load resolves name to a shared object, opens it, resolves
// create_<name>/destroy_<name>, invokes create, and records the
// result under id. A duplicate id is rejected (spec §4.7:
// DuplicatePlugin).
func (m *Manager) Load(id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.plugins[id]; exists {
		return pionerr.PluginError("duplicate", fmt.Errorf("plugin id %q already loaded", id))
	}

	path, err := m.resolve(name)
	if err != nil {
		return err
	}

	handle, err := plugin.Open(path)
	if err != nil {
		return pionerr.PluginError("open", err)
	}

	createSym, err := handle.Lookup("create_" + name)
	if err != nil {
		return pionerr.PluginError("symbol", err)
	}
	create, ok := createSym.(CreateFunc)
	if !ok {
		if fn, ok2 := createSym.(func() WebService); ok2 {
			create = fn
		} else {
			return pionerr.PluginError("symbol", fmt.Errorf("create_%s has the wrong signature", name))
		}
	}

	destroySym, err := handle.Lookup("destroy_" + name)
	if err != nil {
		return pionerr.PluginError("symbol", err)
	}
	destroy, ok := destroySym.(DestroyFunc)
	if !ok {
		if fn, ok2 := destroySym.(func(WebService)); ok2 {
			destroy = fn
		} else {
			return pionerr.PluginError("symbol", fmt.Errorf("destroy_%s has the wrong signature", name))
		}
	}

	instance := create()
	m.plugins[id] = &entry{handle: handle, path: path, destroy: destroy, instance: instance}
	return nil
}

// Instance returns the loaded instance for id.
func (m *Manager) Instance(id string) (WebService, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.plugins[id]
	if !ok {
		return nil, false
	}
	return e.instance, true
}

// Remove calls destroy on id's instance and drops it from the table.
// Go's runtime cannot unload a loaded shared object once opened, so
// unlike the native implementation this cannot reclaim the handle
// itself, only the instance and bookkeeping; a PluginNotFound error
// is returned for an unknown id (spec §4.7).
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.plugins[id]
	if !ok {
		return pionerr.PluginError("not found", fmt.Errorf("plugin id %q not loaded", id))
	}
	if e.destroy != nil {
		e.destroy(e.instance)
	}
	delete(m.plugins, id)
	return nil
}

// Clear removes every loaded plugin, destroying each instance first.
func (m *Manager) Clear() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.plugins))
	for id := range m.plugins {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	for _, id := range ids {
		_ = m.Remove(id)
	}
}

// Count reports the number of currently loaded plugins.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.plugins)
}
