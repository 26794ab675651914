package climate

import (
	"fmt"
	"sort"
	"sync"
)

// Instance is one running thermostat pair: its aggregator, its command
// dispatcher and the teardown hook that detaches it from the entity bus and
// stops its event loop.
type Instance struct {
	ID         string
	Name       string
	Aggregator *Aggregator
	Dispatcher *Dispatcher
	Stop       func()
}

// Manager tracks the running pair instances. Registration and removal come
// from the pairing layer (create, delete, service restart); lookups come
// from the API layer on every state read and command.
type Manager struct {
	mu        sync.RWMutex
	instances map[string]*Instance
	logger    Logger
}

// NewManager creates an empty instance manager.
func NewManager() *Manager {
	return &Manager{
		instances: make(map[string]*Instance),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Register adds a running instance. Fails if the ID is already tracked.
func (m *Manager) Register(inst *Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.instances[inst.ID]; ok {
		return fmt.Errorf("%w: %s", ErrInstanceExists, inst.ID)
	}
	m.instances[inst.ID] = inst
	m.logger.Info("pair instance registered", "pair_id", inst.ID, "name", inst.Name)
	return nil
}

// Deregister stops and removes an instance.
func (m *Manager) Deregister(id string) error {
	m.mu.Lock()
	inst, ok := m.instances[id]
	if ok {
		delete(m.instances, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	if inst.Stop != nil {
		inst.Stop()
	}
	m.logger.Info("pair instance removed", "pair_id", id, "name", inst.Name)
	return nil
}

// Get returns the instance for a pair ID.
func (m *Manager) Get(id string) (*Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inst, ok := m.instances[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	return inst, nil
}

// List returns all instances sorted by name for stable API output.
func (m *Manager) List() []*Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// StopAll tears down every instance. Used during service shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	instances := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		instances = append(instances, inst)
	}
	m.instances = make(map[string]*Instance)
	m.mu.Unlock()

	for _, inst := range instances {
		if inst.Stop != nil {
			inst.Stop()
		}
	}
}
