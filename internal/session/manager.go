package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/yousuf/hookbridge/internal/config"
	"github.com/yousuf/hookbridge/internal/logging"
	"github.com/yousuf/hookbridge/internal/sandbox"
)

// Manager manages session contexts
type Manager struct {
	sessions map[string]*Context
	mu       sync.RWMutex
	config   *config.Config
	fs       *sandbox.FileSystem // shared by every session's extensions
}

// NewManager creates a new session manager. Mounts declared in cfg are
// created up front.
func NewManager(cfg *config.Config) (*Manager, error) {
	m := &Manager{
		sessions: make(map[string]*Context),
		config:   cfg,
	}

	if len(cfg.Mounts) > 0 {
		mounts := make([]sandbox.MountConfig, 0, len(cfg.Mounts))
		for _, mc := range cfg.Mounts {
			mounts = append(mounts, sandbox.MountConfig{
				Name:         mc.Name,
				Root:         mc.Root,
				ReadOnly:     mc.ReadOnly,
				MaxFileSize:  mc.MaxFileSize,
				MaxFiles:     mc.MaxFiles,
				MaxTotalSize: mc.MaxTotalSize,
			})
		}
		fs, err := sandbox.NewFileSystem(mounts)
		if err != nil {
			return nil, fmt.Errorf("failed to create mounts: %w", err)
		}
		m.fs = fs
	}

	return m, nil
}

// GetOrCreateSession gets an existing session or creates a new one
func (m *Manager) GetOrCreateSession(ctx context.Context, sessionID string) (*Context, error) {
	m.mu.RLock()
	session, exists := m.sessions[sessionID]
	m.mu.RUnlock()

	if exists {
		return session, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if session, exists := m.sessions[sessionID]; exists {
		return session, nil
	}

	session, err := NewContext(ctx, sessionID, m.config, m.fs)
	if err != nil {
		return nil, fmt.Errorf("failed to start session runtime: %w", err)
	}
	m.sessions[sessionID] = session

	logging.Logger().Info("session started", zap.String("session", sessionID))
	return session, nil
}

// GetSession retrieves an existing session
func (m *Manager) GetSession(sessionID string) *Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[sessionID]
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// DeleteSession removes a session and releases its runtime
func (m *Manager) DeleteSession(sessionID string) error {
	m.mu.Lock()
	session, exists := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("session %q not found", sessionID)
	}

	session.Close()
	logging.Logger().Info("session closed", zap.String("session", sessionID))
	return nil
}

// CloseAll closes all sessions
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Context)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}
