package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
)

// CreateFamilies allows writes to the given column families and persists the list.
// Creating a family that already exists is not an error.
func (m *Manager) CreateFamilies(families ...string) error {
	if len(families) == 0 {
		return fmt.Errorf("at least one family is required")
	}
	for _, f := range families {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("family name must not be empty")
		}
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	updated := slices.Clone(m.allowedFamilies)
	for _, f := range families {
		if !slices.Contains(updated, f) {
			updated = append(updated, f)
		}
	}
	slices.Sort(updated)

	data, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("failed to marshal families: %w", err)
	}
	if err = os.WriteFile(m.familiesFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write families file: %w", err)
	}

	m.allowedFamilies = updated
	return nil
}

// Families returns the allowed column families in sorted order.
func (m *Manager) Families() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return slices.Clone(m.allowedFamilies)
}

// IsFamilyAllowed checks if a family is allowed in the current configuration.
func (m *Manager) IsFamilyAllowed(family string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return slices.Contains(m.allowedFamilies, family)
}

func (m *Manager) loadAllowedFamilies() error {
	data, err := os.ReadFile(m.familiesFile)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist yet, not an error
			return nil
		}
		return fmt.Errorf("failed to read allowed families file: %w", err)
	}

	return json.Unmarshal(data, &m.allowedFamilies)
}
