package cycle

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DeviceState carries the counters that survive deep-sleep resets. On the
// MCU this lives in RTC retained memory; here it is an explicit value with a
// load-at-boot / save-before-sleep boundary so the core stays testable with
// an in-memory stand-in.
type DeviceState struct {
	BootCount   uint32 `yaml:"boot_count"`
	TxFailCount uint32 `yaml:"tx_fail_count"`
}

// StateStore abstracts the retained-memory mechanism.
type StateStore interface {
	Load() (DeviceState, error)
	Save(DeviceState) error
}

// FileStore persists state to a YAML file. The write is synced and renamed
// into place so the counters cannot be lost to the power transition that
// follows immediately after.
type FileStore struct {
	Path string
}

func (f *FileStore) Load() (DeviceState, error) {
	var st DeviceState
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			// First boot after full power loss: counters start at zero.
			return st, nil
		}
		return st, fmt.Errorf("failed to read state file: %w", err)
	}
	if err := yaml.Unmarshal(data, &st); err != nil {
		return DeviceState{}, fmt.Errorf("failed to parse state file: %w", err)
	}
	return st, nil
}

func (f *FileStore) Save(st DeviceState) error {
	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".wx-state-*")
	if err != nil {
		return fmt.Errorf("failed to create state temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// MemStore is the in-memory retained-memory stand-in for tests and bench
// simulation.
type MemStore struct {
	State DeviceState
}

func (m *MemStore) Load() (DeviceState, error) { return m.State, nil }

func (m *MemStore) Save(st DeviceState) error {
	m.State = st
	return nil
}
