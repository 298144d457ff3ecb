package executor

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"strings"
	"sync"

	"govnet/internal/governance/models"
	id "govnet/pkg/domain"
)

// ParameterStore is a governed key/value table: only governance calls may
// write it. It stands in for protocol parameters a governor administers.
type ParameterStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// SetParameter is the call payload understood by ParameterStore.
type SetParameter struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func NewParameterStore() *ParameterStore {
	return &ParameterStore{values: make(map[string]string)}
}

// SetParameterCall encodes a call that sets key=value on the store at target.
func SetParameterCall(target id.Address, key, value string) models.Call {
	data, _ := json.Marshal(SetParameter{Key: key, Value: value})
	return models.Call{Target: target, Data: data}
}

// Handle is the executor Handler for the store.
func (p *ParameterStore) Handle(_ context.Context, data []byte) error {
	var req SetParameter
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	key := strings.TrimSpace(req.Key)
	if key == "" {
		return errors.New("parameter key is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = req.Value
	return nil
}

func (p *ParameterStore) Get(key string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	return v, ok
}

func (p *ParameterStore) All() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return maps.Clone(p.values)
}
