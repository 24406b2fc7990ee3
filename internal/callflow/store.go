package callflow

import (
	"fmt"
	"strings"

	"github.com/flowpbx/ivrflow/internal/database/models"
)

// callFlowDataKey is the top-level metadata key under which every flow keeps
// its namespaced data on a contact.
const callFlowDataKey = "call_flow_data"

const (
	statusKey      = "status"
	auditKeyPrefix = "transitioned_to_"
	auditKeySuffix = "_by"
)

// StatusStore reads and writes flow-scoped string values on an external
// record. It has no logic of its own. Get reports a missing key as ("",
// false, nil) and a key holding something other than a string as an error.
type StatusStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

// ContactStore is a StatusStore over a contact's metadata. Values live at
// metadata["call_flow_data"][namespace][key] so several flows can share one
// contact without collisions. Writes only touch the in-memory contact; the
// caller persists the contact through its repository.
type ContactStore struct {
	contact   *models.Contact
	namespace string
}

// NewContactStore creates a StatusStore scoped to the given flow namespace.
func NewContactStore(contact *models.Contact, namespace string) *ContactStore {
	return &ContactStore{contact: contact, namespace: namespace}
}

// Get returns the value for key in this flow's namespace.
func (s *ContactStore) Get(key string) (string, bool, error) {
	data, err := s.flowData(false)
	if err != nil || data == nil {
		return "", false, err
	}
	v, ok := data[key]
	if !ok {
		return "", false, nil
	}
	str, ok := v.(string)
	if !ok {
		return "", false, fmt.Errorf("%w: %s.%s.%s holds %T", ErrUnknownState, callFlowDataKey, s.namespace, key, v)
	}
	return str, true, nil
}

// Set writes value for key in this flow's namespace, creating the namespace
// if needed. It refuses to replace a namespace that is not an object.
func (s *ContactStore) Set(key, value string) error {
	data, err := s.flowData(true)
	if err != nil {
		return err
	}
	data[key] = value
	return nil
}

// flowData returns the namespace map, optionally creating the intermediate
// maps. Values decoded from JSON arrive as map[string]any; anything else at
// either level is corrupt and reported as ErrUnknownState.
func (s *ContactStore) flowData(create bool) (map[string]any, error) {
	if s.contact.Metadata == nil {
		if !create {
			return nil, nil
		}
		s.contact.Metadata = make(map[string]any)
	}

	all, err := childMap(s.contact.Metadata, callFlowDataKey, create)
	if err != nil || all == nil {
		return nil, err
	}
	return childMap(all, s.namespace, create)
}

// childMap returns parent[key] as a map. A missing or null entry is created
// when create is set and reported as nil otherwise.
func childMap(parent map[string]any, key string, create bool) (map[string]any, error) {
	v, ok := parent[key]
	if !ok || v == nil {
		if !create {
			return nil, nil
		}
		m := make(map[string]any)
		parent[key] = m
		return m, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s holds %T, not an object", ErrUnknownState, key, v)
	}
	return m, nil
}

// Record is the typed view of a flow's persisted data.
type Record struct {
	Status     State            `json:"status"`
	AuditTrail map[State]string `json:"audit_trail"`
}

// auditKey returns the store key recording which event last entered state.
func auditKey(state State) string {
	return auditKeyPrefix + string(state) + auditKeySuffix
}

// ReadRecord decodes the typed record from a contact's flow namespace. An
// absent status decodes as the initial state; a status or namespace of the
// wrong type is ErrUnknownState.
func ReadRecord(contact *models.Contact, namespace string) (*Record, error) {
	store := NewContactStore(contact, namespace)

	raw, _, err := store.Get(statusKey)
	if err != nil {
		return nil, err
	}
	status, err := ParseState(raw)
	if err != nil {
		return nil, err
	}

	data, err := store.flowData(false)
	if err != nil {
		return nil, err
	}
	rec := &Record{Status: status, AuditTrail: make(map[State]string)}
	for key, v := range data {
		if !strings.HasPrefix(key, auditKeyPrefix) || !strings.HasSuffix(key, auditKeySuffix) {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(key, auditKeyPrefix), auditKeySuffix)
		st, err := ParseState(name)
		if err != nil || name == "" {
			continue
		}
		if id, ok := v.(string); ok {
			rec.AuditTrail[st] = id
		}
	}
	return rec, nil
}
