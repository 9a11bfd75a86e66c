package store

import (
	"sort"
	"sync"

	"github.com/jrdesigniub9/novoitm2/internal/models"
)

// InMemoryStore keeps all collections in process memory. It is used when no
// database DSN is configured, and by tests.
type InMemoryStore struct {
	mu         sync.RWMutex
	flows      []models.Flow
	executions []models.FlowExecution
	sessions   []models.ConversationSession
	responses  []models.AIResponseRecord
	settings   *models.AISettings
	instances  []models.Instance
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) AddFlow(f models.Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows = append(s.flows, f)
	return nil
}

func (s *InMemoryStore) GetFlows() ([]models.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Flow, len(s.flows))
	copy(out, s.flows)
	return out, nil
}

func (s *InMemoryStore) GetFlow(id string) (*models.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.flows {
		if s.flows[i].ID == id {
			f := s.flows[i]
			return &f, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) SaveFlow(f models.Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.flows {
		if s.flows[i].ID == f.ID {
			s.flows[i] = f
			return nil
		}
	}
	s.flows = append(s.flows, f)
	return nil
}

func (s *InMemoryStore) DeleteFlow(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.flows {
		if s.flows[i].ID == id {
			s.flows = append(s.flows[:i], s.flows[i+1:]...)
			return nil
		}
	}
	return models.ErrFlowNotFound
}

func (s *InMemoryStore) AddExecution(e models.FlowExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions = append(s.executions, e)
	return nil
}

func (s *InMemoryStore) GetExecutions(flowID string) ([]models.FlowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.FlowExecution
	for _, e := range s.executions {
		if flowID == "" || e.FlowID == flowID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) GetExecution(id string) (*models.FlowExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.executions {
		if s.executions[i].ID == id {
			e := s.executions[i]
			return &e, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) GetSession(instanceID, contactID string) (*models.ConversationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.sessions {
		sess := s.sessions[i]
		if sess.InstanceID == instanceID && sess.ContactID == contactID && sess.IsActive {
			return &sess, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) SaveSession(sess models.ConversationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sessions {
		if s.sessions[i].ID == sess.ID {
			s.sessions[i] = sess
			return nil
		}
	}
	s.sessions = append(s.sessions, sess)
	return nil
}

func (s *InMemoryStore) GetSessions() ([]models.ConversationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ConversationSession, len(s.sessions))
	copy(out, s.sessions)
	return out, nil
}

func (s *InMemoryStore) AddAIResponse(r models.AIResponseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, r)
	return nil
}

func (s *InMemoryStore) GetAIResponses(limit int) ([]models.AIResponseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AIResponseRecord, len(s.responses))
	copy(out, s.responses)
	// Newest first, matching the SQL backends.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) GetAISettings() (*models.AISettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings == nil {
		return nil, nil
	}
	cfg := *s.settings
	return &cfg, nil
}

func (s *InMemoryStore) SaveAISettings(cfg models.AISettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = &cfg
	return nil
}

func (s *InMemoryStore) AddInstance(i models.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances = append(s.instances, i)
	return nil
}

func (s *InMemoryStore) GetInstances() ([]models.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Instance, len(s.instances))
	copy(out, s.instances)
	return out, nil
}

func (s *InMemoryStore) GetInstanceByName(name string) (*models.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.instances {
		if s.instances[i].InstanceName == name {
			inst := s.instances[i]
			return &inst, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) SaveInstance(inst models.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.instances {
		if s.instances[i].ID == inst.ID {
			s.instances[i] = inst
			return nil
		}
	}
	s.instances = append(s.instances, inst)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
