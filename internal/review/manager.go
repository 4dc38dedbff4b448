// Package review hosts review sessions: one graded result set per session, kept in
// memory, backed by the store, and serialized per session.
package review

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/omrgrader/internal/grading"
	"github.com/pavelanni/omrgrader/internal/model"
	"github.com/pavelanni/omrgrader/internal/store"
)

// ErrSessionFinalized is returned when a finalized session is asked to change.
var ErrSessionFinalized = errors.New("session is finalized")

// CreateRequest is the input for a new review session.
type CreateRequest struct {
	Info      model.ExamInfo
	Alphabet  grading.Alphabet
	Key       []grading.KeyEntry
	Responses grading.Responses
}

// Manager owns the live result sets of all review sessions.
type Manager struct {
	store *store.Store
	cfg   model.ReviewConfig
	agg   *grading.Aggregator
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// entry guards one session. rs is nil until first loaded.
type entry struct {
	mu   sync.Mutex
	sess model.ReviewSession
	rs   *grading.ResultSet
}

// NewManager creates a Manager using the grade scale and target from cfg.
func NewManager(s *store.Store, cfg model.ReviewConfig) (*Manager, error) {
	agg, err := grading.NewAggregator(cfg.GradeScale, cfg.TargetPercent)
	if err != nil {
		return nil, fmt.Errorf("aggregator: %w", err)
	}
	if len(cfg.Alphabet) == 0 {
		cfg.Alphabet = grading.DefaultAlphabet
	}
	return &Manager{
		store:    s,
		cfg:      cfg,
		agg:      agg,
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*entry),
	}, nil
}

// Config returns the grading configuration.
func (m *Manager) Config() model.ReviewConfig {
	return m.cfg
}

// Create grades the responses and persists a new session. Nothing is stored when
// evaluation fails.
func (m *Manager) Create(req CreateRequest) (model.SessionView, error) {
	alphabet := req.Alphabet
	if len(alphabet) == 0 {
		alphabet = m.cfg.Alphabet
	}
	alphabet, err := grading.ParseAlphabet(strings.Join(alphabet.Strings(), ","))
	if err != nil {
		return model.SessionView{}, fmt.Errorf("alphabet: %w", err)
	}
	key, responses := normalize(req.Key, req.Responses)
	rs, err := grading.NewEvaluator(alphabet).Evaluate(responses, key)
	if err != nil {
		return model.SessionView{}, fmt.Errorf("evaluate: %w", err)
	}

	now := m.now()
	sess := model.ReviewSession{
		ID:        uuid.NewString(),
		Info:      req.Info,
		Alphabet:  alphabet.Strings(),
		Status:    model.StatusInReview,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.CreateSession(sess, key, responses); err != nil {
		return model.SessionView{}, fmt.Errorf("create session: %w", err)
	}

	m.mu.Lock()
	m.sessions[sess.ID] = &entry{sess: sess, rs: rs}
	m.mu.Unlock()

	slog.Info("review session created", "session_id", sess.ID, "questions", rs.Len())
	return model.SessionView{Session: sess, Summary: m.agg.Summarize(rs)}, nil
}

// normalize canonicalizes marks the way ParseAlphabet does, so a session reloaded from
// the store grades exactly as it did when created. Responses for questions absent from
// the key are dropped.
func normalize(key []grading.KeyEntry, responses grading.Responses) ([]grading.KeyEntry, grading.Responses) {
	outKey := make([]grading.KeyEntry, len(key))
	inKey := make(map[int]bool, len(key))
	for i, k := range key {
		k.CorrectOption = grading.ParseOption(string(k.CorrectOption))
		outKey[i] = k
		inKey[k.QuestionNumber] = true
	}
	outResponses := make(grading.Responses, len(responses))
	for q, sel := range responses {
		if inKey[q] {
			outResponses[q] = grading.ParseOption(string(sel))
		}
	}
	return outKey, outResponses
}

// lock returns the session's entry with its mutex held, loading it from the store on
// first use. The caller must unlock.
func (m *Manager) lock(id string) (*entry, error) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	if !ok {
		e = &entry{}
		m.sessions[id] = e
	}
	m.mu.Unlock()

	e.mu.Lock()
	if e.rs != nil {
		return e, nil
	}
	if err := m.load(e, id); err != nil {
		e.mu.Unlock()
		if errors.Is(err, store.ErrNotFound) {
			m.mu.Lock()
			if m.sessions[id] == e {
				delete(m.sessions, id)
			}
			m.mu.Unlock()
		}
		return nil, err
	}
	return e, nil
}

// load rebuilds the result set by re-evaluating the stored key against the stored
// current responses.
func (m *Manager) load(e *entry, id string) error {
	snap, err := m.store.LoadSnapshot(id)
	if err != nil {
		return err
	}
	alphabet, err := grading.ParseAlphabet(strings.Join(snap.Session.Alphabet, ","))
	if err != nil {
		return fmt.Errorf("session %s alphabet: %w", id, err)
	}
	rs, err := grading.NewEvaluator(alphabet).Evaluate(snap.Responses, snap.Key)
	if err != nil {
		return fmt.Errorf("rebuild session %s: %w", id, err)
	}
	e.sess = snap.Session
	e.rs = rs
	slog.Debug("review session loaded", "session_id", id, "questions", rs.Len())
	return nil
}

// Get returns a session with its current summary.
func (m *Manager) Get(id string) (model.SessionView, error) {
	e, err := m.lock(id)
	if err != nil {
		return model.SessionView{}, err
	}
	defer e.mu.Unlock()
	return model.SessionView{Session: e.sess, Summary: m.agg.Summarize(e.rs)}, nil
}

// List returns all stored sessions, newest first.
func (m *Manager) List() ([]model.ReviewSession, error) {
	return m.store.ListSessions()
}

// Answers returns the records matching q.
func (m *Manager) Answers(id string, q grading.Query) ([]grading.AnswerRecord, error) {
	e, err := m.lock(id)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	return q.Apply(e.rs), nil
}

// Summary summarizes the whole session.
func (m *Manager) Summary(id string) (grading.Summary, error) {
	e, err := m.lock(id)
	if err != nil {
		return grading.Summary{}, err
	}
	defer e.mu.Unlock()
	return m.agg.Summarize(e.rs), nil
}

// ScopedSummary summarizes only the records matching q.
func (m *Manager) ScopedSummary(id string, q grading.Query) (grading.Summary, error) {
	e, err := m.lock(id)
	if err != nil {
		return grading.Summary{}, err
	}
	defer e.mu.Unlock()
	return m.agg.SummarizeRecords(q.Apply(e.rs)), nil
}

// Snapshot is a consistent read of one session: all values come from the same
// pre- or post-override state.
type Snapshot struct {
	Session model.ReviewSession
	Summary grading.Summary
	Answers []grading.AnswerRecord
	Scoped  grading.Summary
}

// Query returns the session, its whole summary, the records matching q and their
// scoped summary under a single lock.
func (m *Manager) Query(id string, q grading.Query) (Snapshot, error) {
	e, err := m.lock(id)
	if err != nil {
		return Snapshot{}, err
	}
	defer e.mu.Unlock()
	answers := q.Apply(e.rs)
	return Snapshot{
		Session: e.sess,
		Summary: m.agg.Summarize(e.rs),
		Answers: answers,
		Scoped:  m.agg.SummarizeRecords(answers),
	}, nil
}

// Override replaces one mark, re-scores it and records the change in the audit log.
// When the store write fails the in-memory record is restored.
func (m *Manager) Override(id string, req model.OverrideRequest) (grading.AnswerRecord, error) {
	e, err := m.lock(id)
	if err != nil {
		return grading.AnswerRecord{}, err
	}
	defer e.mu.Unlock()

	if e.sess.Status == model.StatusFinalized {
		return grading.AnswerRecord{}, ErrSessionFinalized
	}
	req.Selection = grading.ParseOption(string(req.Selection))
	prev, _ := e.rs.Record(req.QuestionNumber)
	updated, err := e.rs.Override(req.QuestionNumber, req.Selection)
	if err != nil {
		return grading.AnswerRecord{}, err
	}

	ev := model.OverrideEvent{
		SessionID:      id,
		QuestionNumber: req.QuestionNumber,
		Previous:       prev.StudentAnswer,
		Selection:      req.Selection,
		Reviewer:       req.Reviewer,
		Comment:        req.Comment,
		At:             m.now(),
	}
	if _, err := m.store.RecordOverride(ev); err != nil {
		if _, rerr := e.rs.Override(req.QuestionNumber, prev.StudentAnswer); rerr != nil {
			slog.Error("revert override", "session_id", id, "question", req.QuestionNumber, "error", rerr)
		}
		return grading.AnswerRecord{}, fmt.Errorf("record override: %w", err)
	}
	e.sess.UpdatedAt = ev.At

	slog.Info("answer overridden",
		"session_id", id,
		"question", req.QuestionNumber,
		"previous", prev.StudentAnswer.String(),
		"selection", req.Selection.String(),
		"reviewer", req.Reviewer,
	)
	return updated, nil
}

// Overrides returns the audit log of a session.
func (m *Manager) Overrides(id string) ([]model.OverrideEvent, error) {
	e, err := m.lock(id)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	return m.store.ListOverrides(id)
}

// Finalize closes a session for further overrides.
func (m *Manager) Finalize(id string) (model.ReviewSession, error) {
	e, err := m.lock(id)
	if err != nil {
		return model.ReviewSession{}, err
	}
	defer e.mu.Unlock()

	if e.sess.Status == model.StatusFinalized {
		return e.sess, ErrSessionFinalized
	}
	if err := m.store.UpdateSessionStatus(id, model.StatusFinalized); err != nil {
		return model.ReviewSession{}, fmt.Errorf("finalize: %w", err)
	}
	sess, err := m.store.GetSession(id)
	if err != nil {
		return model.ReviewSession{}, err
	}
	e.sess = sess
	slog.Info("review session finalized", "session_id", id)
	return sess, nil
}

// Export bundles a session's records, summary and audit log.
func (m *Manager) Export(id string) (model.SessionExport, error) {
	e, err := m.lock(id)
	if err != nil {
		return model.SessionExport{}, err
	}
	defer e.mu.Unlock()

	overrides, err := m.store.ListOverrides(id)
	if err != nil {
		return model.SessionExport{}, err
	}
	return model.SessionExport{
		Session:       e.sess,
		GradeScale:    m.agg.Scale().String(),
		TargetPercent: m.agg.Target(),
		Summary:       m.agg.Summarize(e.rs),
		Answers:       e.rs.Records(),
		Overrides:     overrides,
		ExportedAt:    m.now(),
	}, nil
}

// ExportAll exports every stored session, newest first.
func (m *Manager) ExportAll() ([]model.SessionExport, error) {
	sessions, err := m.store.ListSessions()
	if err != nil {
		return nil, err
	}
	exports := make([]model.SessionExport, 0, len(sessions))
	for _, sess := range sessions {
		exp, err := m.Export(sess.ID)
		if err != nil {
			return nil, fmt.Errorf("export session %s: %w", sess.ID, err)
		}
		exports = append(exports, exp)
	}
	return exports, nil
}
