// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session owns the per-conversation ConversationSession record: an
// in-memory, mutex-protected store keyed by session ID, plus a Sweeper that
// evicts sessions idle past a configured timeout. Every store method
// serializes access to the whole map behind one lock, mirroring the
// single-owner discipline the guardrail's RateLimiter uses for its own
// per-key state.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aleutian/vehiclesearch/apperrors"
	"github.com/aleutian/vehiclesearch/domain"
)

// Store holds every active ConversationSession in memory.
type Store struct {
	maxMessages int
	timeout     time.Duration

	mu       sync.Mutex
	sessions map[string]*domain.ConversationSession
	nowFunc  func() time.Time
}

// New builds an empty Store. maxMessages bounds ConversationSession.Messages
// (oldest evicted first on append). timeout is the idle window past which a
// session is treated as gone: every accessor checks it inline (in addition
// to the Sweeper's own periodic sweep), so a session already past timeout is
// rejected immediately rather than only at the next sweep tick. A timeout
// of 0 disables the inline check.
func New(maxMessages int, timeout time.Duration) *Store {
	return &Store{
		maxMessages: maxMessages,
		timeout:     timeout,
		sessions:    make(map[string]*domain.ConversationSession),
		nowFunc:     time.Now,
	}
}

// liveSession returns id's session if it exists and is not past timeout.
// An expired session is evicted on the spot, the same way the sweeper would
// evict it, just driven by this access instead of the next tick. Callers
// must hold s.mu.
func (s *Store) liveSession(id string) (*domain.ConversationSession, bool) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if s.timeout > 0 && s.nowFunc().Sub(sess.LastAccessedAt) > s.timeout {
		delete(s.sessions, id)
		return nil, false
	}
	return sess, true
}

// Create starts a new ConversationSession with a fresh UUID and returns it.
func (s *Store) Create() *domain.ConversationSession {
	now := s.nowFunc()
	sess := &domain.ConversationSession{
		SessionID:      uuid.NewString(),
		CreatedAt:      now,
		LastAccessedAt: now,
		Metadata:       make(map[string]interface{}),
	}

	s.mu.Lock()
	s.sessions[sess.SessionID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session for id, bumping LastAccessedAt. Returns a
// KindUser/CategorySessionNotFound error if id is unknown, already evicted,
// or idle past the store's configured timeout — checked inline here rather
// than only at the Sweeper's next tick.
func (s *Store) Get(id string) (*domain.ConversationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.liveSession(id)
	if !ok {
		return nil, apperrors.User(apperrors.CategorySessionNotFound, "session: unknown session id")
	}
	sess.LastAccessedAt = s.nowFunc()
	return sess, nil
}

// AppendMessage appends msg to the session's history, evicting the oldest
// message first if the store's maxMessages bound would otherwise be
// exceeded.
func (s *Store) AppendMessage(id string, msg domain.ConversationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.liveSession(id)
	if !ok {
		return apperrors.User(apperrors.CategorySessionNotFound, "session: unknown session id")
	}

	sess.Messages = append(sess.Messages, msg)
	if s.maxMessages > 0 && len(sess.Messages) > s.maxMessages {
		overflow := len(sess.Messages) - s.maxMessages
		sess.Messages = sess.Messages[overflow:]
	}
	sess.LastAccessedAt = s.nowFunc()
	return nil
}

// UpdateSearchState replaces the session's SearchState wholesale. Callers
// build the new state from the Refiner's merge of the prior state and the
// turn's fresh constraints before calling this.
func (s *Store) UpdateSearchState(id string, state domain.SearchState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.liveSession(id)
	if !ok {
		return apperrors.User(apperrors.CategorySessionNotFound, "session: unknown session id")
	}
	sess.CurrentSearchState = state
	sess.LastAccessedAt = s.nowFunc()
	return nil
}

// GetHistory returns the newest maxMessages messages from id's history,
// oldest-first. A maxMessages of 0 or less returns the full history.
func (s *Store) GetHistory(id string, maxMessages int) ([]domain.ConversationMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.liveSession(id)
	if !ok {
		return nil, apperrors.User(apperrors.CategorySessionNotFound, "session: unknown session id")
	}
	sess.LastAccessedAt = s.nowFunc()

	if maxMessages <= 0 || maxMessages >= len(sess.Messages) {
		out := make([]domain.ConversationMessage, len(sess.Messages))
		copy(out, sess.Messages)
		return out, nil
	}
	start := len(sess.Messages) - maxMessages
	out := make([]domain.ConversationMessage, maxMessages)
	copy(out, sess.Messages[start:])
	return out, nil
}

// Exists probes whether id names a live session, touching LastAccessedAt
// like Get. A session past timeout is evicted on the spot and reported as
// absent, the same as every other accessor; the Sweeper's own cadence is a
// backstop for sessions nothing ever touches again, not the only path to
// eviction.
func (s *Store) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.liveSession(id)
	if !ok {
		return false
	}
	sess.LastAccessedAt = s.nowFunc()
	return true
}

// Clear removes a session outright. A no-op if id is unknown.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len reports the number of sessions currently held. Used by the sweeper's
// logging.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// CleanupResult summarizes one sweep's cascading cleanup of expired
// sessions: messages cleared, search state reset, and the session entry
// itself removed. A three-phase cascade in the same shape as a cascading
// delete against an external store (conversation turns, scoped documents,
// then the session object itself), just applied to in-memory fields.
type CleanupResult struct {
	SessionsEvicted int
	MessagesCleared int
	FiltersCleared  int
}

// sweepExpired runs the cascading cleanup against every session whose
// LastAccessedAt is older than idleAfter. Unexported: only the Sweeper in
// this package calls it, on its own ticker cadence.
func (s *Store) sweepExpired(idleAfter time.Duration) CleanupResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.nowFunc()
	var result CleanupResult
	for id, sess := range s.sessions {
		if now.Sub(sess.LastAccessedAt) <= idleAfter {
			continue
		}

		// Phase 1: clear conversation history.
		result.MessagesCleared += len(sess.Messages)
		sess.Messages = nil

		// Phase 2: clear active search state.
		if len(sess.CurrentSearchState.ActiveFilters) > 0 {
			result.FiltersCleared += len(sess.CurrentSearchState.ActiveFilters)
			sess.CurrentSearchState = domain.SearchState{}
		}

		// Phase 3: remove the session entry itself.
		delete(s.sessions, id)
		result.SessionsEvicted++
	}
	return result
}
