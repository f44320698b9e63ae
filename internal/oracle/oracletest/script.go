// Package oracletest provides a scripted oracle for agent tests.
package oracletest

import (
	"context"
	"fmt"
	"sync"

	"github.com/kalambet/collegeai/internal/oracle"
)

// Reply is one queued response.
type Reply struct {
	Text string
	Err  error
}

// Script replays queued replies in order and records every request.
type Script struct {
	mu       sync.Mutex
	replies  []Reply
	Requests []oracle.Request
}

// New returns a Script answering with texts in order.
func New(texts ...string) *Script {
	s := &Script{}
	for _, t := range texts {
		s.replies = append(s.replies, Reply{Text: t})
	}
	return s
}

// Fail queues an error reply.
func (s *Script) Fail(err error) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, Reply{Err: err})
	return s
}

// Complete implements oracle.Oracle.
func (s *Script) Complete(_ context.Context, req oracle.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Requests = append(s.Requests, req)
	if len(s.replies) == 0 {
		return "", fmt.Errorf("oracletest: no reply queued for call %d (%s)", len(s.Requests), req.Name)
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r.Text, r.Err
}

// Calls returns the number of requests seen.
func (s *Script) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Requests)
}
