package usecase_test

import (
	"context"
	"sync"

	"github.com/secmon-lab/recall/pkg/domain/model"
)

type searchCall struct {
	Query string
	User  model.UserID
	Limit int
}

type addCall struct {
	Messages []model.MemoryMessage
	User     model.UserID
}

// mockMemoryIndex records calls and delegates to optional fn fields
type mockMemoryIndex struct {
	mu          sync.Mutex
	searchCalls []searchCall
	addCalls    []addCall

	searchFn func(ctx context.Context, query string, user model.UserID, limit int) ([]model.Fact, error)
	addFn    func(ctx context.Context, messages []model.MemoryMessage, user model.UserID) error
}

func (m *mockMemoryIndex) Search(ctx context.Context, query string, user model.UserID, limit int) ([]model.Fact, error) {
	m.mu.Lock()
	m.searchCalls = append(m.searchCalls, searchCall{Query: query, User: user, Limit: limit})
	m.mu.Unlock()

	if m.searchFn != nil {
		return m.searchFn(ctx, query, user, limit)
	}
	return nil, nil
}

func (m *mockMemoryIndex) Add(ctx context.Context, messages []model.MemoryMessage, user model.UserID) error {
	m.mu.Lock()
	m.addCalls = append(m.addCalls, addCall{Messages: messages, User: user})
	m.mu.Unlock()

	if m.addFn != nil {
		return m.addFn(ctx, messages, user)
	}
	return nil
}

func (m *mockMemoryIndex) SearchCalls() []searchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]searchCall(nil), m.searchCalls...)
}

func (m *mockMemoryIndex) AddCalls() []addCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]addCall(nil), m.addCalls...)
}

// mockGenerator records requests and replies through generateFn
type mockGenerator struct {
	mu       sync.Mutex
	requests []model.GenerationRequest

	generateFn func(ctx context.Context, req model.GenerationRequest) (string, error)
}

func (g *mockGenerator) Generate(ctx context.Context, req model.GenerationRequest) (string, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	if g.generateFn != nil {
		return g.generateFn(ctx, req)
	}
	return "ok", nil
}

func (g *mockGenerator) Requests() []model.GenerationRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]model.GenerationRequest(nil), g.requests...)
}
