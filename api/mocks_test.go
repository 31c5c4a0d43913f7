package api

import (
	"github.com/stretchr/testify/mock"

	"github.com/earthtowalt/hide-and-seek/protocol"
)

type MockGameServer struct {
	mock.Mock
}

func (m *MockGameServer) Start() {
	m.Called()
}

func (m *MockGameServer) Stop() {
	m.Called()
}

func (m *MockGameServer) Snapshot() protocol.Update {
	args := m.Called()
	return args.Get(0).(protocol.Update)
}

func (m *MockGameServer) Revision() int64 {
	args := m.Called()
	return args.Get(0).(int64)
}

func (m *MockGameServer) Kick(username string) error {
	args := m.Called(username)
	return args.Error(0)
}

func (m *MockGameServer) ResetRound() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockGameServer) Metrics() map[string]any {
	args := m.Called()
	return args.Get(0).(map[string]any)
}
