package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/yaohuangguan/orion-chat/internal/session"
	"github.com/yaohuangguan/orion-chat/internal/wire"
)

type HistoryAPIMock struct {
	mock.Mock
}

func (m *HistoryAPIMock) PublicHistory(ctx context.Context, roomKey string) ([]wire.Message, error) {
	args := m.Called(ctx, roomKey)
	var msgs []wire.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]wire.Message)
	}
	return msgs, args.Error(1)
}

func (m *HistoryAPIMock) PrivateHistory(ctx context.Context, peerID string) ([]wire.Message, error) {
	args := m.Called(ctx, peerID)
	var msgs []wire.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]wire.Message)
	}
	return msgs, args.Error(1)
}

var _ session.HistoryAPI = (*HistoryAPIMock)(nil)
