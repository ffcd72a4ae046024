package channel

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fabrics-catalog-service/internal/conversation"
)

// MockGateway is a mock implementation of Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) SendText(ctx context.Context, recipientID, text string) error {
	return m.Called(ctx, recipientID, text).Error(0)
}

func (m *MockGateway) SendButtons(ctx context.Context, recipientID, prompt string, buttons []Button) error {
	return m.Called(ctx, recipientID, prompt, buttons).Error(0)
}

func (m *MockGateway) SendCarousel(ctx context.Context, recipientID string, elements []Element) error {
	return m.Called(ctx, recipientID, elements).Error(0)
}

func TestDispatcher_ContinuesAfterFailure(t *testing.T) {
	gw := new(MockGateway)
	sendErr := errors.New("graph api: (#100) invalid parameter")
	gw.On("SendText", mock.Anything, "u1", "first").Return(nil).Once()
	gw.On("SendButtons", mock.Anything, "u1", "second", mock.Anything).Return(sendErr).Once()
	gw.On("SendCarousel", mock.Anything, "u1", mock.Anything).Return(nil).Once()

	d := NewDispatcher("messenger", gw)
	err := d.Dispatch(context.Background(), "u1", []Message{
		{Kind: KindText, Text: "first"},
		{Kind: KindButtons, Text: "second", Buttons: []Button{{Title: "A", Payload: "a"}}},
		{Kind: KindCarousel, Elements: []Element{{Title: "P"}}},
	})

	require.Error(t, err)
	var dispatchErr *DispatchError
	require.True(t, errors.As(err, &dispatchErr))
	assert.Equal(t, 1, dispatchErr.Failed)
	assert.Equal(t, 3, dispatchErr.Total)
	assert.ErrorIs(t, err, sendErr)
	gw.AssertExpectations(t)
}

func TestDispatcher_AllSent(t *testing.T) {
	gw := new(MockGateway)
	gw.On("SendText", mock.Anything, "u1", mock.Anything).Return(nil).Twice()

	err := NewDispatcher("telegram", gw).Dispatch(context.Background(), "u1", []Message{
		{Kind: KindText, Text: "a"},
		{Kind: KindText, Text: "b"},
	})

	assert.NoError(t, err)
	gw.AssertExpectations(t)
}

type fixedResponder []conversation.Response

func (f fixedResponder) Respond(context.Context, conversation.Event) []conversation.Response {
	return f
}

func TestBot_Handle(t *testing.T) {
	gw := new(MockGateway)
	gw.On("SendText", mock.Anything, "u7", "Welcome").Return(nil).Once()
	gw.On("SendButtons", mock.Anything, "u7", "Pick (1/2)", mock.MatchedBy(func(b []Button) bool { return len(b) == 3 })).Return(nil).Once()
	gw.On("SendButtons", mock.Anything, "u7", "Pick (2/2)", mock.MatchedBy(func(b []Button) bool { return len(b) == 1 })).Return(errors.New("boom")).Once()

	bot := NewBot("whatsapp", fixedResponder{
		conversation.TextMessage{Text: "Welcome"},
		conversation.CategoryList{Prompt: "Pick", Options: options(4)},
	}, WhatsAppLimits, gw)

	err := bot.Handle(context.Background(), conversation.TextEvent("", "u7", "hi"))

	assert.Error(t, err)
	assert.Equal(t, "whatsapp", bot.Channel())
	gw.AssertExpectations(t)
}
