package anthropic

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/account-intel/internal/resilience"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MessageResponse), args.Error(1)
}

func TestCreateMessage_MockClient(t *testing.T) {
	client := new(MockClient)
	client.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req MessageRequest) bool {
		return req.Model == "claude-haiku-4-5-20251001" && len(req.Messages) == 1
	})).Return(&MessageResponse{
		ID:   "msg_1",
		Text: "hello",
		Usage: TokenUsage{
			InputTokens:  100,
			OutputTokens: 20,
		},
	}, nil)

	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-haiku-4-5-20251001",
		MaxTokens: 256,
		Messages:  []Message{{Role: "user", Content: "say hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	client.AssertExpectations(t)
}

func TestToSDKMessages(t *testing.T) {
	msgs := toSDKMessages([]Message{
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, sdk.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, sdk.MessageParamRoleAssistant, msgs[1].Role)
}

func TestFromSDKMessage_SingleTextBlockSetsFlatField(t *testing.T) {
	resp := fromSDKMessage(&sdk.Message{
		ID:      "msg_2",
		Content: []sdk.ContentBlockUnion{{Type: "text", Text: "the payload"}},
	})
	assert.Equal(t, "the payload", resp.Text)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "the payload", resp.Content[0].Text)
}

func TestFromSDKMessage_MultiBlockLeavesFlatFieldEmpty(t *testing.T) {
	resp := fromSDKMessage(&sdk.Message{
		ID: "msg_3",
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "part one"},
			{Type: "text", Text: "part two"},
		},
	})
	assert.Empty(t, resp.Text)
	assert.Len(t, resp.Content, 2)
}

func TestClassify_TransientStatus(t *testing.T) {
	marked := func(status int) bool {
		var te *resilience.TransientError
		return errors.As(classify(&sdk.Error{StatusCode: status}), &te)
	}

	assert.True(t, marked(500))
	assert.True(t, marked(529))
	assert.True(t, marked(429))
	assert.False(t, marked(400))
	assert.False(t, marked(404))
}

func TestEstimateCost_Haiku(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.InDelta(t, 4.80, usage.EstimateCost("claude-haiku-4-5-20251001"), 0.001)
}

func TestEstimateCost_UnknownModel(t *testing.T) {
	usage := TokenUsage{InputTokens: 1000, OutputTokens: 1000}
	assert.Zero(t, usage.EstimateCost("not-a-model"))
}

func TestEstimateCost_ZeroTokens(t *testing.T) {
	assert.Zero(t, TokenUsage{}.EstimateCost("claude-haiku-4-5-20251001"))
}

func TestLogCost_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		TokenUsage{InputTokens: 10, OutputTokens: 5}.LogCost("claude-haiku-4-5-20251001", "extract")
	})
}
