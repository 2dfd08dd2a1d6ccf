package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"examforge-go/internal/model"
	"examforge-go/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChatService struct {
	result *service.TurnResult
	err    error
	got    service.TurnRequest
}

func (s *stubChatService) SubmitTurn(_ context.Context, _ *model.User, req service.TurnRequest) (*service.TurnResult, error) {
	s.got = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func performChat(t *testing.T, svc service.ChatService, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/ai/chat", func(c *gin.Context) {
		c.Set("user", &model.User{ID: 42, Role: model.RoleStudent})
		NewChatHandler(svc).Chat(c)
	})

	req := httptest.NewRequest(http.MethodPost, "/ai/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChatHandler_Success(t *testing.T) {
	convID := uint(5)
	stub := &stubChatService{result: &service.TurnResult{Reply: "hello!", ConversationID: &convID}}

	w := performChat(t, stub, `{"message":"hi","subjectId":7}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data struct {
			Response       string `json:"response"`
			ConversationID *uint  `json:"conversationId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "hello!", resp.Data.Response)
	require.NotNil(t, resp.Data.ConversationID)
	assert.Equal(t, uint(5), *resp.Data.ConversationID)

	require.NotNil(t, stub.got.SubjectID)
	assert.Equal(t, uint(7), *stub.got.SubjectID)
}

func TestChatHandler_EmptyTurn(t *testing.T) {
	stub := &stubChatService{err: service.ErrEmptyTurn}

	w := performChat(t, stub, `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_ConversationNotFound(t *testing.T) {
	stub := &stubChatService{err: service.ErrConversationNotFound}

	w := performChat(t, stub, `{"message":"hi","conversationId":999}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
