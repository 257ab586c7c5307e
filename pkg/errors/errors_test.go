package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"stagecast/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromDomainMapping(t *testing.T) {
	cases := []struct {
		err    error
		code   ErrorCode
		status int
	}{
		{domain.ErrStreamNotFound, ErrCodeEntityNotFound, http.StatusNotFound},
		{domain.ErrConversationNotFound, ErrCodeEntityNotFound, http.StatusNotFound},
		{domain.ErrPerformerNotFound, ErrCodeEntityNotFound, http.StatusNotFound},
		{domain.ErrPeekInNotFound, ErrCodeEntityNotFound, http.StatusNotFound},
		{domain.ErrForbidden, ErrCodeForbidden, http.StatusForbidden},
		{domain.ErrStreamOffline, ErrCodeStreamOffline, http.StatusConflict},
		{domain.ErrTokenNotEnough, ErrCodeTokenNotEnough, http.StatusPaymentRequired},
		{domain.ErrNotEnoughTierLimit, ErrCodeNotEnoughTierLimit, http.StatusForbidden},
		{domain.ErrParticipantJoinLimit, ErrCodeParticipantJoinLimit, http.StatusConflict},
		{domain.ErrStreamServer, ErrCodeStreamServerError, http.StatusBadGateway},
		{domain.ErrBadRequest, ErrCodeBadRequest, http.StatusBadRequest},
		{domain.ErrRoleConflict, ErrCodeBadRequest, http.StatusBadRequest},
		{stderrors.New("disk on fire"), ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(string(tc.code)+"/"+tc.err.Error(), func(t *testing.T) {
			appErr := FromDomain(tc.err)
			assert.Equal(t, tc.code, appErr.Code)
			assert.Equal(t, tc.status, appErr.HTTPStatus)
		})
	}
}

func TestFromDomainUnwrapsWrappedSentinels(t *testing.T) {
	wrapped := fmt.Errorf("join group: %w", domain.ErrParticipantJoinLimit)
	appErr := FromDomain(wrapped)
	assert.Equal(t, ErrCodeParticipantJoinLimit, appErr.Code)
}

func TestAppErrorChain(t *testing.T) {
	cause := stderrors.New("dial tcp: refused")
	appErr := NewStreamServerError(cause)

	assert.ErrorIs(t, appErr, cause)
	assert.Contains(t, appErr.Error(), "caused by")

	var target *AppError
	wrapped := fmt.Errorf("outer: %w", appErr)
	require.True(t, stderrors.As(wrapped, &target))
	assert.Equal(t, ErrCodeStreamServerError, target.Code)

	assert.True(t, IsAppError(wrapped))
	assert.Equal(t, appErr, GetAppError(wrapped))
	assert.Nil(t, GetAppError(cause))
}

func TestWithContext(t *testing.T) {
	appErr := NewBadRequestError("bad payload").WithContext("field", "conversationId")
	assert.Equal(t, "conversationId", appErr.Context["field"])
}
