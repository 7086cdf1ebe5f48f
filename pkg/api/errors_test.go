package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamenightbot/gamenight/pkg/services"
)

func recordError(t *testing.T, err error) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

	respondError(c, err)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func errCode(t *testing.T, body map[string]json.RawMessage) string {
	t.Helper()
	var code string
	require.NoError(t, json.Unmarshal(body["error"], &code))
	return code
}

func TestRespondErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", services.NewValidationError("title", "is required"), http.StatusBadRequest, "validation_error"},
		{"not found", services.ErrNotFound, http.StatusNotFound, "not_found"},
		{"forbidden", services.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"conflict", services.ErrAlreadyExists, http.StatusConflict, "already_exists"},
		{"not joinable", services.ErrGameNotJoinable, http.StatusConflict, "not_joinable"},
		{"default template", services.ErrDefaultTemplate, http.StatusBadRequest, "default_template"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := recordError(t, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errCode(t, body))
		})
	}
}

func TestRespondErrorWrappedSentinel(t *testing.T) {
	w, body := recordError(t, errors.Join(errors.New("context"), services.ErrNotFound))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errCode(t, body))
}

func TestRespondErrorInvalidMentions(t *testing.T) {
	err := &services.MentionValidationError{
		Invalid: []services.InvalidMention{{
			Input:  "@ghost",
			Reason: "no member matches this name",
			Suggestions: []services.MentionSuggestion{
				{ID: "1", Username: "ghostly", DisplayName: "Ghostly"},
			},
		}},
		Valid: []services.ResolvedMention{{Input: "<@2>", UserDiscordID: "2"}},
	}

	w, body := recordError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "invalid_mentions", errCode(t, body))

	var invalid []services.InvalidMention
	require.NoError(t, json.Unmarshal(body["invalid_mentions"], &invalid))
	require.Len(t, invalid, 1)
	assert.Equal(t, "@ghost", invalid[0].Input)

	var valid []services.ResolvedMention
	require.NoError(t, json.Unmarshal(body["valid_participants"], &valid))
	require.Len(t, valid, 1)
	assert.Equal(t, "2", valid[0].UserDiscordID)
}
