package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeFlattensData(t *testing.T) {
	b, err := json.Marshal(Success(MsgRoomJoined, RoomRequest{RoomID: 7}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","message":"Successfully joined room","roomId":7}`, string(b))

	b, err = json.Marshal(Failure(MsgRoomAccessDenied, errors.New("room 7")))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","message":"Access denied to this room","error":"room 7"}`, string(b))
}

func TestFailureFor(t *testing.T) {
	tests := []struct {
		fallback string
		err      error
		want     string
	}{
		{MsgFailedToSendMessage, fmt.Errorf("%w: x", ErrAccessDenied), MsgRoomAccessDenied},
		{MsgFailedToSendMessage, fmt.Errorf("%w: x", ErrInvalidData), MsgInvalidData},
		{MsgFailedToJoinRoom, ErrRoomIDRequired, MsgRoomIDRequired},
		{MsgFailedToDeleteMessage, fmt.Errorf("%w: x", ErrNotFound), MsgNotFound},
		{MsgFailedToUpdateMessage, fmt.Errorf("%w: x", ErrPermissionDenied), MsgUpdatePermissionDenied},
		{MsgFailedToDeleteMessage, fmt.Errorf("%w: x", ErrPermissionDenied), MsgDeletePermissionDenied},
		{MsgFailedToSendMessage, fmt.Errorf("%w: x", ErrPersistence), MsgFailedToSendMessage},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			env := FailureFor(tt.fallback, tt.err)
			assert.Equal(t, StatusError, env.Status)
			assert.Equal(t, tt.want, env.Message)
			assert.Equal(t, tt.err.Error(), env.Error)
		})
	}
}

func TestTempID(t *testing.T) {
	tests := []struct {
		raw  string
		want TempID
	}{
		{`{"id":"abc"}`, TempID(`"abc"`)},
		{`{"id":123}`, TempID(`123`)},
		{`{"id":""}`, nil},
		{`{"id":null}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var req SendRequest
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &req))
			assert.Equal(t, tt.want, req.ClientID)
		})
	}

	var req SendRequest
	assert.Error(t, json.Unmarshal([]byte(`{"id":{"a":1}}`), &req))
	assert.Error(t, json.Unmarshal([]byte(`{"id":true}`), &req))

	b, err := json.Marshal(SendRequest{ClientID: TempID(`123`)})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"id":123`)
}
