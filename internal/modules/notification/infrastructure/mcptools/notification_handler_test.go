package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"RxDash/internal/modules/notification/application/dto/respond"
	"RxDash/internal/modules/notification/domain/remote"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOperator struct {
	list      respond.NotificationListRespond
	result    remote.Result
	connected bool
	read      []string
	readAll   int
	removed   []string
}

func (f *fakeOperator) List() respond.NotificationListRespond { return f.list }

func (f *fakeOperator) MarkNotificationAsRead(_ context.Context, id string) remote.Result {
	f.read = append(f.read, id)
	return f.result
}

func (f *fakeOperator) MarkAllNotificationsAsRead(context.Context) remote.Result {
	f.readAll++
	return f.result
}

func (f *fakeOperator) RemoveNotificationById(id string) bool {
	if !f.connected {
		return false
	}
	f.removed = append(f.removed, id)
	return true
}

func call(args any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestListNotifications(t *testing.T) {
	op := &fakeOperator{list: respond.NotificationListRespond{
		Items: []respond.NotificationItem{
			{Id: "N1", IsRead: true},
			{Id: "N2"},
		},
		UnreadCount: 1,
		Total:       2,
		IsConnected: true,
	}}
	h := NewNotificationToolHandler(op)

	res, err := h.handleList(context.Background(), call(nil))
	require.NoError(t, err)
	var all respond.NotificationListRespond
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &all))
	assert.Len(t, all.Items, 2)
	assert.True(t, all.IsConnected)

	res, err = h.handleList(context.Background(), call(map[string]interface{}{"unread_only": true}))
	require.NoError(t, err)
	var unread respond.NotificationListRespond
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &unread))
	require.Len(t, unread.Items, 1)
	assert.Equal(t, "N2", unread.Items[0].Id)
}

func TestMarkNotificationRead(t *testing.T) {
	op := &fakeOperator{result: remote.Transient(http.StatusServiceUnavailable, errors.New("upstream unavailable"))}
	h := NewNotificationToolHandler(op)

	res, err := h.handleMarkRead(context.Background(), call(map[string]interface{}{"notificationId": " N1 "}))
	require.NoError(t, err)
	assert.False(t, res.IsError, "upstream failure is reported, not raised")
	var out respond.ReadRespond
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, "N1", out.NotificationId)
	assert.Equal(t, "transient", out.Outcome)
	assert.Equal(t, http.StatusServiceUnavailable, out.Status)
	assert.Equal(t, []string{"N1"}, op.read)

	res, err = h.handleMarkRead(context.Background(), call(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = h.handleMarkRead(context.Background(), call("bad"))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Len(t, op.read, 1)
}

func TestMarkAllNotificationsRead(t *testing.T) {
	op := &fakeOperator{result: remote.Succeeded(http.StatusOK)}
	h := NewNotificationToolHandler(op)

	res, err := h.handleMarkAllRead(context.Background(), call(nil))
	require.NoError(t, err)
	assert.Contains(t, text(t, res), `"outcome":"ok"`)
	assert.Equal(t, 1, op.readAll)
}

func TestRemoveNotification(t *testing.T) {
	op := &fakeOperator{}
	h := NewNotificationToolHandler(op)

	res, err := h.handleRemove(context.Background(), call(map[string]interface{}{"notificationId": "N1"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Empty(t, op.removed)

	op.connected = true
	res, err = h.handleRemove(context.Background(), call(map[string]interface{}{"notificationId": "N1"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "Notification N1 removed", text(t, res))
	assert.Equal(t, []string{"N1"}, op.removed)
}

func TestNewNotificationMCPServer(t *testing.T) {
	s := NewNotificationMCPServer(ServerConfig{Name: "rxdash-notifications", Version: "1.0.0"}, &fakeOperator{})
	require.NotNil(t, s)
	assert.NotNil(t, NewHTTPHandler(s))
}
