package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"telegram-library/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMembers struct {
	mock.Mock
}

func (m *mockMembers) MemberStatus(ctx context.Context, chatID, userID int64) (string, error) {
	args := m.Called(ctx, chatID, userID)
	return args.String(0), args.Error(1)
}

const lockChannel int64 = -1001234567890

func newTestGate(t *testing.T, locked bool) (*Gate, *store.Memory, *mockMembers) {
	t.Helper()
	st := store.NewMemory()
	if locked {
		require.NoError(t, st.SetLockChannel(context.Background(), lockChannel))
	}
	members := &mockMembers{}
	return NewGate(st, st, members, NewAudit(st), 50*time.Millisecond), st, members
}

func requireDenied(t *testing.T, err error, reason DenyReason) {
	t.Helper()
	var denied *DeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, reason, denied.Reason)
	assert.Equal(t, lockChannel, denied.LockChannelID)
}

func TestCheckAccessUnlocked(t *testing.T) {
	gate, _, members := newTestGate(t, false)

	assert.NoError(t, gate.CheckAccess(context.Background(), 7))
	members.AssertNotCalled(t, "MemberStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckAccessWithoutJoinRequestSkipsTransport(t *testing.T) {
	gate, st, members := newTestGate(t, true)

	err := gate.CheckAccess(context.Background(), 7)
	requireDenied(t, err, DenyNoJoinRequest)
	members.AssertNumberOfCalls(t, "MemberStatus", 0)

	logs, err := st.RecentLogs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "access_denied", logs[0].Event)
	assert.Equal(t, string(DenyNoJoinRequest), logs[0].Detail["reason"])
}

func TestCheckAccessMemberStatuses(t *testing.T) {
	tests := []struct {
		status  string
		allowed bool
	}{
		{"member", true},
		{"administrator", true},
		{"creator", true},
		{"left", false},
		{"kicked", false},
		{"restricted", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			gate, st, members := newTestGate(t, true)
			require.NoError(t, st.MarkJoinRequested(context.Background(), 7, time.Now()))
			members.On("MemberStatus", mock.Anything, lockChannel, int64(7)).Return(tt.status, nil).Once()

			err := gate.CheckAccess(context.Background(), 7)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				requireDenied(t, err, DenyNotMember)
			}
			members.AssertExpectations(t)
		})
	}
}

func TestCheckAccessQueryErrorFailsClosed(t *testing.T) {
	gate, st, members := newTestGate(t, true)
	require.NoError(t, st.MarkJoinRequested(context.Background(), 7, time.Now()))
	members.On("MemberStatus", mock.Anything, lockChannel, int64(7)).Return("", errors.New("Bad Request: user not found"))

	err := gate.CheckAccess(context.Background(), 7)
	requireDenied(t, err, DenyQueryError)
}

func TestCheckAccessTimeoutFailsClosed(t *testing.T) {
	gate, st, members := newTestGate(t, true)
	require.NoError(t, st.MarkJoinRequested(context.Background(), 7, time.Now()))
	members.On("MemberStatus", mock.Anything, lockChannel, int64(7)).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", context.DeadlineExceeded)

	start := time.Now()
	err := gate.CheckAccess(context.Background(), 7)
	requireDenied(t, err, DenyQueryError)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCheckAccessRechecksEveryCall(t *testing.T) {
	gate, st, members := newTestGate(t, true)
	require.NoError(t, st.MarkJoinRequested(context.Background(), 7, time.Now()))
	members.On("MemberStatus", mock.Anything, lockChannel, int64(7)).Return("member", nil).Once()
	members.On("MemberStatus", mock.Anything, lockChannel, int64(7)).Return("left", nil).Once()

	assert.NoError(t, gate.CheckAccess(context.Background(), 7))
	requireDenied(t, gate.CheckAccess(context.Background(), 7), DenyNotMember)
	members.AssertNumberOfCalls(t, "MemberStatus", 2)
}

func TestSetLockChannel(t *testing.T) {
	gate, st, _ := newTestGate(t, false)
	ctx := context.Background()

	id, err := gate.SetLockChannel(ctx, 1, "-1009876")
	require.NoError(t, err)
	assert.Equal(t, int64(-1009876), id)

	cfg, err := st.GetAccessConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(-1009876), cfg.LockChannelID)

	for _, bad := range []string{"", "abc", "1 2", "0"} {
		_, err := gate.SetLockChannel(ctx, 1, bad)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, bad)
	}
}
