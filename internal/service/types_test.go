package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Status
	}{
		{"NEW", StatusNew},
		{"new", StatusNew},
		{"in-progress", StatusInProgress},
		{"In Progress", StatusInProgress},
		{" done ", StatusDone},
	} {
		got, err := ParseStatus(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseStatus("archived")
	assert.EqualError(t, err, "invalid status: archived")
}

func TestStatusCycleVisitsEveryState(t *testing.T) {
	s := StatusNew
	seen := map[Status]bool{}
	for range Statuses {
		seen[s] = true
		s = s.Next()
	}
	assert.Equal(t, StatusNew, s)
	assert.Len(t, seen, 3)

	assert.Equal(t, StatusDone, StatusNew.Prev())
	assert.Equal(t, StatusNew, StatusInProgress.Prev())
}

func TestFilterNextCyclesThroughAll(t *testing.T) {
	f := FilterAll
	var names []string
	for i := 0; i < 4; i++ {
		names = append(names, f.String())
		f = f.Next()
	}
	assert.Equal(t, []string{"ALL", "NEW", "IN_PROGRESS", "DONE"}, names)
	assert.True(t, f.All())
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("all")
	require.NoError(t, err)
	assert.True(t, f.All())

	f, err = ParseFilter("done")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, f.Status)

	_, err = ParseFilter("nope")
	assert.Error(t, err)
}

func TestDraftValidate(t *testing.T) {
	assert.NoError(t, Draft{Title: "Fix invoice", Priority: 1}.Validate())

	err := Draft{Title: "  ", Priority: 2}.Validate()
	require.Error(t, err)
	assert.Equal(t, "title is required", Message(err))
	assert.False(t, IsAuth(err))

	err = Draft{Title: "x", Priority: 4}.Validate()
	assert.Equal(t, "priority must be between 1 and 3", Message(err))
}

func TestDraftDescriptionValue(t *testing.T) {
	assert.Nil(t, DefaultDraft().DescriptionValue())

	d := Draft{Description: "details"}
	require.NotNil(t, d.DescriptionValue())
	assert.Equal(t, "details", *d.DescriptionValue())
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "Invalid login credentials", Message(fmt.Errorf("sign in: %w", AuthError("Invalid login credentials"))))
	assert.Equal(t, "request timed out", Message(fmt.Errorf("list: %w", context.DeadlineExceeded)))
	assert.Equal(t, "boom", Message(errors.New("boom")))
	assert.True(t, IsAuth(fmt.Errorf("wrapped: %w", AuthError("expired"))))
}

func TestSessionEventEnded(t *testing.T) {
	s := &Session{UserID: "u1"}
	assert.False(t, SessionEvent{Kind: EventSignedIn, Session: s}.Ended())
	assert.False(t, SessionEvent{Kind: EventTokenRefreshed, Session: s}.Ended())
	assert.True(t, SessionEvent{Kind: EventSignedOut}.Ended())
	assert.True(t, SessionEvent{Kind: EventTokenRefreshed}.Ended())
}
