package session_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"draftpad/pkg/apperr"
	"draftpad/pkg/session"
	"draftpad/pkg/version"
)

type snapshotCall struct {
	content string
	label   *string
}

type fakeSnapshotter struct {
	mu    sync.Mutex
	calls []snapshotCall
	err   error
}

func (f *fakeSnapshotter) CreateSnapshot(documentID, content, authorID string, label *string) (*version.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, snapshotCall{content: content, label: label})
	return &version.Version{DocumentID: documentID, VersionNumber: len(f.calls), Content: content}, nil
}

func (f *fakeSnapshotter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestAutosnapshotTicksWithLiveContent(t *testing.T) {
	snaps := &fakeSnapshotter{}

	var mu sync.Mutex
	content := "first"
	getContent := func() string {
		mu.Lock()
		defer mu.Unlock()
		return content
	}

	a := session.NewAutosnapshotWithInterval(snaps, "doc-1", "u1", getContent, 10*time.Millisecond)
	a.Start()
	defer a.Stop()

	waitFor(t, func() bool { return snaps.callCount() >= 1 })

	mu.Lock()
	content = "second"
	mu.Unlock()

	before := snaps.callCount()
	waitFor(t, func() bool { return snaps.callCount() > before })

	snaps.mu.Lock()
	last := snaps.calls[len(snaps.calls)-1]
	snaps.mu.Unlock()
	// The tick reads through the getter, so it saw the updated content.
	assert.Equal(t, "second", last.content)
	assert.Nil(t, last.label)
}

func TestAutosnapshotStopHaltsTicks(t *testing.T) {
	snaps := &fakeSnapshotter{}
	a := session.NewAutosnapshotWithInterval(snaps, "doc-1", "u1", func() string { return "x" }, 5*time.Millisecond)

	a.Start()
	waitFor(t, func() bool { return snaps.callCount() >= 1 })
	a.Stop()

	settled := snaps.callCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, settled, snaps.callCount())
}

func TestAutosnapshotStartRequiresIdentity(t *testing.T) {
	snaps := &fakeSnapshotter{}
	a := session.NewAutosnapshotWithInterval(snaps, "", "u1", func() string { return "x" }, 5*time.Millisecond)

	a.Start()
	time.Sleep(25 * time.Millisecond)
	a.Stop()

	assert.Equal(t, 0, snaps.callCount())
}

func TestAutosnapshotSurvivesTickFailure(t *testing.T) {
	snaps := &fakeSnapshotter{err: errors.New("db down")}
	a := session.NewAutosnapshotWithInterval(snaps, "doc-1", "u1", func() string { return "x" }, 5*time.Millisecond)

	a.Start()
	time.Sleep(25 * time.Millisecond)

	// Recovery: once the store is healthy again, ticking resumes.
	snaps.mu.Lock()
	snaps.err = nil
	snaps.mu.Unlock()

	waitFor(t, func() bool { return snaps.callCount() >= 1 })
	a.Stop()
}

func TestSaveNamedVersion(t *testing.T) {
	snaps := &fakeSnapshotter{}
	a := session.NewAutosnapshotWithInterval(snaps, "doc-1", "u1", func() string { return "final draft" }, time.Hour)

	v, err := a.SaveNamedVersion("Before rewrite")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "final draft", v.Content)

	require.Len(t, snaps.calls, 1)
	require.NotNil(t, snaps.calls[0].label)
	assert.Equal(t, "Before rewrite", *snaps.calls[0].label)
}

func TestSaveNamedVersionBeforeLoad(t *testing.T) {
	a := session.NewAutosnapshotWithInterval(&fakeSnapshotter{}, "", "", func() string { return "" }, time.Hour)

	_, err := a.SaveNamedVersion("too early")
	require.Error(t, err)
	assert.True(t, apperr.IsValidation(err))
}

func TestSaveNamedVersionPropagatesStoreError(t *testing.T) {
	snaps := &fakeSnapshotter{err: errors.New("insert failed")}
	a := session.NewAutosnapshotWithInterval(snaps, "doc-1", "u1", func() string { return "x" }, time.Hour)

	_, err := a.SaveNamedVersion("label")
	assert.Error(t, err)
}
