//go:build unix

package ptysession

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/socratic-shell/socratic-shell/internal/standin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects chunks and the exit status delivered by a Session.
type recorder struct {
	mu     sync.Mutex
	chunks []string
	exits  []ExitStatus
}

func (r *recorder) onData(data string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, data)
}

func (r *recorder) onExit(status ExitStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exits = append(r.exits, status)
}

func (r *recorder) output() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.chunks, "")
}

func (r *recorder) exitCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.exits)
}

func startStandin(t *testing.T, rec *recorder, script string, args ...string) *Session {
	t.Helper()
	cmd, cmdArgs := standin.Command(script, args...)
	s, err := Start(Options{
		Command: cmd,
		Args:    cmdArgs,
		Cols:    120,
		Rows:    40,
		Env:     append(os.Environ(), standin.Env()...),
		OnData:  rec.onData,
		OnExit:  rec.onExit,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func waitForOutput(t *testing.T, rec *recorder, substr string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(rec.output(), substr)
	}, 5*time.Second, 10*time.Millisecond, "output never contained %q, got %q", substr, rec.output())
}

func TestStartDeliversOutput(t *testing.T) {
	rec := &recorder{}
	startStandin(t, rec, "echo", "hello from pty")
	waitForOutput(t, rec, "hello from pty")
}

func TestStartEmptyCommand(t *testing.T) {
	_, err := Start(Options{})
	require.ErrorIs(t, err, ErrSpawnFailed)
}

func TestStartMissingBinary(t *testing.T) {
	_, err := Start(Options{Command: "/non/existent/command", Cols: 80, Rows: 24})
	require.ErrorIs(t, err, ErrSpawnFailed)
	assert.Contains(t, err.Error(), "/non/existent/command")
}

func TestEnvironmentAndDirectory(t *testing.T) {
	t.Run("terminal size exported", func(t *testing.T) {
		rec := &recorder{}
		startStandin(t, rec, "env", "COLUMNS")
		waitForOutput(t, rec, "120")
	})

	t.Run("term exported", func(t *testing.T) {
		rec := &recorder{}
		startStandin(t, rec, "env", "TERM")
		waitForOutput(t, rec, "xterm-256color")
	})

	t.Run("working directory", func(t *testing.T) {
		dir, err := filepath.EvalSymlinks(t.TempDir())
		require.NoError(t, err)
		cmd, args := standin.Command("pwd")
		rec := &recorder{}
		s, err := Start(Options{
			Command: cmd,
			Args:    args,
			Cols:    80,
			Rows:    24,
			Dir:     dir,
			Env:     append(os.Environ(), standin.Env()...),
			OnData:  rec.onData,
		})
		require.NoError(t, err)
		defer s.Close()

		waitForOutput(t, rec, dir)
	})
}

func TestWriteAndReply(t *testing.T) {
	rec := &recorder{}
	s := startStandin(t, rec, "assistant")
	waitForOutput(t, rec, "> ")

	require.NoError(t, s.Write("ping\r"))
	waitForOutput(t, rec, "echo: ping")
}

func TestExitStatusReported(t *testing.T) {
	rec := &recorder{}
	s := startStandin(t, rec, "exit", "7")

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process never exited")
	}

	status, exited := s.ExitStatus()
	require.True(t, exited)
	assert.Equal(t, 7, status.Code)
	assert.Empty(t, status.Signal)
	require.Eventually(t, func() bool { return rec.exitCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestExitBySignal(t *testing.T) {
	rec := &recorder{}
	s := startStandin(t, rec, "assistant")
	waitForOutput(t, rec, "> ")

	require.NoError(t, s.Write("crash\r"))
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process never exited")
	}

	status, _ := s.ExitStatus()
	assert.Equal(t, "SIGKILL", status.Signal)
	assert.Equal(t, -1, status.Code)
}

func TestExitStatusOfWaitFailure(t *testing.T) {
	assert.Equal(t, ExitStatus{Code: -1}, exitStatusOf(nil, errors.New("wait failed")))

	cmd := exec.Command("/bin/sh", "-c", "exit 0")
	require.NoError(t, cmd.Run())
	assert.Equal(t, ExitStatus{Code: 0}, exitStatusOf(cmd.ProcessState, nil))
	assert.Equal(t, ExitStatus{Code: -1}, exitStatusOf(cmd.ProcessState, errors.New("copy failed")))

	cmd = exec.Command("/bin/sh", "-c", "exit 4")
	err := cmd.Run()
	require.Error(t, err)
	assert.Equal(t, ExitStatus{Code: 4}, exitStatusOf(cmd.ProcessState, err))
}

func TestOnExitAfterExitFiresOnce(t *testing.T) {
	cmd, args := standin.Command("exit", "0")
	s, err := Start(Options{
		Command: cmd,
		Args:    args,
		Cols:    80,
		Rows:    24,
		Env:     append(os.Environ(), standin.Env()...),
	})
	require.NoError(t, err)
	defer s.Close()
	<-s.Done()

	late := &recorder{}
	s.OnExit(late.onExit)
	s.OnExit(late.onExit)
	assert.Equal(t, 1, late.exitCount())
}

func TestCloseIsIdempotent(t *testing.T) {
	rec := &recorder{}
	s := startStandin(t, rec, "assistant")
	waitForOutput(t, rec, "> ")

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	select {
	case <-s.Done():
	default:
		t.Fatal("expected process to be terminated by Close")
	}
	assert.ErrorIs(t, s.Write("late\r"), ErrNotStarted)
	status, exited := s.ExitStatus()
	assert.True(t, exited)
	assert.Equal(t, "SIGTERM", status.Signal)
	require.Eventually(t, func() bool { return rec.exitCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestCloseUnblocksPendingWrite(t *testing.T) {
	rec := &recorder{}
	s, err := Start(Options{
		Command: "/bin/sh",
		Args:    []string{"-c", "stty raw -echo; echo ready; sleep 30"},
		Cols:    80,
		Rows:    24,
		OnData:  rec.onData,
		OnExit:  rec.onExit,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	waitForOutput(t, rec, "ready")

	writeErr := make(chan error, 1)
	go func() { writeErr <- s.Write(strings.Repeat("x", 1<<20)) }()

	// Give the write time to fill the terminal's input queue.
	time.Sleep(200 * time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Close blocked behind a pending write")
	}
	select {
	case err := <-writeErr:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("write never returned after Close")
	}
}

func TestCloseAfterExit(t *testing.T) {
	s := startStandin(t, &recorder{}, "exit", "0")
	<-s.Done()
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

func TestNilSessionWrite(t *testing.T) {
	var s *Session
	assert.ErrorIs(t, s.Write("x"), ErrNotStarted)
	assert.NoError(t, s.Close())
}

func TestResize(t *testing.T) {
	rec := &recorder{}
	s := startStandin(t, rec, "assistant")
	waitForOutput(t, rec, "> ")
	assert.NoError(t, s.Resize(100, 30))

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Resize(80, 24), ErrNotStarted)
}
