package polkit

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kastheco/mountie/agent"
	"github.com/kastheco/mountie/log"
	"github.com/kastheco/mountie/secret"
)

func TestMain(m *testing.M) {
	log.Initialize(false)
	code := m.Run()
	log.Close()
	os.Exit(code)
}

type fakeListener struct {
	mu        sync.Mutex
	users     []string
	chooseErr error
	password  string
	passErr   error
	asked     []string
	// block makes RequestPassword wait for ctx.
	block bool
}

func (f *fakeListener) ChooseUser(ctx context.Context, users []string) (agent.UserChoice, error) {
	f.mu.Lock()
	f.users = users
	f.mu.Unlock()
	if f.chooseErr != nil {
		return agent.UserChoice{}, f.chooseErr
	}
	c, ok := agent.Choose(users, "")
	if !ok {
		return agent.UserChoice{}, agent.ErrCancelled
	}
	return c, nil
}

func (f *fakeListener) RequestPassword(ctx context.Context, name string) (*secret.Secret, error) {
	f.mu.Lock()
	f.asked = append(f.asked, name)
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.passErr != nil {
		return nil, f.passErr
	}
	return secret.FromBytes([]byte(f.password)), nil
}

// helperScript plays the helper side of a conversation.
type helperScript func(in *bufio.Reader, out io.Writer)

func fakeHelper(script helperScript) (Starter, *[]string) {
	var users []string
	return func(ctx context.Context, user string) (*Process, error) {
		users = append(users, user)
		inR, inW := io.Pipe()
		outR, outW := io.Pipe()
		done := make(chan struct{})
		go func() {
			defer close(done)
			defer outW.Close()
			script(bufio.NewReader(inR), outW)
			_, _ = io.Copy(io.Discard, inR)
		}()
		return &Process{Stdin: inW, Stdout: outR, Wait: func() error { <-done; return nil }}, nil
	}, &users
}

func readLine(in *bufio.Reader) string {
	line, _ := in.ReadString('\n')
	return strings.TrimSuffix(line, "\n")
}

func TestAuthenticate_Success(t *testing.T) {
	var gotCookie, gotPassword, gotEcho string
	start, users := fakeHelper(func(in *bufio.Reader, out io.Writer) {
		gotCookie = readLine(in)
		io.WriteString(out, "PAM_TEXT_INFO Authenticating\n")
		io.WriteString(out, "PAM_PROMPT_ECHO_ON login: \n")
		gotEcho = readLine(in)
		io.WriteString(out, "PAM_PROMPT_ECHO_OFF Password: \n")
		gotPassword = readLine(in)
		io.WriteString(out, "SUCCESS\n")
	})
	l := &fakeListener{password: "hunter2"}

	err := Authenticate(context.Background(), start, l, "alice", "cookie-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, *users)
	assert.Equal(t, "cookie-1", gotCookie)
	assert.Equal(t, "alice", gotEcho)
	assert.Equal(t, "hunter2", gotPassword)
	assert.Equal(t, []string{"alice"}, l.asked)
}

func TestAuthenticate_Failure(t *testing.T) {
	start, _ := fakeHelper(func(in *bufio.Reader, out io.Writer) {
		readLine(in)
		io.WriteString(out, "PAM_PROMPT_ECHO_OFF Password: \n")
		readLine(in)
		io.WriteString(out, "PAM_ERROR_MSG Authentication failure\n")
		io.WriteString(out, "FAILURE\n")
	})
	err := Authenticate(context.Background(), start, &fakeListener{password: "wrong"}, "alice", "c")
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Contains(t, err.Error(), "Authentication failure")
}

func TestAuthenticate_PasswordCancelled(t *testing.T) {
	start, _ := fakeHelper(func(in *bufio.Reader, out io.Writer) {
		readLine(in)
		io.WriteString(out, "PAM_PROMPT_ECHO_OFF Password: \n")
		readLine(in)
	})
	err := Authenticate(context.Background(), start, &fakeListener{passErr: agent.ErrCancelled}, "alice", "c")
	assert.ErrorIs(t, err, agent.ErrCancelled)
}

func TestAuthenticate_HelperExitsEarly(t *testing.T) {
	start, _ := fakeHelper(func(in *bufio.Reader, out io.Writer) {
		readLine(in)
	})
	err := Authenticate(context.Background(), start, &fakeListener{}, "alice", "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without a result")
}

func TestAuthenticate_StartError(t *testing.T) {
	boom := errors.New("exec format error")
	start := func(ctx context.Context, user string) (*Process, error) { return nil, boom }
	assert.ErrorIs(t, Authenticate(context.Background(), start, &fakeListener{}, "alice", "c"), boom)
}

func newTestAgent(l agent.Listener, start Starter) *Agent {
	base, stop := context.WithCancel(context.Background())
	return &Agent{
		bridge:   agent.NewBridge(),
		listener: l,
		opts: Options{
			Helper: start,
			LookupUser: func(uid uint32) (string, error) {
				switch uid {
				case 0:
					return "root", nil
				case 1000:
					return "alice", nil
				}
				return "", errors.New("unknown uid")
			},
		},
		cancels: make(map[string]context.CancelFunc),
		base:    base,
		stop:    stop,
	}
}

func unixUser(uid uint32) identity {
	return identity{Kind: "unix-user", Details: map[string]dbus.Variant{"uid": dbus.MakeVariant(uid)}}
}

func TestAgent_BeginAuthentication(t *testing.T) {
	start, users := fakeHelper(func(in *bufio.Reader, out io.Writer) {
		readLine(in)
		io.WriteString(out, "PAM_PROMPT_ECHO_OFF Password: \n")
		readLine(in)
		io.WriteString(out, "SUCCESS\n")
	})
	l := &fakeListener{password: "pw"}
	a := newTestAgent(l, start)
	e := &exported{a: a}

	ids := []identity{
		{Kind: "unix-group", Details: map[string]dbus.Variant{"gid": dbus.MakeVariant(uint32(10))}},
		unixUser(0),
		unixUser(4242),
		unixUser(1000),
	}
	derr := e.BeginAuthentication("org.freedesktop.udisks2.filesystem-mount", "msg", "", nil, "cookie", ids)
	assert.Nil(t, derr)
	assert.Equal(t, []string{"root", "alice"}, l.users)
	assert.Equal(t, []string{"root"}, *users)
}

func TestAgent_NoIdentitiesCancels(t *testing.T) {
	start, _ := fakeHelper(func(in *bufio.Reader, out io.Writer) {})
	a := newTestAgent(&fakeListener{}, start)
	derr := (&exported{a: a}).BeginAuthentication("action", "", "", nil, "cookie", nil)
	require.NotNil(t, derr)
	assert.Equal(t, errCancelled, derr.Name)
}

func TestAgent_CancelAuthentication(t *testing.T) {
	start, _ := fakeHelper(func(in *bufio.Reader, out io.Writer) {
		readLine(in)
		io.WriteString(out, "PAM_PROMPT_ECHO_OFF Password: \n")
		readLine(in)
	})
	l := &fakeListener{block: true}
	a := newTestAgent(l, start)
	e := &exported{a: a}

	result := make(chan *dbus.Error, 1)
	go func() {
		result <- e.BeginAuthentication("action", "", "", nil, "cookie-7", []identity{unixUser(1000)})
	}()

	require.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.asked) == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.Nil(t, e.CancelAuthentication("unknown-cookie"))
	assert.Nil(t, e.CancelAuthentication("cookie-7"))

	select {
	case derr := <-result:
		require.NotNil(t, derr)
		assert.Equal(t, errCancelled, derr.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("authentication not cancelled")
	}
}

func TestDBusError(t *testing.T) {
	assert.Nil(t, dbusError(nil))
	assert.Equal(t, errCancelled, dbusError(agent.ErrCancelled).Name)
	assert.Equal(t, errCancelled, dbusError(context.Canceled).Name)
	failed := dbusError(ErrAuthFailed)
	assert.Equal(t, errFailed, failed.Name)
	assert.Equal(t, ErrAuthFailed.Error(), failed.Error())
}

func TestParseStartTime(t *testing.T) {
	stat := "4242 (my (odd) prog) S 1 4242 4242 0 -1 4194560 1000 0 0 0 10 5 0 0 20 0 1 0 987654 12345678 300"
	v, err := parseStartTime(stat)
	require.NoError(t, err)
	assert.Equal(t, uint64(987654), v)

	_, err = parseStartTime("garbage")
	assert.Error(t, err)
	_, err = parseStartTime("1 (x) S 1 2")
	assert.Error(t, err)
}

func TestUnixUsers(t *testing.T) {
	ids := []identity{
		unixUser(1000),
		{Kind: "unix-user", Details: map[string]dbus.Variant{}},
		{Kind: "unix-user", Details: map[string]dbus.Variant{"uid": dbus.MakeVariant("nope")}},
		{Kind: "unix-group", Details: map[string]dbus.Variant{"gid": dbus.MakeVariant(uint32(1))}},
		unixUser(0),
	}
	assert.Equal(t, []uint32{1000, 0}, unixUsers(ids))
}

func TestFindHelper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "polkit-agent-helper-1")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))

	got, err := FindHelper(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = FindHelper(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestNew_AttachesBridge(t *testing.T) {
	b := agent.NewBridge()
	start := func(ctx context.Context, user string) (*Process, error) { return nil, errors.New("unused") }

	_, err := New(nil, b, Options{Helper: start})
	require.NoError(t, err)

	// Run never started, so the shutdown handshake waits for an ack
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, b.Shutdown(ctx), context.DeadlineExceeded)

	_, err = New(nil, b, Options{Helper: start})
	assert.Error(t, err, "a bridge serves one agent")
}
