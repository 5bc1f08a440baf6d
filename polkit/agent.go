// Package polkit registers the session as the polkit authentication agent
// for its own process and answers authentication requests through the
// agent bridge.
package polkit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"strconv"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/kastheco/mountie/agent"
	"github.com/kastheco/mountie/log"
)

const (
	authorityName  = "org.freedesktop.PolicyKit1"
	authorityPath  = dbus.ObjectPath("/org/freedesktop/PolicyKit1/Authority")
	authorityIface = "org.freedesktop.PolicyKit1.Authority"

	agentIface = "org.freedesktop.PolicyKit1.AuthenticationAgent"
	// ObjectPath is where the agent is exported.
	ObjectPath = dbus.ObjectPath("/org/kastheco/mountie/AuthenticationAgent")

	errCancelled = "org.freedesktop.PolicyKit1.Error.Cancelled"
	errFailed    = "org.freedesktop.PolicyKit1.Error.Failed"

	unregisterTimeout = 2 * time.Second
)

// Options configures an Agent.
type Options struct {
	// Helper starts the setuid conversation helper. Defaults to the binary
	// found by FindHelper("").
	Helper Starter
	// Locale is passed to the authority. Defaults to $LANG.
	Locale string
	// LookupUser maps a uid to a user name. Defaults to os/user.
	LookupUser func(uid uint32) (string, error)
}

// Agent is a polkit authentication agent.
type Agent struct {
	conn     *dbus.Conn
	bridge   *agent.Bridge
	listener agent.Listener
	opts     Options

	// authMu serializes conversations; polkit sessions are sequential.
	authMu sync.Mutex

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	base    context.Context
	stop    context.CancelFunc
}

// New creates an agent serving bridge and attaches it, so a session shutdown
// waits for Run to acknowledge even if Run has not started yet.
func New(conn *dbus.Conn, bridge *agent.Bridge, opts Options) (*Agent, error) {
	if opts.Helper == nil {
		path, err := FindHelper("")
		if err != nil {
			return nil, err
		}
		opts.Helper = ExecHelper(path)
	}
	if err := bridge.Attach(); err != nil {
		return nil, err
	}
	if opts.Locale == "" {
		opts.Locale = os.Getenv("LANG")
	}
	if opts.LookupUser == nil {
		opts.LookupUser = lookupUser
	}
	base, stop := context.WithCancel(context.Background())
	return &Agent{
		conn:     conn,
		bridge:   bridge,
		listener: bridge,
		opts:     opts,
		cancels:  make(map[string]context.CancelFunc),
		base:     base,
		stop:     stop,
	}, nil
}

func lookupUser(uid uint32) (string, error) {
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

// Run registers the agent and serves requests until the session stops the
// bridge, ctx is cancelled or the bus connection is lost. The last two close
// the bridge. Registration failures are returned without closing it, so the
// session keeps running without an agent.
func (a *Agent) Run(ctx context.Context) error {
	defer a.bridge.Ack()

	if err := a.conn.Export(&exported{a: a}, ObjectPath, agentIface); err != nil {
		return fmt.Errorf("export authentication agent: %w", err)
	}
	defer a.conn.Export(nil, ObjectPath, agentIface)

	subj, err := processSubject()
	if err != nil {
		return err
	}
	err = a.conn.Object(authorityName, authorityPath).CallWithContext(ctx,
		authorityIface+".RegisterAuthenticationAgent", 0, subj, a.opts.Locale, string(ObjectPath)).Err
	if err != nil {
		return fmt.Errorf("register authentication agent: %w", err)
	}
	log.InfoLog.Printf("registered polkit agent at %s", ObjectPath)

	select {
	case <-a.bridge.Stop():
	case <-ctx.Done():
		a.bridge.Close()
	case <-a.conn.Context().Done():
		log.ErrorLog.Printf("system bus connection lost")
		a.bridge.Close()
	}
	a.stop()

	uctx, cancel := context.WithTimeout(context.Background(), unregisterTimeout)
	defer cancel()
	err = a.conn.Object(authorityName, authorityPath).CallWithContext(uctx,
		authorityIface+".UnregisterAuthenticationAgent", 0, subj, string(ObjectPath)).Err
	if err != nil {
		log.WarningLog.Printf("unregister polkit agent: %v", err)
	}
	return nil
}

// authenticate handles one BeginAuthentication call.
func (a *Agent) authenticate(actionID, cookie string, ids []identity) error {
	ctx, cancel := context.WithCancel(a.base)
	defer cancel()
	a.mu.Lock()
	a.cancels[cookie] = cancel
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		delete(a.cancels, cookie)
		a.mu.Unlock()
	}()

	a.authMu.Lock()
	defer a.authMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	var names []string
	for _, uid := range unixUsers(ids) {
		name, err := a.opts.LookupUser(uid)
		if err != nil {
			log.WarningLog.Printf("polkit identity uid %d: %v", uid, err)
			continue
		}
		names = append(names, name)
	}

	log.InfoLog.Printf("authentication requested for %s", actionID)
	choice, err := a.listener.ChooseUser(ctx, names)
	if err != nil {
		return err
	}
	return Authenticate(ctx, a.opts.Helper, a.listener, choice.Name, cookie)
}

func (a *Agent) cancelAuthentication(cookie string) {
	a.mu.Lock()
	cancel, ok := a.cancels[cookie]
	a.mu.Unlock()
	if ok {
		cancel()
	}
}

// dbusError maps a conversation error to the error polkit expects.
func dbusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, agent.ErrCancelled) || errors.Is(err, context.Canceled) {
		return dbus.NewError(errCancelled, []interface{}{"Authentication was cancelled"})
	}
	return dbus.NewError(errFailed, []interface{}{err.Error()})
}

// exported is the object served on the bus. Only its methods are visible
// to callers.
type exported struct {
	a *Agent
}

func (e *exported) BeginAuthentication(actionID, message, iconName string, details map[string]string, cookie string, identities []identity) *dbus.Error {
	err := e.a.authenticate(actionID, cookie, identities)
	if err != nil {
		log.WarningLog.Printf("authentication for %s: %v", actionID, err)
	}
	return dbusError(err)
}

func (e *exported) CancelAuthentication(cookie string) *dbus.Error {
	e.a.cancelAuthentication(cookie)
	return nil
}
