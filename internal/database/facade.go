package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
	"resty.dev/v3"

	"murmur/internal/config"
	"murmur/internal/core"
	"murmur/internal/metrics"
	"murmur/internal/session"
	"murmur/internal/surreal"
)

const (
	sharedKey            = "shared"
	defaultFlightTimeout = 10 * time.Second
)

var tracer = otel.Tracer("murmur/internal/database")

// Dialer opens a new RPC connection to the database.
type Dialer func(ctx context.Context, endpoint string) (surreal.RPC, error)

// AuthConn is a connection authenticated as the session user. It must not be closed by the caller.
type AuthConn struct {
	surreal.RPC

	Username string
	UserID   core.RecordID
}

type pooled struct {
	conn  *AuthConn
	token string
}

// Facade hands out database connections. A single shared connection is used anonymously for signing in
// and signing up, every session gets its own authenticated connection.
type Facade struct {
	Logger   *slog.Logger
	Config   *config.Config
	Sessions core.SessionStore

	// Dial defaults to a websocket connection with metrics.
	Dial Dialer
	Now  func() time.Time

	http  *surreal.HTTPClient
	group singleflight.Group

	mu     sync.Mutex
	shared surreal.RPC
	pool   map[string]*pooled
}

func (f *Facade) Init(_ context.Context) error {
	f.Logger = f.Logger.With("component", "database.Facade")
	f.pool = map[string]*pooled{}

	if f.Now == nil {
		f.Now = time.Now
	}

	if f.Dial == nil {
		f.Dial = func(ctx context.Context, endpoint string) (surreal.RPC, error) {
			return surreal.Dial(ctx, endpoint,
				surreal.WithTimeout(f.Config.RequestTimeout),
				surreal.WithObserver(metrics.ObserveRPC),
				surreal.WithLogger(f.Logger),
			)
		}
	}

	httpEndpoint := f.Config.HTTPEndpoint
	if httpEndpoint == "" {
		httpEndpoint = HTTPEndpoint(f.Config.Endpoint)
	}
	if httpEndpoint != "" {
		f.http = surreal.NewHTTPClient(httpEndpoint, &surreal.ClientConfig{
			TransportSettings:   surreal.DefaultConfig.TransportSettings,
			ResponseMiddlewares: []resty.ResponseMiddleware{metrics.HTTPMiddleware},
		})
	}

	return nil
}

func (f *Facade) HealthCheck(ctx context.Context) error {
	if f.http == nil {
		return nil
	}
	return f.http.Health(ctx)
}

func (f *Facade) Shutdown(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	if f.shared != nil {
		errs = append(errs, f.shared.Close())
		f.shared = nil
	}
	for key, p := range f.pool {
		errs = append(errs, p.conn.Close())
		delete(f.pool, key)
	}
	if f.http != nil {
		errs = append(errs, f.http.Close())
	}

	return errors.Join(errs...)
}

// Version returns the version reported by the database HTTP API.
func (f *Facade) Version(ctx context.Context) (string, error) {
	if f.http == nil {
		return "", fmt.Errorf("%w: no http endpoint configured", core.ErrUnknown)
	}
	return f.http.Version(ctx)
}

// Connect returns the shared anonymous connection, dialing it on first use. Concurrent callers share one
// dial attempt.
func (f *Facade) Connect(ctx context.Context) (surreal.RPC, error) {
	f.mu.Lock()
	if f.shared != nil && f.shared.Err() == nil {
		conn := f.shared
		f.mu.Unlock()
		return conn, nil
	}
	f.mu.Unlock()

	conn, err := f.flight(ctx, sharedKey, func(ctx context.Context) (any, error) {
		f.mu.Lock()
		if f.shared != nil && f.shared.Err() == nil {
			conn := f.shared
			f.mu.Unlock()
			return conn, nil
		}
		f.mu.Unlock()

		conn, err := f.open(ctx)
		if err != nil {
			return nil, err
		}

		f.mu.Lock()
		if f.shared != nil {
			_ = f.shared.Close()
		}
		f.shared = conn
		f.mu.Unlock()

		f.Logger.Debug("Shared connection established", "endpoint", f.Config.Endpoint)
		return conn, nil
	})
	if err != nil {
		return nil, err
	}

	return conn.(surreal.RPC), nil
}

// flight runs fn once for all concurrent callers of key. fn gets a context detached from the caller that
// started it, bounded by the request timeout. A caller giving up leaves fn running for the others.
func (f *Facade) flight(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, error) {
	timeout := f.Config.RequestTimeout
	if timeout <= 0 {
		timeout = defaultFlightTimeout
	}

	ch := f.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		return fn(ctx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Facade) open(ctx context.Context) (surreal.RPC, error) {
	conn, err := f.Dial(ctx, f.Config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrUnknown, err)
	}

	if err := conn.Use(ctx, f.Config.Namespace, f.Config.Database); err != nil {
		_ = conn.Close()
		return nil, surreal.Classify(err)
	}

	return conn, nil
}

func (f *Facade) credentials(username, password string) surreal.Credentials {
	return surreal.Credentials{
		Namespace: f.Config.Namespace,
		Database:  f.Config.Database,
		Access:    f.Config.Access,
		Vars: map[string]any{
			"username": username,
			"password": password,
		},
	}
}

// SignUp creates the user and stores the new session. Any rejection is reported as ErrAuth.
func (f *Facade) SignUp(ctx context.Context, username, password string) (token string, err error) {
	ctx, span := tracer.Start(ctx, "database.SignUp", trace.WithAttributes(attribute.String("username", username)))
	defer func() { endSpan(span, err) }()

	conn, err := f.Connect(ctx)
	if err != nil {
		return "", err
	}

	token, err = conn.Signup(ctx, f.credentials(username, password))
	f.invalidate(ctx, conn)
	if err != nil {
		f.Logger.Warn("Sign up failed", "username", username, "error", err)
		return "", fmt.Errorf("%w: %w", core.ErrAuth, err)
	}

	if err := f.Sessions.Put(ctx, core.Session{Username: username, Token: token}); err != nil {
		return "", err
	}

	f.Logger.Info("Signed up", "username", username)
	return token, nil
}

// SignIn authenticates the user and stores the session. Wrong credentials are reported as
// ErrInvalidCredentials, everything else as ErrUnknown.
func (f *Facade) SignIn(ctx context.Context, username, password string) (token string, err error) {
	ctx, span := tracer.Start(ctx, "database.SignIn", trace.WithAttributes(attribute.String("username", username)))
	defer func() { endSpan(span, err) }()

	conn, err := f.Connect(ctx)
	if err != nil {
		return "", err
	}

	token, err = conn.Signin(ctx, f.credentials(username, password))
	f.invalidate(ctx, conn)
	if err != nil {
		err = surreal.Classify(err)
		if !errors.Is(err, core.ErrInvalidCredentials) {
			err = fmt.Errorf("%w: %w", core.ErrUnknown, err)
		}
		return "", err
	}

	if err := f.Sessions.Put(ctx, core.Session{Username: username, Token: token}); err != nil {
		return "", err
	}

	f.Logger.Info("Signed in", "username", username)
	return token, nil
}

func (f *Facade) invalidate(ctx context.Context, conn surreal.RPC) {
	if err := conn.Invalidate(ctx); err != nil {
		f.Logger.Warn("Failed to invalidate shared connection, dropping it", "error", err)

		f.mu.Lock()
		if f.shared == conn {
			f.shared = nil
		}
		f.mu.Unlock()
		_ = conn.Close()
	}
}

// CurrentSession returns the stored session or ErrUnauthenticated.
func (f *Facade) CurrentSession(ctx context.Context) (core.Session, error) {
	s, err := f.Sessions.Get(ctx)
	if err != nil {
		if errors.Is(err, core.ErrNoSession) {
			return core.Session{}, core.ErrUnauthenticated
		}
		return core.Session{}, fmt.Errorf("%w: %w", core.ErrUnknown, err)
	}
	return s, nil
}

// AuthenticatedConnection returns the connection of the stored session. It fails with ErrUnauthenticated
// when nobody is signed in, ErrTokenExpired when the token is no longer accepted and ErrUnknown otherwise.
func (f *Facade) AuthenticatedConnection(ctx context.Context) (conn *AuthConn, err error) {
	ctx, span := tracer.Start(ctx, "database.AuthenticatedConnection")
	defer func() { endSpan(span, err) }()

	s, err := f.CurrentSession(ctx)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("username", s.Username))

	if session.Expired(s.Token, f.Now()) {
		return nil, core.ErrTokenExpired
	}

	key := f.Config.Profile + "/" + s.Username

	f.mu.Lock()
	p, ok := f.pool[key]
	f.mu.Unlock()
	if ok && p.conn.Err() == nil {
		if p.token == s.Token {
			return p.conn, nil
		}
		return f.reauthenticate(ctx, p, s.Token)
	}

	res, err := f.flight(ctx, key, func(ctx context.Context) (any, error) {
		return f.authenticate(ctx, key, s)
	})
	if err != nil {
		return nil, err
	}
	return res.(*AuthConn), nil
}

func (f *Facade) authenticate(ctx context.Context, key string, s core.Session) (*AuthConn, error) {
	rpc, err := f.open(ctx)
	if err != nil {
		return nil, err
	}

	if err := rpc.Authenticate(ctx, s.Token); err != nil {
		_ = rpc.Close()
		return nil, authError(err)
	}

	results, err := rpc.Query(ctx, "RETURN $auth.id", nil)
	if err != nil {
		_ = rpc.Close()
		return nil, authError(err)
	}
	userID, err := surreal.Decode[core.RecordID](results, 0)
	if err != nil {
		_ = rpc.Close()
		return nil, fmt.Errorf("%w: %w", core.ErrUnknown, err)
	}

	conn := &AuthConn{RPC: rpc, Username: s.Username, UserID: userID}

	f.mu.Lock()
	if old, ok := f.pool[key]; ok {
		_ = old.conn.Close()
	}
	f.pool[key] = &pooled{conn: conn, token: s.Token}
	f.mu.Unlock()

	f.Logger.Debug("Session connection established", "username", s.Username, "user_id", userID.String())
	return conn, nil
}

func (f *Facade) reauthenticate(ctx context.Context, p *pooled, token string) (*AuthConn, error) {
	if err := p.conn.Authenticate(ctx, token); err != nil {
		return nil, authError(err)
	}

	f.mu.Lock()
	p.token = token
	f.mu.Unlock()

	return p.conn, nil
}

// SignOut removes the stored session and closes its connection.
func (f *Facade) SignOut(ctx context.Context) error {
	s, err := f.Sessions.Get(ctx)
	if err != nil && !errors.Is(err, core.ErrNoSession) {
		return err
	}

	if err := f.Sessions.Delete(ctx); err != nil {
		return err
	}

	if s.Username == "" {
		return nil
	}

	key := f.Config.Profile + "/" + s.Username

	f.mu.Lock()
	p, ok := f.pool[key]
	delete(f.pool, key)
	f.mu.Unlock()

	if ok {
		_ = p.conn.Invalidate(ctx)
		_ = p.conn.Close()
	}

	f.Logger.Info("Signed out", "username", s.Username)
	return nil
}

func authError(err error) error {
	if classified := surreal.Classify(err); errors.Is(classified, core.ErrTokenExpired) {
		return classified
	}
	return fmt.Errorf("%w: %w", core.ErrUnknown, err)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// HTTPEndpoint derives the HTTP API base of an RPC endpoint: wss://host/rpc becomes https://host.
func HTTPEndpoint(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return ""
	}

	switch u.Scheme {
	case "wss":
		u.Scheme = "https"
	case "ws":
		u.Scheme = "http"
	}
	u.Path = strings.TrimSuffix(strings.TrimSuffix(u.Path, "/"), "/rpc")
	u.RawQuery = ""

	return u.String()
}
