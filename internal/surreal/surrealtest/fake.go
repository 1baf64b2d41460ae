// Package surrealtest provides an in-memory surreal.RPC for tests.
package surrealtest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/samber/lo"

	"murmur/internal/core"
	"murmur/internal/surreal"
)

type Call struct {
	Method string
	Args   []any
}

// Fake records every call and answers with the configured functions. Unset functions succeed with
// empty results.
type Fake struct {
	SigninFunc       func(creds surreal.Credentials) (string, error)
	SignupFunc       func(creds surreal.Credentials) (string, error)
	AuthenticateFunc func(token string) error
	QueryFunc        func(sql string, vars map[string]any) ([]surreal.QueryResult, error)
	RelateFunc       func(in, relation, out core.RecordID, data any) error
	DeleteFunc       func(thing core.RecordID) error
	LiveFunc         func(table string) (string, <-chan surreal.Notification, error)

	mu     sync.Mutex
	calls  []Call
	closed bool
}

var _ surreal.RPC = (*Fake)(nil)

func (f *Fake) record(method string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Method: method, Args: args})
	if f.closed {
		return surreal.ErrClosed
	}
	return nil
}

// Calls returns the recorded calls of the given methods, all calls when none are given.
func (f *Fake) Calls(methods ...string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()

	var calls []Call
	for _, c := range f.calls {
		if len(methods) == 0 || lo.Contains(methods, c.Method) {
			calls = append(calls, c)
		}
	}
	return calls
}

func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) Use(_ context.Context, namespace, database string) error {
	return f.record("use", namespace, database)
}

func (f *Fake) Signin(_ context.Context, creds surreal.Credentials) (string, error) {
	if err := f.record("signin", creds); err != nil {
		return "", err
	}
	if f.SigninFunc == nil {
		return "token", nil
	}
	return f.SigninFunc(creds)
}

func (f *Fake) Signup(_ context.Context, creds surreal.Credentials) (string, error) {
	if err := f.record("signup", creds); err != nil {
		return "", err
	}
	if f.SignupFunc == nil {
		return "token", nil
	}
	return f.SignupFunc(creds)
}

func (f *Fake) Authenticate(_ context.Context, token string) error {
	if err := f.record("authenticate", token); err != nil {
		return err
	}
	if f.AuthenticateFunc == nil {
		return nil
	}
	return f.AuthenticateFunc(token)
}

func (f *Fake) Invalidate(context.Context) error {
	return f.record("invalidate")
}

func (f *Fake) Query(_ context.Context, sql string, vars map[string]any) ([]surreal.QueryResult, error) {
	if err := f.record("query", sql, vars); err != nil {
		return nil, err
	}
	if f.QueryFunc == nil {
		return nil, nil
	}
	return f.QueryFunc(sql, vars)
}

func (f *Fake) Relate(_ context.Context, in, relation, out core.RecordID, data any) error {
	if err := f.record("relate", in, relation, out, data); err != nil {
		return err
	}
	if f.RelateFunc == nil {
		return nil
	}
	return f.RelateFunc(in, relation, out, data)
}

func (f *Fake) Delete(_ context.Context, thing core.RecordID) error {
	if err := f.record("delete", thing); err != nil {
		return err
	}
	if f.DeleteFunc == nil {
		return nil
	}
	return f.DeleteFunc(thing)
}

func (f *Fake) Live(_ context.Context, table string) (string, <-chan surreal.Notification, error) {
	if err := f.record("live", table); err != nil {
		return "", nil, err
	}
	if f.LiveFunc == nil {
		return "live", make(chan surreal.Notification), nil
	}
	return f.LiveFunc(table)
}

func (f *Fake) Kill(_ context.Context, liveID string) error {
	return f.record("kill", liveID)
}

func (f *Fake) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return surreal.ErrClosed
	}
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Results builds one OK statement result per value.
func Results(values ...any) []surreal.QueryResult {
	results := make([]surreal.QueryResult, 0, len(values))
	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			panic(err)
		}
		results = append(results, surreal.QueryResult{Status: "OK", Time: "1ms", Result: data})
	}
	return results
}
