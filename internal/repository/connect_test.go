package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var errHostNotReady = MarkTransient(errors.New(`could not translate host name "db" to address`))

func TestAcquire_ExhaustsAfterMaxAttempts(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	calls := 0
	dial := func(context.Context) (int, error) {
		calls++
		return 0, errHostNotReady
	}

	_, err := Acquire(context.Background(), dial, 3, 0, zap.New(core))
	require.ErrorIs(t, err, ErrConnectionExhausted)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, calls)

	retries := logs.FilterMessage("Database not ready yet, retrying").All()
	require.Len(t, retries, 2)
	assert.Equal(t, int64(1), retries[0].ContextMap()["attempt"])
	assert.Equal(t, int64(2), retries[1].ContextMap()["attempt"])
	assert.Equal(t, int64(3), retries[1].ContextMap()["max_attempts"])
}

func TestAcquire_SucceedsOnSecondAttempt(t *testing.T) {
	calls := 0
	dial := func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errHostNotReady
		}
		return "conn", nil
	}

	conn, err := Acquire(context.Background(), dial, 3, 0, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "conn", conn)
	assert.Equal(t, 2, calls)
}

func TestAcquire_PermanentErrorIsNotRetried(t *testing.T) {
	permanent := errors.New(`pq: password authentication failed for user "postgres"`)
	calls := 0
	dial := func(context.Context) (int, error) {
		calls++
		return 0, permanent
	}

	_, err := Acquire(context.Background(), dial, 5, time.Hour, zap.NewNop())
	require.ErrorIs(t, err, permanent)
	assert.NotErrorIs(t, err, ErrConnectionExhausted)
	assert.Equal(t, 1, calls)
}

func TestAcquire_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	dial := func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errHostNotReady
	}

	start := time.Now()
	_, err := Acquire(ctx, dial, 5, time.Hour, zap.NewNop())
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Minute)
	assert.Equal(t, 1, calls)
}

func TestConnector_UnreachableHostExhausts(t *testing.T) {
	conn := NewConnector(DriverPostgres, "postgres://u:p@127.0.0.1:1/db?sslmode=disable&connect_timeout=1", 2, 0, zap.NewNop())

	_, err := conn.Acquire(context.Background())
	require.ErrorIs(t, err, ErrConnectionExhausted)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("syntax error at or near SELECT"), false},
		{"marked", MarkTransient(errors.New("x")), true},
		{"wrapped marked", fmt.Errorf("connect: %w", MarkTransient(errors.New("x"))), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestClassifyDialError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"dns", &net.DNSError{Err: "no such host", Name: "db"}, true},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("i/o timeout")}, true},
		{"refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"pq connection exception", &pq.Error{Code: "08006"}, true},
		{"pq starting up", &pq.Error{Code: "57P03"}, true},
		{"pq auth failure", &pq.Error{Code: "28P01"}, false},
		{"legacy text", errors.New("could not connect: Is the server running on host \"db\""), true},
		{"other", errors.New("database \"medical\" does not exist"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyDialError(tt.err)
			assert.Equal(t, tt.want, IsTransient(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
	assert.NoError(t, classifyDialError(nil))
}
