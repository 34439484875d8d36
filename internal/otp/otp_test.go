package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"standard message", "Your Unifi OTP is 482913. Do not share it.", "482913", true},
		{"colon form", "OTP: 109283", "109283", true},
		{"bare six digits", "login code 773401 expires soon", "773401", true},
		{"five digits only", "code 12345", "", false},
		{"seven digits", "ref 1234567", "", false},
		{"no digits", "please verify your login", "", false},
		{"prefers labelled over bare", "ref 999999 ... OTP is 482913", "482913", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractCode(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

type fakeSource struct {
	name string
	code string
	err  error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) WaitForCode(ctx context.Context, notBefore time.Time) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.code, nil
}

func TestResolverFirstSourceWins(t *testing.T) {
	r := NewResolver(
		&fakeSource{name: "telegram", code: "111111"},
		&fakeSource{name: "gmail", code: "222222"},
	)
	code, err := r.Resolve(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "111111", code)
}

func TestResolverFallsBackToSecondSource(t *testing.T) {
	r := NewResolver(
		&fakeSource{name: "telegram", err: errors.New("timeout")},
		&fakeSource{name: "gmail", code: "654321"},
	)
	code, err := r.Resolve(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "654321", code)
}

func TestResolverAllSourcesFail(t *testing.T) {
	r := NewResolver(
		&fakeSource{name: "telegram", err: errors.New("timeout")},
		&fakeSource{name: "gmail", err: errors.New("unauthorized")},
	)
	_, err := r.Resolve(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrNoCode)
}

func TestResolverNoSources(t *testing.T) {
	r := NewResolver()
	_, err := r.Resolve(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrNoCode)
}

func TestResolverCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewResolver(&fakeSource{name: "telegram", code: "111111"})
	_, err := r.Resolve(ctx, time.Now())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPollIntervalBacksOff(t *testing.T) {
	tests := []struct {
		elapsed time.Duration
		want    time.Duration
	}{
		{0, 3 * time.Second},
		{59 * time.Second, 3 * time.Second},
		{time.Minute, 10 * time.Second},
		{4 * time.Minute, 10 * time.Second},
		{5 * time.Minute, 30 * time.Second},
		{time.Hour, 30 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pollInterval(tt.elapsed), "elapsed %s", tt.elapsed)
	}
}
