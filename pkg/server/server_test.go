package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/sqlchat/internal/agent"
	"github.com/agentoven/sqlchat/internal/config"
)

type stubAgent struct{}

func (stubAgent) Invoke(context.Context, agent.Request) (*agent.Response, error) {
	return &agent.Response{Completion: "42"}, nil
}

type stubSTS struct {
	account string
	err     error
}

func (s stubSTS) GetCallerIdentity(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &sts.GetCallerIdentityOutput{Account: aws.String(s.account)}, nil
}

func TestAccountID(t *testing.T) {
	assert.Equal(t, "123456789012", accountID(context.Background(), stubSTS{account: "123456789012"}))
	assert.Equal(t, "unknown", accountID(context.Background(), stubSTS{err: errors.New("no credentials")}))
}

func TestNewWithDeployment(t *testing.T) {
	t.Setenv("QUESTIONS_FILE", "")
	t.Setenv("OTEL_ENABLED", "false")
	cfg := config.Load()

	srv, err := NewWithDeployment(context.Background(), cfg, Deployment{
		Agent:     stubAgent{},
		Region:    "eu-west-1",
		AccountID: "123456789012",
	})
	require.NoError(t, err)
	t.Cleanup(func() { srv.ShutdownFunc(context.Background()) })

	assert.Equal(t, cfg.Port, srv.Port)

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Region: eu-west-1")
	assert.Equal(t, 1, srv.Sessions.Len())
}

func TestNewWithDeployment_BadQuestionsFile(t *testing.T) {
	t.Setenv("QUESTIONS_FILE", t.TempDir()+"/missing.yaml")
	t.Setenv("OTEL_ENABLED", "false")

	_, err := NewWithDeployment(context.Background(), config.Load(), Deployment{Agent: stubAgent{}})
	assert.Error(t, err)
}

func TestNewWithDeployment_BadQuestionsFileShutsDownTelemetry(t *testing.T) {
	t.Setenv("QUESTIONS_FILE", t.TempDir()+"/missing.yaml")

	shutdowns := 0
	orig := initTelemetry
	initTelemetry = func(context.Context, config.TelemetryConfig, string) (func(context.Context) error, error) {
		return func(context.Context) error {
			shutdowns++
			return nil
		}, nil
	}
	t.Cleanup(func() { initTelemetry = orig })

	_, err := NewWithDeployment(context.Background(), config.Load(), Deployment{Agent: stubAgent{}})
	require.Error(t, err)
	assert.Equal(t, 1, shutdowns)
}

func TestSweepInterval(t *testing.T) {
	assert.Equal(t, time.Second, sweepInterval(time.Nanosecond))
	assert.Equal(t, time.Second, sweepInterval(0))
	assert.Equal(t, 6*time.Hour, sweepInterval(12*time.Hour))
}
