package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/rpc"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
)

// testEnv is a running server backed by a temporary database.
type testEnv struct {
	url     string
	store   *sqlite.SQLiteStore
	metrics *metrics.Metrics
}

// testUser is a registered account and its session token.
type testUser struct {
	ID    string
	Email string
	Token string
}

// setupTestServer wires every service behind the real interceptor chain.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	m := metrics.New()
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	authenticator := auth.NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)

	interceptors := connect.WithInterceptors(
		middleware.LoggingInterceptor(m),
		middleware.RequireAuth(jwtManager, PublicProcedures...),
	)

	mux := http.NewServeMux()
	rpc.Mount(mux, NewAuthService(authenticator, jwtManager, store, nil).Routes(interceptors))
	rpc.Mount(mux, NewGroupService(store, m).Routes(interceptors))
	rpc.Mount(mux, NewExpenseService(store, m).Routes(interceptors))
	rpc.Mount(mux, NewSettlementService(store, m).Routes(interceptors))
	rpc.Mount(mux, NewBalanceService(store, m).Routes(interceptors))

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	return &testEnv{url: server.URL, store: store, metrics: m}
}

// call invokes procedure with an optional bearer token.
func call[Res, Req any](t *testing.T, env *testEnv, procedure, token string, msg *Req) (*Res, error) {
	t.Helper()

	client := rpc.NewClient[Req, Res](http.DefaultClient, env.url, procedure)
	req := connect.NewRequest(msg)
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	resp, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// register creates an account named after displayName.
func register(t *testing.T, env *testEnv, displayName string) testUser {
	t.Helper()

	email := displayName + "@example.com"
	resp, err := call[SessionResponse](t, env, ProcedureRegister, "", &RegisterRequest{
		Email:       email,
		DisplayName: displayName,
		Password:    "correct horse battery",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)

	return testUser{ID: resp.User.ID, Email: resp.User.Email, Token: resp.Token}
}

// createGroup creates a group owned by owner containing the other users.
func createGroup(t *testing.T, env *testEnv, owner testUser, others ...testUser) *Group {
	t.Helper()

	ids := make([]string, len(others))
	for i, u := range others {
		ids[i] = u.ID
	}
	resp, err := call[GroupResponse](t, env, ProcedureCreateGroup, owner.Token, &CreateGroupRequest{
		Name:    "Lisbon trip",
		Type:    "trip",
		Members: ids,
	})
	require.NoError(t, err)
	return resp.Group
}

// equalParticipants lists users for an equal split.
func equalParticipants(users ...testUser) []Participant {
	out := make([]Participant, len(users))
	for i, u := range users {
		out[i] = Participant{PersonID: u.ID}
	}
	return out
}

func requireCode(t *testing.T, err error, code connect.Code) {
	t.Helper()

	require.Error(t, err)
	require.Equal(t, code, connect.CodeOf(err), "error: %v", err)
}
