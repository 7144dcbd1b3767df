package oauth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commsware/channel-whatsapp/internal/accounts"
	"github.com/commsware/channel-whatsapp/internal/tenancy"
	"github.com/commsware/channel-whatsapp/internal/whatsapp"
)

type fakeGraph struct {
	exchangeErr   error
	exchangeCalls int
	token         string
	businesses    []whatsapp.Business
	phoneNumbers  map[string][]whatsapp.PhoneNumber
	phoneErrs     map[string]error
}

func (f *fakeGraph) AuthorizationURL(state string) string {
	return "https://www.facebook.com/v21.0/dialog/oauth?state=" + state
}

func (f *fakeGraph) ExchangeCode(_ context.Context, code string) (string, error) {
	f.exchangeCalls++
	if f.exchangeErr != nil {
		return "", f.exchangeErr
	}
	return f.token, nil
}

func (f *fakeGraph) ListBusinesses(_ context.Context, _ string) ([]whatsapp.Business, error) {
	return f.businesses, nil
}

func (f *fakeGraph) ListPhoneNumbers(_ context.Context, _ string, businessID string) ([]whatsapp.PhoneNumber, error) {
	if err := f.phoneErrs[businessID]; err != nil {
		return nil, err
	}
	return f.phoneNumbers[businessID], nil
}

type fakeCreator struct {
	params    accounts.CreateParams
	channelID string
	err       error
}

func (f *fakeCreator) CreateChannel(_ context.Context, params accounts.CreateParams) (string, error) {
	f.params = params
	if f.err != nil {
		return "", f.err
	}
	return f.channelID, nil
}

func newTestFlow(t *testing.T, graph *fakeGraph, creator *fakeCreator) (*Flow, *SessionStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := NewSessionStore(client, time.Minute)
	return NewFlow(graph, sessions, creator, nil), sessions
}

func discoveryGraph() *fakeGraph {
	return &fakeGraph{
		token: "tok-1",
		businesses: []whatsapp.Business{
			{ID: "B1", Name: "Acme"},
			{ID: "B2", Name: "Globex"},
		},
		phoneNumbers: map[string][]whatsapp.PhoneNumber{
			"B1": {{ID: "PN1", DisplayPhoneNumber: "+49 151 11111", VerifiedName: "Acme"}},
			"B2": {{ID: "PN2", DisplayPhoneNumber: "+49 151 22222", VerifiedName: "Globex"}},
		},
	}
}

func beginAndExtractState(t *testing.T, flow *Flow, flowID string) string {
	t.Helper()
	authURL, err := flow.BeginAuthorization(context.Background(), flowID)
	require.NoError(t, err)
	_, state, found := strings.Cut(authURL, "state=")
	require.True(t, found)
	return state
}

func TestFlowHappyPath(t *testing.T) {
	graph := discoveryGraph()
	creator := &fakeCreator{channelID: "whatsapp:abc"}
	flow, _ := newTestFlow(t, graph, creator)
	ctx := context.Background()

	state := beginAndExtractState(t, flow, "flow-1")
	require.NoError(t, flow.HandleCallback(ctx, "flow-1", state, "the-code", ""))

	candidates, err := flow.Candidates(ctx, "flow-1")
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	ctx = tenancy.WithTeamID(ctx, "t1")
	ctx = tenancy.WithUserID(ctx, "u1")
	channelID, err := flow.CreateAccount(ctx, "flow-1", CreateAccountParams{PhoneNumberID: "PN2"})
	require.NoError(t, err)
	assert.Equal(t, "whatsapp:abc", channelID)

	assert.Equal(t, "PN2", creator.params.PhoneNumberID)
	assert.Equal(t, "+49 151 22222", creator.params.PhoneNumber)
	assert.Equal(t, "Globex", creator.params.Name)
	assert.Equal(t, "tok-1", creator.params.APIToken)
	assert.Equal(t, "t1", creator.params.TeamID)
	assert.Equal(t, "u1", creator.params.CreatedByUserID)
	// Last business that yielded numbers wins.
	assert.Equal(t, "B2", creator.params.BusinessID)

	// Session is gone once the account exists.
	_, err = flow.Candidates(ctx, "flow-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestFlowStateMismatch(t *testing.T) {
	flow, _ := newTestFlow(t, discoveryGraph(), &fakeCreator{})
	ctx := context.Background()

	beginAndExtractState(t, flow, "flow-1")
	err := flow.HandleCallback(ctx, "flow-1", "forged-state", "code", "")
	assert.ErrorIs(t, err, ErrStateMismatch)
}

func TestFlowStateConsumedOnFailure(t *testing.T) {
	flow, _ := newTestFlow(t, discoveryGraph(), &fakeCreator{})
	ctx := context.Background()

	state := beginAndExtractState(t, flow, "flow-1")
	require.ErrorIs(t, flow.HandleCallback(ctx, "flow-1", "wrong", "code", ""), ErrStateMismatch)

	// Replay with the correct state fails too: the state was consumed.
	err := flow.HandleCallback(ctx, "flow-1", state, "code", "")
	assert.ErrorIs(t, err, ErrStateMismatch)
}

func TestFlowProviderDenied(t *testing.T) {
	flow, _ := newTestFlow(t, discoveryGraph(), &fakeCreator{})
	ctx := context.Background()

	state := beginAndExtractState(t, flow, "flow-1")
	err := flow.HandleCallback(ctx, "flow-1", state, "", "access_denied")
	require.ErrorIs(t, err, ErrProviderDenied)
	assert.Contains(t, err.Error(), "access_denied")
}

func TestFlowCallbackMissingCode(t *testing.T) {
	graph := discoveryGraph()
	flow, _ := newTestFlow(t, graph, &fakeCreator{})
	ctx := context.Background()

	state := beginAndExtractState(t, flow, "flow-1")
	err := flow.HandleCallback(ctx, "flow-1", state, "", "")
	require.ErrorIs(t, err, ErrNoCode)
	// The failure is decided locally; the token endpoint is never hit.
	assert.Equal(t, 0, graph.exchangeCalls)
}

func TestFlowForgedErrorParam(t *testing.T) {
	flow, _ := newTestFlow(t, discoveryGraph(), &fakeCreator{})
	ctx := context.Background()

	// A denial on a callback with a bad state reports the state problem,
	// not the denial.
	beginAndExtractState(t, flow, "flow-1")
	err := flow.HandleCallback(ctx, "flow-1", "forged", "", "access_denied")
	assert.ErrorIs(t, err, ErrStateMismatch)
}

func TestFlowUnknownSession(t *testing.T) {
	flow, _ := newTestFlow(t, discoveryGraph(), &fakeCreator{})
	err := flow.HandleCallback(context.Background(), "never-started", "s", "c", "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestFlowDiscoverySkipsBrokenBusiness(t *testing.T) {
	graph := discoveryGraph()
	graph.phoneErrs = map[string]error{"B2": errors.New("permission denied")}
	flow, _ := newTestFlow(t, graph, &fakeCreator{})
	ctx := context.Background()

	state := beginAndExtractState(t, flow, "flow-1")
	require.NoError(t, flow.HandleCallback(ctx, "flow-1", state, "code", ""))

	candidates, err := flow.Candidates(ctx, "flow-1")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "PN1", candidates[0].ID)
}

func TestFlowDiscoveryNoPhoneNumbers(t *testing.T) {
	graph := discoveryGraph()
	graph.phoneNumbers = map[string][]whatsapp.PhoneNumber{}
	flow, _ := newTestFlow(t, graph, &fakeCreator{})
	ctx := context.Background()

	state := beginAndExtractState(t, flow, "flow-1")
	err := flow.HandleCallback(ctx, "flow-1", state, "code", "")
	assert.ErrorIs(t, err, ErrNoPhoneNumbers)
}

func TestFlowCreateAccountUnknownSelection(t *testing.T) {
	flow, _ := newTestFlow(t, discoveryGraph(), &fakeCreator{})
	ctx := context.Background()

	state := beginAndExtractState(t, flow, "flow-1")
	require.NoError(t, flow.HandleCallback(ctx, "flow-1", state, "code", ""))

	_, err := flow.CreateAccount(ctx, "flow-1", CreateAccountParams{PhoneNumberID: "PN999"})
	assert.ErrorIs(t, err, ErrUnknownPhoneNumber)

	// Session survives a bad selection so the user can retry.
	_, err = flow.Candidates(ctx, "flow-1")
	require.NoError(t, err)
}

func TestSessionStoreExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := NewSessionStore(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, sessions.Save(ctx, "flow-1", &Session{State: "s"}))
	mr.FastForward(2 * time.Minute)

	_, err := sessions.Load(ctx, "flow-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
