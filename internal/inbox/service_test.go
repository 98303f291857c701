package inbox

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/meltmail/internal/classify"
	"github.com/nhle/meltmail/internal/model"
	"github.com/nhle/meltmail/internal/provider"
	"github.com/nhle/meltmail/internal/session"
	"github.com/nhle/meltmail/internal/sync"
	"github.com/nhle/meltmail/tests/testutil"
)

// fakeAPI implements both the session and the inbox provider contracts.
type fakeAPI struct {
	mu         gosync.Mutex
	createErr  error
	listings   [][]model.MessageSummary
	listErr    error
	unauthOnce bool
	messages   map[string]*model.Message
	source     string
	tokens     int
	listCalls  int

	// byToken, when set for a token, is returned instead of listings.
	byToken map[string][]model.MessageSummary
	// listGates holds back listings for a token until closed.
	listGates   map[string]chan struct{}
	listStarted int
	// fetchGate holds back FetchMessage until closed; fetchStarted is
	// signalled as each fetch begins.
	fetchGate    chan struct{}
	fetchStarted chan struct{}
}

func (f *fakeAPI) ListDomains(context.Context) []string { return []string{"d.test"} }

func (f *fakeAPI) CreateAccount(_ context.Context, address, password string) (*provider.Account, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &provider.Account{Address: address, Password: password}, nil
}

func (f *fakeAPI) FetchToken(context.Context, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens++
	return "tok" + string(rune('0'+f.tokens)), nil
}

func (f *fakeAPI) ListMessages(_ context.Context, token string) ([]model.MessageSummary, error) {
	f.mu.Lock()
	f.listStarted++
	gate := f.listGates[token]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	if token == "" {
		return nil, &provider.FetchError{Op: "listing messages", Err: provider.ErrNoToken}
	}
	if f.unauthOnce {
		f.unauthOnce = false
		return nil, &provider.FetchError{Op: "listing messages", Status: 401, Err: errors.New("expired")}
	}
	if f.listErr != nil {
		return nil, &provider.FetchError{Op: "listing messages", Err: f.listErr}
	}
	if l, ok := f.byToken[token]; ok {
		return l, nil
	}
	if len(f.listings) == 0 {
		return []model.MessageSummary{}, nil
	}
	out := f.listings[0]
	if len(f.listings) > 1 {
		f.listings = f.listings[1:]
	}
	return out, nil
}

func (f *fakeAPI) FetchMessage(_ context.Context, token, id string) (*model.Message, error) {
	if f.fetchStarted != nil {
		f.fetchStarted <- struct{}{}
	}
	if f.fetchGate != nil {
		<-f.fetchGate
	}
	if token == "" {
		return nil, &provider.FetchError{Op: "fetching", Err: provider.ErrNoToken}
	}
	msg, ok := f.messages[id]
	if !ok {
		return nil, &provider.FetchError{Op: "fetching", Status: 404, Err: provider.ErrNotFound}
	}
	return msg, nil
}

func (f *fakeAPI) FetchSource(context.Context, string, string) (string, error) {
	return f.source, nil
}

type notice struct {
	message  string
	severity model.Severity
}

type detailCall struct {
	detail Detail
	otp    string
	found  bool
}

type recordingPresenter struct {
	mu      gosync.Mutex
	views   []View
	details []detailCall
	notices []notice
	ticks   []session.Countdown
}

func (p *recordingPresenter) RenderInbox(v View) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.views = append(p.views, v)
}

func (p *recordingPresenter) RenderMessageDetail(d Detail, code string, found bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.details = append(p.details, detailCall{d, code, found})
}

func (p *recordingPresenter) RenderCountdown(c session.Countdown) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ticks = append(p.ticks, c)
}

func (p *recordingPresenter) Notify(message string, severity model.Severity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, notice{message, severity})
}

func (p *recordingPresenter) lastView() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.views) == 0 {
		return View{}
	}
	return p.views[len(p.views)-1]
}

func (p *recordingPresenter) messages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.notices))
	for _, n := range p.notices {
		out = append(out, n.message)
	}
	return out
}

func newTestService(t *testing.T, api *fakeAPI, opts ...Option) (*Service, *recordingPresenter) {
	t.Helper()
	sess := session.New(api, session.WithTickInterval(time.Hour))
	p := &recordingPresenter{}
	svc := New(sess, api, p, opts...)
	t.Cleanup(svc.Close)
	return svc, p
}

func TestGenerateRendersAndNotifies(t *testing.T) {
	api := &fakeAPI{listings: [][]model.MessageSummary{{
		{ID: "m1", Subject: "Your code", Intro: "Use 482913"},
	}}}
	svc, p := newTestService(t, api)

	acct, err := svc.Generate(context.Background(), "Fox")
	require.NoError(t, err)
	assert.Equal(t, acct.Address, svc.Address())

	svc.poller.Wait()
	view := p.lastView()
	assert.True(t, view.HasSession())
	require.Len(t, view.Messages, 1)
	assert.Equal(t, model.CategoryOTP, view.Messages[0].Category)
	assert.False(t, view.Stale)

	assert.Contains(t, p.messages(), "New temporary email created!")
	assert.Contains(t, p.messages(), "1 new email")

	p.mu.Lock()
	require.NotEmpty(t, p.ticks)
	assert.True(t, p.ticks[0].Active)
	p.mu.Unlock()
}

func TestGenerateFailure(t *testing.T) {
	api := &fakeAPI{createErr: &provider.ProvisioningError{Address: "x", Status: 422}}
	svc, p := newTestService(t, api)

	_, err := svc.Generate(context.Background(), "fox")
	require.Error(t, err)
	assert.Empty(t, svc.Address())

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.notices, 1)
	assert.Contains(t, p.notices[0].message, "Failed to generate email: ")
	assert.Equal(t, model.SeverityError, p.notices[0].severity)
}

func TestRefreshWithoutSessionRendersEmptyInbox(t *testing.T) {
	api := &fakeAPI{}
	svc, p := newTestService(t, api)

	svc.Refresh()
	view := p.lastView()
	assert.False(t, view.HasSession())
	assert.Empty(t, view.Messages)
	assert.False(t, view.Stale)
	assert.Equal(t, 0, api.listCalls)
}

func TestNewMessagesNotifiedOnce(t *testing.T) {
	api := &fakeAPI{listings: [][]model.MessageSummary{
		{{ID: "a"}},
		{{ID: "b"}, {ID: "c"}, {ID: "a"}},
		{{ID: "b"}, {ID: "c"}, {ID: "a"}},
	}}
	svc, p := newTestService(t, api)

	_, err := svc.Generate(context.Background(), "fox")
	require.NoError(t, err)
	svc.poller.Wait()
	svc.Refresh()
	svc.poller.Wait()
	svc.Refresh()
	svc.poller.Wait()

	msgs := p.messages()
	assert.Contains(t, msgs, "1 new email")
	assert.Contains(t, msgs, "2 new emails")

	count := 0
	for _, m := range msgs {
		if m == "1 new email" || m == "2 new emails" {
			count++
		}
	}
	assert.Equal(t, 2, count)
	assert.Len(t, p.lastView().Messages, 3)
}

func TestFetchFailureMarksInboxStale(t *testing.T) {
	api := &fakeAPI{listings: [][]model.MessageSummary{{{ID: "a"}}}}
	svc, p := newTestService(t, api)

	_, err := svc.Generate(context.Background(), "fox")
	require.NoError(t, err)
	svc.poller.Wait()

	api.mu.Lock()
	api.listErr = errors.New("network down")
	api.mu.Unlock()

	svc.Refresh()
	svc.poller.Wait()

	view := p.lastView()
	assert.True(t, view.Stale)
	var fetchErr *provider.FetchError
	assert.ErrorAs(t, view.Err, &fetchErr)
	require.Len(t, view.Messages, 1, "last good listing is kept")
}

func TestUnauthorizedTriggersOneReauthentication(t *testing.T) {
	api := &fakeAPI{unauthOnce: true, listings: [][]model.MessageSummary{{{ID: "a"}}}}
	svc, p := newTestService(t, api)

	_, err := svc.Generate(context.Background(), "fox")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(p.lastView().Messages) == 1
	}, time.Second, time.Millisecond)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, 2, api.tokens)
	assert.Equal(t, "tok2", svc.session.Token())
}

func TestDeleteClearsState(t *testing.T) {
	api := &fakeAPI{listings: [][]model.MessageSummary{{{ID: "a"}}}}
	svc, p := newTestService(t, api)

	_, err := svc.Generate(context.Background(), "fox")
	require.NoError(t, err)
	svc.poller.Wait()

	svc.Delete()
	view := p.lastView()
	assert.False(t, view.HasSession())
	assert.Empty(t, view.Messages)
	assert.Contains(t, p.messages(), "Temporary email deleted")

	p.mu.Lock()
	last := p.ticks[len(p.ticks)-1]
	p.mu.Unlock()
	assert.Equal(t, "--:--", last.String())

	svc.mu.Lock()
	assert.Empty(t, svc.seen)
	svc.mu.Unlock()
}

func TestOpenOTPMessageExtractsCode(t *testing.T) {
	api := &fakeAPI{messages: map[string]*model.Message{
		"m1": {
			MessageSummary: model.MessageSummary{ID: "m1", Subject: "Your code"},
			Text:           "Use 482913 to sign in",
			HTML:           "<style>.c{color:#112233}</style><p>Use <b>482913</b> to sign in</p>",
		},
	}}
	svc, p := newTestService(t, api)
	_, err := svc.Generate(context.Background(), "fox")
	require.NoError(t, err)

	d, err := svc.Open(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, model.CategoryOTP, d.Category)
	assert.False(t, d.Body.Preformatted)

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.details, 1)
	assert.True(t, p.details[0].found)
	assert.Equal(t, "482913", p.details[0].otp)
}

func TestOpenOtherMessageDoesNotExtract(t *testing.T) {
	api := &fakeAPI{messages: map[string]*model.Message{
		"m1": {
			MessageSummary: model.MessageSummary{ID: "m1", Subject: "Hello"},
			Text:           "Order 12345 shipped",
		},
	}}
	svc, p := newTestService(t, api)
	_, err := svc.Generate(context.Background(), "fox")
	require.NoError(t, err)

	_, err = svc.Open(context.Background(), "m1")
	require.NoError(t, err)

	p.mu.Lock()
	require.Len(t, p.details, 1)
	assert.False(t, p.details[0].found)
	p.mu.Unlock()

	code, found := svc.ExtractOTP()
	assert.True(t, found)
	assert.Equal(t, "12345", code)
	assert.Contains(t, p.messages(), "OTP extracted from email")
}

func TestExtractOTPNotFound(t *testing.T) {
	api := &fakeAPI{messages: map[string]*model.Message{
		"m1": {MessageSummary: model.MessageSummary{ID: "m1"}, Text: "nothing here"},
	}}
	svc, p := newTestService(t, api)
	_, err := svc.Generate(context.Background(), "fox")
	require.NoError(t, err)

	_, err = svc.Open(context.Background(), "m1")
	require.NoError(t, err)

	_, found := svc.ExtractOTP()
	assert.False(t, found)
	assert.Contains(t, p.messages(), "No OTP code found in this email")
}

func TestOpenMissingMessage(t *testing.T) {
	svc, p := newTestService(t, &fakeAPI{})
	_, err := svc.Generate(context.Background(), "fox")
	require.NoError(t, err)

	_, err = svc.Open(context.Background(), "nope")
	assert.ErrorIs(t, err, provider.ErrNotFound)
	assert.Contains(t, p.messages(), "Failed to load email")
}

func TestShowSource(t *testing.T) {
	api := &fakeAPI{
		messages: map[string]*model.Message{
			"m1": {MessageSummary: model.MessageSummary{ID: "m1"}, Text: "hi"},
		},
		source: "Subject: hi\r\nX-Test: 1\r\n\r\nhi",
	}
	svc, _ := newTestService(t, api)

	_, err := svc.ShowSource(context.Background())
	assert.ErrorIs(t, err, ErrNoMessage)

	_, err = svc.Generate(context.Background(), "fox")
	require.NoError(t, err)
	_, err = svc.Open(context.Background(), "m1")
	require.NoError(t, err)

	src, err := svc.ShowSource(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1", src.Header("X-Test"))

	d, ok := svc.Current()
	require.True(t, ok)
	assert.Same(t, src, d.Source)
}

func TestSetFilter(t *testing.T) {
	api := &fakeAPI{listings: [][]model.MessageSummary{{
		{ID: "a", Subject: "Your code", Intro: "1234"},
		{ID: "b", Subject: "Newsletter"},
	}}}
	st := testutil.NewTestStore(t)
	svc, p := newTestService(t, api, WithStore(st))

	_, err := svc.Generate(context.Background(), "fox")
	require.NoError(t, err)
	svc.poller.Wait()

	svc.SetFilter(classify.Filter(model.CategoryUpdates))
	view := p.lastView()
	assert.Equal(t, 2, view.Total)
	require.Len(t, view.Messages, 1)
	assert.Equal(t, "b", view.Messages[0].ID)

	// The filter and preferred name outlive the service.
	sess := session.New(api)
	again := New(sess, api, &recordingPresenter{}, WithStore(st))
	defer again.Close()
	assert.Equal(t, classify.Filter(model.CategoryUpdates), again.Filter())
	assert.Equal(t, "fox", again.PreferredName())

	n, err := st.CountUnreadNotifications(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
}

func TestPollingToggleNotifies(t *testing.T) {
	svc, p := newTestService(t, &fakeAPI{})

	assert.True(t, svc.TogglePolling(time.Hour))
	assert.True(t, svc.Polling())
	assert.True(t, p.lastView().Polling)

	assert.False(t, svc.TogglePolling(time.Hour))
	assert.False(t, svc.Polling())

	msgs := p.messages()
	assert.Equal(t, []string{"Auto-refresh enabled", "Auto-refresh disabled"}, msgs)
}

func (p *recordingPresenter) sawMessage(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, v := range p.views {
		for _, m := range v.Messages {
			if m.ID == id {
				return true
			}
		}
	}
	return false
}

func (f *fakeAPI) started() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listStarted
}

func TestListingForReplacedMailboxIsDropped(t *testing.T) {
	gateA := make(chan struct{})
	api := &fakeAPI{
		byToken: map[string][]model.MessageSummary{
			"tok1": {{ID: "from-a"}},
			"tok2": {{ID: "from-b"}},
		},
		listGates: map[string]chan struct{}{"tok1": gateA},
	}
	svc, p := newTestService(t, api)

	_, err := svc.Generate(context.Background(), "a")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return api.started() == 1 }, time.Second, time.Millisecond)

	acctB, err := svc.Generate(context.Background(), "b")
	require.NoError(t, err)

	close(gateA)
	svc.poller.Wait()

	view := p.lastView()
	assert.Equal(t, acctB.Address, view.Address)
	require.Len(t, view.Messages, 1)
	assert.Equal(t, "from-b", view.Messages[0].ID)
	assert.False(t, p.sawMessage("from-a"))

	svc.mu.Lock()
	assert.False(t, svc.seen["from-a"])
	svc.mu.Unlock()
}

func TestListingForDeletedMailboxIsDropped(t *testing.T) {
	gate := make(chan struct{})
	api := &fakeAPI{
		byToken:   map[string][]model.MessageSummary{"tok1": {{ID: "late"}}},
		listGates: map[string]chan struct{}{"tok1": gate},
	}
	svc, p := newTestService(t, api)

	_, err := svc.Generate(context.Background(), "a")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return api.started() == 1 }, time.Second, time.Millisecond)

	svc.Delete()
	close(gate)
	svc.poller.Wait()

	view := p.lastView()
	assert.False(t, view.HasSession())
	assert.Empty(t, view.Messages)
	assert.False(t, p.sawMessage("late"))
	assert.NotContains(t, p.messages(), "1 new email")
}

func TestResultWithOldTokenLeavesStateAlone(t *testing.T) {
	api := &fakeAPI{byToken: map[string][]model.MessageSummary{"tok2": {}}}
	svc, p := newTestService(t, api)

	_, err := svc.Generate(context.Background(), "a")
	require.NoError(t, err)
	_, err = svc.Generate(context.Background(), "b")
	require.NoError(t, err)
	svc.poller.Wait()
	p.mu.Lock()
	views := len(p.views)
	p.mu.Unlock()

	svc.handleResult(sync.Result{
		Token:    "tok1",
		Messages: classify.All([]model.MessageSummary{{ID: "from-a"}}),
	})
	svc.handleResult(sync.Result{
		Token: "tok1",
		Err:   &provider.FetchError{Op: "listing messages", Err: errors.New("down")},
	})

	p.mu.Lock()
	assert.Len(t, p.views, views)
	p.mu.Unlock()
	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Empty(t, svc.messages)
	assert.Empty(t, svc.seen)
	assert.False(t, svc.stale)
}

func TestOpenDuringReplacementIsSuperseded(t *testing.T) {
	api := &fakeAPI{
		messages: map[string]*model.Message{
			"m1": {MessageSummary: model.MessageSummary{ID: "m1", Subject: "Your code"}, Text: "1234"},
		},
		fetchGate:    make(chan struct{}),
		fetchStarted: make(chan struct{}, 1),
	}
	svc, p := newTestService(t, api)
	_, err := svc.Generate(context.Background(), "a")
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := svc.Open(context.Background(), "m1")
		errc <- err
	}()
	<-api.fetchStarted

	_, err = svc.Generate(context.Background(), "b")
	require.NoError(t, err)
	close(api.fetchGate)

	assert.ErrorIs(t, <-errc, ErrSuperseded)
	_, ok := svc.Current()
	assert.False(t, ok)
	p.mu.Lock()
	assert.Empty(t, p.details)
	p.mu.Unlock()
}

func TestOpenSurvivesReauthentication(t *testing.T) {
	api := &fakeAPI{
		messages: map[string]*model.Message{
			"m1": {MessageSummary: model.MessageSummary{ID: "m1"}, Text: "hello"},
		},
		fetchGate:    make(chan struct{}),
		fetchStarted: make(chan struct{}, 1),
	}
	svc, _ := newTestService(t, api)
	_, err := svc.Generate(context.Background(), "a")
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := svc.Open(context.Background(), "m1")
		errc <- err
	}()
	<-api.fetchStarted

	_, err = svc.session.Reauthenticate(context.Background())
	require.NoError(t, err)
	close(api.fetchGate)

	require.NoError(t, <-errc)
	d, ok := svc.Current()
	require.True(t, ok)
	assert.Equal(t, "m1", d.Message.ID)
}

func TestGenerateFailureNotices(t *testing.T) {
	api := &fakeAPI{createErr: &provider.AuthenticationError{Address: "x", Status: 401}}
	svc, p := newTestService(t, api)

	_, err := svc.Generate(context.Background(), "fox")
	require.Error(t, err)
	assert.Equal(t, []string{"Failed to generate email: could not sign in to the new account"}, p.messages())

	api.createErr = &provider.ProvisioningError{Address: "x", Status: 422}
	_, err = svc.Generate(context.Background(), "fox")
	require.Error(t, err)
	assert.Contains(t, p.messages(), "Failed to generate email: the provider rejected the new account")
}

func TestManualRefreshFailureNotifies(t *testing.T) {
	api := &fakeAPI{}
	svc, p := newTestService(t, api)
	_, err := svc.Generate(context.Background(), "fox")
	require.NoError(t, err)
	svc.poller.Wait()
	assert.NotContains(t, p.messages(), "Failed to refresh inbox")

	api.mu.Lock()
	api.listErr = errors.New("network down")
	api.mu.Unlock()

	svc.Refresh()
	svc.poller.Wait()
	assert.Contains(t, p.messages(), "Failed to refresh inbox")
}

func TestPollInterval(t *testing.T) {
	svc, _ := newTestService(t, &fakeAPI{})
	assert.Zero(t, svc.PollInterval())

	svc.EnablePolling(time.Hour)
	assert.Equal(t, time.Hour, svc.PollInterval())
}
