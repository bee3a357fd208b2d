package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/BrandonDHaskell/Lockbox/server/internal/db/dbtest"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/credential"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/service"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/store"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/store/memory"
	sqlitestore "github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/store/sqlite"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/throttle"
	"github.com/BrandonDHaskell/Lockbox/server/internal/lockbox/types"
)

// 2026-02-16 is a Monday.
var monday10 = time.Date(2026, 2, 16, 10, 0, 0, 0, time.UTC)

const goodPIN = "482913"

// backend is one store implementation plus the test hooks the engine tests
// need from it.
type backend struct {
	st store.Store
	// logs returns every committed entry, oldest first.
	logs func(t *testing.T) []types.AccessLog
	// failAppends makes every later log insert fail.
	failAppends func(t *testing.T)
}

var backends = []struct {
	name string
	open func(t *testing.T) backend
}{
	{"memory", func(t *testing.T) backend {
		st := memory.New()
		return backend{
			st:          st,
			logs:        func(*testing.T) []types.AccessLog { return st.Logs() },
			failAppends: func(*testing.T) { st.FailAppends(fmt.Errorf("disk full")) },
		}
	}},
	{"sqlite", func(t *testing.T) backend {
		d := dbtest.Open(t)
		st := sqlitestore.New(d.Reader, d.Worker)
		return backend{
			st: st,
			logs: func(t *testing.T) []types.AccessLog {
				newest, err := st.QueryLogs(context.Background(), types.LogFilter{})
				require.NoError(t, err)
				out := make([]types.AccessLog, len(newest))
				for i, l := range newest {
					out[len(newest)-1-i] = l
				}
				return out
			},
			failAppends: func(t *testing.T) {
				_, err := d.Writer.Exec(`
CREATE TRIGGER fail_appends BEFORE INSERT ON access_logs
BEGIN SELECT RAISE(ABORT, 'disk full'); END;`)
				require.NoError(t, err)
			},
		}
	}},
}

type fixture struct {
	backend
	hasher *credential.Hasher
	svc    *service.AccessService
}

// forEachStore runs fn against a fresh fixture on every store backend.
func forEachStore(t *testing.T, policy throttle.Policy, fn func(t *testing.T, f *fixture)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			fn(t, newFixture(t, b.open(t), policy))
		})
	}
}

// newFixture builds an AccessService with one ACTIVE user "alice" allowed
// Mondays 09:00-17:00.
func newFixture(t *testing.T, b backend, policy throttle.Policy) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	f := &fixture{
		backend: b,
		hasher:  credential.NewHasher(bcrypt.MinCost),
	}
	f.svc = service.NewAccessService(f.st, f.hasher, policy, time.UTC, logger)
	f.addUser(t, "alice", types.StatusActive, goodPIN)

	_, err := f.st.CreateWindow(context.Background(), types.AccessWindow{
		UserID:      "alice",
		Kind:        types.WindowRecurring,
		StartMinute: 9 * 60,
		EndMinute:   17 * 60,
		Weekdays:    types.MaskOf(time.Monday),
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) addUser(t *testing.T, id string, status types.Status, pin string) {
	t.Helper()
	hash, err := f.hasher.Hash(pin)
	require.NoError(t, err)
	require.NoError(t, f.st.CreateUser(context.Background(), types.User{
		ID:      id,
		Email:   id + "@example.com",
		Status:  status,
		Role:    types.RoleUser,
		PINHash: hash,
	}))
}

func (f *fixture) openAllDay(t *testing.T, userID string) {
	t.Helper()
	_, err := f.st.CreateWindow(context.Background(), types.AccessWindow{
		UserID: userID, Kind: types.WindowRecurring, StartMinute: 0, EndMinute: types.MinutesPerDay,
	})
	require.NoError(t, err)
}

func (f *fixture) submit(t *testing.T, userID, code string, at time.Time) types.Decision {
	t.Helper()
	dec, err := f.svc.Submit(context.Background(), types.AccessAttempt{
		UserID:   userID,
		Code:     code,
		At:       at,
		SourceIP: "192.0.2.10",
	})
	require.NoError(t, err)
	return dec
}

func (f *fixture) throttleOf(t *testing.T, userID string) types.ThrottleState {
	t.Helper()
	u, err := f.st.GetUser(context.Background(), userID)
	require.NoError(t, err)
	return u.ThrottleState
}

// ── Decision order ──────────────────────────────────────────────────────────

func TestSubmit_GrantedWritesOneLog(t *testing.T) {
	forEachStore(t, throttle.Policy{}, func(t *testing.T, f *fixture) {
		dec := f.submit(t, "alice", goodPIN, monday10)
		assert.True(t, dec.Granted())
		assert.Equal(t, types.ReasonOK, dec.Reason)

		logs := f.logs(t)
		require.Len(t, logs, 1)
		l := logs[0]
		assert.Equal(t, dec.LogID, l.ID)
		require.NotNil(t, l.UserID)
		assert.Equal(t, "alice", *l.UserID)
		assert.Equal(t, "alice", l.ClaimedUserID)
		assert.Equal(t, types.OutcomeGranted, l.Outcome)
		assert.Equal(t, "192.0.2.10", l.SourceIP)
		assert.True(t, l.OccurredAt.Equal(monday10))
	})
}

func TestSubmit_UnknownUserIsLoggedWithoutUserID(t *testing.T) {
	forEachStore(t, throttle.Policy{}, func(t *testing.T, f *fixture) {
		dec := f.submit(t, "ghost-1", "000000", monday10)
		assert.False(t, dec.Granted())
		assert.Equal(t, types.ReasonUnknownUser, dec.Reason)

		logs := f.logs(t)
		require.Len(t, logs, 1)
		assert.Nil(t, logs[0].UserID)
		assert.Equal(t, "ghost-1", logs[0].ClaimedUserID)
		assert.Equal(t, types.ReasonUnknownUser, logs[0].Reason)
	})
}

func TestSubmit_NonActiveUsersDeniedEvenWithCorrectPIN(t *testing.T) {
	for _, status := range []types.Status{types.StatusPending, types.StatusInactive, types.StatusDeactivated} {
		t.Run(status.String(), func(t *testing.T) {
			forEachStore(t, throttle.Policy{}, func(t *testing.T, f *fixture) {
				f.addUser(t, "bob", status, goodPIN)

				dec := f.submit(t, "bob", goodPIN, monday10)
				assert.Equal(t, types.OutcomeDenied, dec.Outcome)
				assert.Equal(t, types.ReasonInactiveUser, dec.Reason)

				logs := f.logs(t)
				require.Len(t, logs, 1)
				assert.Equal(t, types.ReasonInactiveUser, logs[0].Reason)
				assert.Zero(t, f.throttleOf(t, "bob").FailedAttempts)
			})
		})
	}
}

func TestSubmit_OutsideWindow(t *testing.T) {
	forEachStore(t, throttle.Policy{}, func(t *testing.T, f *fixture) {
		evening := monday10.Add(8 * time.Hour)
		tuesday := monday10.Add(24 * time.Hour)
		for _, at := range []time.Time{evening, tuesday} {
			dec := f.submit(t, "alice", goodPIN, at)
			assert.Equal(t, types.ReasonOutsideAccessWindow, dec.Reason, "at %s", at)
		}

		// A wrong PIN outside the window is still a window denial and is not
		// counted as a failure.
		dec := f.submit(t, "alice", "111111", evening)
		assert.Equal(t, types.ReasonOutsideAccessWindow, dec.Reason)
		assert.Zero(t, f.throttleOf(t, "alice").FailedAttempts)
		assert.Len(t, f.logs(t), 3)
	})
}

func TestSubmit_NoWindowsMeansNoAccess(t *testing.T) {
	forEachStore(t, throttle.Policy{}, func(t *testing.T, f *fixture) {
		f.addUser(t, "carol", types.StatusActive, "777777")

		dec := f.submit(t, "carol", "777777", monday10)
		assert.Equal(t, types.ReasonOutsideAccessWindow, dec.Reason)
	})
}

func TestSubmit_WildcardWindowAppliesToEveryone(t *testing.T) {
	forEachStore(t, throttle.Policy{}, func(t *testing.T, f *fixture) {
		f.addUser(t, "carol", types.StatusActive, "777777")
		f.openAllDay(t, types.WildcardUserID)

		dec := f.submit(t, "carol", "777777", monday10)
		assert.True(t, dec.Granted())
	})
}

func TestSubmit_BadPINCountsFailure(t *testing.T) {
	forEachStore(t, throttle.Policy{}, func(t *testing.T, f *fixture) {
		dec := f.submit(t, "alice", "000000", monday10)
		assert.Equal(t, types.ReasonBadPIN, dec.Reason)

		st := f.throttleOf(t, "alice")
		assert.Equal(t, 1, st.FailedAttempts)
		require.NotNil(t, st.LastFailedAt)
		assert.True(t, st.LastFailedAt.Equal(monday10))
	})
}

func TestSubmit_GrantResetsCounter(t *testing.T) {
	forEachStore(t, throttle.Policy{Threshold: 5}, func(t *testing.T, f *fixture) {
		f.submit(t, "alice", "000000", monday10)
		f.submit(t, "alice", "000000", monday10.Add(time.Minute))
		require.Equal(t, 2, f.throttleOf(t, "alice").FailedAttempts)

		dec := f.submit(t, "alice", goodPIN, monday10.Add(2*time.Minute))
		assert.True(t, dec.Granted())

		st := f.throttleOf(t, "alice")
		assert.Zero(t, st.FailedAttempts)
		assert.Nil(t, st.LastFailedAt)
	})
}

// ── Lockout ─────────────────────────────────────────────────────────────────

func TestSubmit_LockoutScenario(t *testing.T) {
	forEachStore(t, throttle.Policy{Threshold: 3, Cooldown: 15 * time.Minute}, func(t *testing.T, f *fixture) {
		for i := 0; i < 3; i++ {
			dec := f.submit(t, "alice", "000000", monday10.Add(time.Duration(i)*time.Minute))
			require.Equal(t, types.ReasonBadPIN, dec.Reason, "attempt %d", i+1)
		}

		// Locked out, and the correct PIN does not help.
		lastFail := monday10.Add(2 * time.Minute)
		dec := f.submit(t, "alice", goodPIN, lastFail.Add(time.Minute))
		assert.Equal(t, types.ReasonLockedOut, dec.Reason)
		assert.Equal(t, 3, f.throttleOf(t, "alice").FailedAttempts)

		dec = f.submit(t, "alice", goodPIN, lastFail.Add(16*time.Minute))
		assert.True(t, dec.Granted())
		assert.Zero(t, f.throttleOf(t, "alice").FailedAttempts)

		reasons := make([]types.Reason, 0, 5)
		for _, l := range f.logs(t) {
			reasons = append(reasons, l.Reason)
		}
		assert.Equal(t, []types.Reason{
			types.ReasonBadPIN, types.ReasonBadPIN, types.ReasonBadPIN,
			types.ReasonLockedOut, types.ReasonOK,
		}, reasons)
	})
}

func TestSubmit_ElapsedCounterResetsOnAnyEvaluation(t *testing.T) {
	forEachStore(t, throttle.Policy{Threshold: 3, Cooldown: 15 * time.Minute}, func(t *testing.T, f *fixture) {
		f.submit(t, "alice", "000000", monday10)
		f.submit(t, "alice", "000000", monday10.Add(time.Minute))
		require.Equal(t, 2, f.throttleOf(t, "alice").FailedAttempts)

		// Hours later the counter is cleared even though the attempt falls
		// outside the window.
		dec := f.submit(t, "alice", goodPIN, monday10.Add(8*time.Hour))
		assert.Equal(t, types.ReasonOutsideAccessWindow, dec.Reason)
		assert.Zero(t, f.throttleOf(t, "alice").FailedAttempts)

		// A fresh failure starts again from one.
		f.submit(t, "alice", "000000", monday10.Add(time.Hour))
		assert.Equal(t, 1, f.throttleOf(t, "alice").FailedAttempts)
	})
}

func TestSubmit_LockoutDoesNotExtendWhileLocked(t *testing.T) {
	forEachStore(t, throttle.Policy{Threshold: 2, Cooldown: 15 * time.Minute}, func(t *testing.T, f *fixture) {
		f.submit(t, "alice", "000000", monday10)
		f.submit(t, "alice", "000000", monday10.Add(time.Minute))

		for i := 2; i < 10; i++ {
			dec := f.submit(t, "alice", "000000", monday10.Add(time.Duration(i)*time.Minute))
			require.Equal(t, types.ReasonLockedOut, dec.Reason)
		}
		st := f.throttleOf(t, "alice")
		assert.Equal(t, 2, st.FailedAttempts)
		assert.True(t, st.LastFailedAt.Equal(monday10.Add(time.Minute)))
	})
}

// ── Concurrency & failure ───────────────────────────────────────────────────

func TestSubmit_ConcurrentAttemptsEachLoggedOnce(t *testing.T) {
	forEachStore(t, throttle.Policy{Threshold: 1000}, func(t *testing.T, f *fixture) {
		f.addUser(t, "bob", types.StatusActive, "555555")
		f.openAllDay(t, "bob")

		const perUser = 20
		var wg sync.WaitGroup
		for i := 0; i < perUser; i++ {
			for _, u := range []string{"alice", "bob", "ghost-1"} {
				wg.Add(1)
				go func(userID string, n int) {
					defer wg.Done()
					code := "000000"
					if n%2 == 0 {
						code = "999999"
					}
					_, err := f.svc.Submit(context.Background(), types.AccessAttempt{UserID: userID, Code: code, At: monday10})
					assert.NoError(t, err)
				}(u, i)
			}
		}
		wg.Wait()

		logs := f.logs(t)
		assert.Len(t, logs, 3*perUser)

		ids := make(map[int64]struct{}, len(logs))
		for _, l := range logs {
			ids[l.ID] = struct{}{}
		}
		assert.Len(t, ids, len(logs), "log ids must be unique")

		// Every bad PIN was counted exactly once.
		assert.Equal(t, perUser, f.throttleOf(t, "alice").FailedAttempts)
		assert.Equal(t, perUser, f.throttleOf(t, "bob").FailedAttempts)
	})
}

// gatedStore lets one user's attempt park mid-evaluation, after the user is
// loaded and before anything is written.
type gatedStore struct {
	store.Store
	userID  string
	holding chan struct{}
	release chan struct{}
}

func (g *gatedStore) RunAttempt(ctx context.Context, claimedUserID string, fn store.AttemptFn) error {
	return g.Store.RunAttempt(ctx, claimedUserID, func(ctx context.Context, tx store.AttemptTx) error {
		if claimedUserID == g.userID {
			close(g.holding)
			<-g.release
		}
		return fn(ctx, tx)
	})
}

func TestSubmit_DifferentUsersDoNotWaitOnEachOther(t *testing.T) {
	forEachStore(t, throttle.Policy{}, func(t *testing.T, f *fixture) {
		f.addUser(t, "bob", types.StatusActive, "555555")
		f.openAllDay(t, "bob")

		logger, _ := test.NewNullLogger()
		gated := &gatedStore{Store: f.st, userID: "alice", holding: make(chan struct{}), release: make(chan struct{})}
		svc := service.NewAccessService(gated, f.hasher, throttle.Policy{}, time.UTC, logger)

		aliceDone := make(chan error, 1)
		go func() {
			_, err := svc.Submit(context.Background(), types.AccessAttempt{UserID: "alice", Code: goodPIN, At: monday10})
			aliceDone <- err
		}()
		<-gated.holding

		bobDone := make(chan types.Decision, 1)
		go func() {
			dec, err := svc.Submit(context.Background(), types.AccessAttempt{UserID: "bob", Code: "555555", At: monday10})
			assert.NoError(t, err)
			bobDone <- dec
		}()

		select {
		case dec := <-bobDone:
			assert.True(t, dec.Granted())
		case <-time.After(5 * time.Second):
			close(gated.release)
			t.Fatal("bob's attempt waited for alice's")
		}

		close(gated.release)
		require.NoError(t, <-aliceDone)
		assert.Len(t, f.logs(t), 2)
	})
}

func TestSubmit_AppendFailureIsNeverGranted(t *testing.T) {
	forEachStore(t, throttle.Policy{}, func(t *testing.T, f *fixture) {
		f.failAppends(t)

		dec, err := f.svc.Submit(context.Background(), types.AccessAttempt{UserID: "alice", Code: goodPIN, At: monday10})
		require.Error(t, err)
		assert.False(t, dec.Granted())
		assert.Equal(t, types.OutcomeDenied, dec.Outcome)
		assert.Empty(t, f.logs(t))

		// The failed attempt leaves no trace in the throttle either.
		_, err = f.svc.Submit(context.Background(), types.AccessAttempt{UserID: "alice", Code: "000000", At: monday10})
		require.Error(t, err)
		assert.Zero(t, f.throttleOf(t, "alice").FailedAttempts)
	})
}

func TestSubmit_CancelledContextStillCompletes(t *testing.T) {
	forEachStore(t, throttle.Policy{}, func(t *testing.T, f *fixture) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		dec, err := f.svc.Submit(ctx, types.AccessAttempt{UserID: "alice", Code: goodPIN, At: monday10})
		require.NoError(t, err)
		assert.True(t, dec.Granted())
		assert.Len(t, f.logs(t), 1)
	})
}

// ── Validation ──────────────────────────────────────────────────────────────

func TestSubmit_ValidationErrorsAreNotLogged(t *testing.T) {
	forEachStore(t, throttle.Policy{}, func(t *testing.T, f *fixture) {
		cases := []struct {
			attempt types.AccessAttempt
			want    error
		}{
			{types.AccessAttempt{UserID: "  ", Code: goodPIN}, service.ErrInvalidUserID},
			{types.AccessAttempt{UserID: "alice", Code: ""}, service.ErrInvalidCode},
		}
		for i, tc := range cases {
			t.Run(fmt.Sprint(i), func(t *testing.T) {
				dec, err := f.svc.Submit(context.Background(), tc.attempt)
				assert.ErrorIs(t, err, tc.want)
				assert.False(t, dec.Granted())
			})
		}
		assert.Empty(t, f.logs(t))
	})
}

func TestSubmit_ZeroTimeUsesClock(t *testing.T) {
	forEachStore(t, throttle.Policy{}, func(t *testing.T, f *fixture) {
		f.svc.SetClock(func() time.Time { return monday10.Add(30 * time.Minute) })

		dec := f.submit(t, "alice", goodPIN, time.Time{})
		assert.True(t, dec.Granted())
		assert.True(t, dec.At.Equal(monday10.Add(30*time.Minute)))
	})
}
