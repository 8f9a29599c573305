package auth

import (
	"testing"
	"time"

	"github.com/arzan03/tourbook/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	t.Parallel()

	svc := NewTokenService("super-secret", time.Hour)
	tok, err := svc.Issue("user-123")
	require.NoError(t, err)

	sess, err := svc.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-123", sess.Subject)
	assert.WithinDuration(t, time.Now(), sess.IssuedAt, 2*time.Second)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	issuedAt := time.Now().Add(-2 * time.Hour)
	svc := NewTokenService("secret", time.Hour)
	tok, err := svc.WithClock(func() time.Time { return issuedAt }).Issue("u1")
	require.NoError(t, err)

	_, err = svc.Verify(tok)
	require.Error(t, err)
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, apperror.KindInvalidToken, appErr.Kind)
	assert.Equal(t, "Your token has expired! Please log in again.", appErr.Message)
}

func TestVerify_AcceptedUntilExpiry(t *testing.T) {
	t.Parallel()

	issuedAt := time.Now()
	svc := NewTokenService("secret", time.Hour)
	tok, err := svc.WithClock(func() time.Time { return issuedAt }).Issue("u1")
	require.NoError(t, err)

	later := svc.WithClock(func() time.Time { return issuedAt.Add(59 * time.Minute) })
	_, err = later.Verify(tok)
	assert.NoError(t, err)
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewTokenService("right-secret", time.Hour).Issue("u2")
	require.NoError(t, err)

	_, err = NewTokenService("wrong-secret", time.Hour).Verify(tok)
	assert.True(t, apperror.IsKind(err, apperror.KindInvalidToken))
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	_, err := NewTokenService("k", time.Hour).Verify("not.a.jwt")
	assert.True(t, apperror.IsKind(err, apperror.KindInvalidToken))
}

func TestSession_IssuedBefore(t *testing.T) {
	t.Parallel()

	issued := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sess := Session{Subject: "u", IssuedAt: issued}

	assert.False(t, sess.IssuedBefore(nil))

	before := issued.Add(-time.Minute)
	assert.False(t, sess.IssuedBefore(&before))

	earlierMilli := issued.Add(-time.Millisecond)
	assert.False(t, sess.IssuedBefore(&earlierMilli))

	sameMilli := issued.Add(300 * time.Microsecond)
	assert.True(t, sess.IssuedBefore(&sameMilli))

	laterInSecond := issued.Add(300 * time.Millisecond)
	assert.True(t, sess.IssuedBefore(&laterInSecond))
}

func TestIssue_MillisecondIssuedAt(t *testing.T) {
	t.Parallel()

	issued := time.Date(2024, 5, 1, 12, 0, 0, 250*int(time.Millisecond), time.UTC)
	svc := NewTokenService("secret", time.Hour).WithClock(func() time.Time { return issued })
	tok, err := svc.Issue("u1")
	require.NoError(t, err)

	sess, err := svc.Verify(tok)
	require.NoError(t, err)
	assert.True(t, issued.Equal(sess.IssuedAt), "iat %s", sess.IssuedAt)

	// a change 100ms later in the same second makes the token stale
	changed := issued.Add(100 * time.Millisecond)
	assert.True(t, sess.IssuedBefore(&changed))
}

func TestIssueAfter_OutlivesChangeInSameMillisecond(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := NewTokenService("secret", time.Hour).WithClock(func() time.Time { return now })

	stale, err := svc.Issue("u1")
	require.NoError(t, err)
	fresh, err := svc.IssueAfter("u1", &now)
	require.NoError(t, err)

	staleSess, err := svc.Verify(stale)
	require.NoError(t, err)
	freshSess, err := svc.Verify(fresh)
	require.NoError(t, err)

	assert.True(t, staleSess.IssuedBefore(&now))
	assert.False(t, freshSess.IssuedBefore(&now))

	plain, err := svc.IssueAfter("u1", nil)
	require.NoError(t, err)
	plainSess, err := svc.Verify(plain)
	require.NoError(t, err)
	assert.True(t, now.Equal(plainSess.IssuedAt))
}

func TestPasswordHashing(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("pass1234", 4)
	require.NoError(t, err)
	assert.NotEqual(t, "pass1234", hash)
	assert.True(t, CheckPassword("pass1234", hash))
	assert.False(t, CheckPassword("wrong", hash))
}

func TestResetToken(t *testing.T) {
	t.Parallel()

	raw, hashed, err := NewResetToken()
	require.NoError(t, err)
	assert.Len(t, raw, 64)
	assert.NotEqual(t, raw, hashed)
	assert.Equal(t, hashed, HashResetToken(raw))
}
