package auth

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupAndLogin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.svc.Signup(ctx, SignupInput{Username: "grace", Email: "Grace@Example.com", Password: "hunter22"})
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)

	mail, ok := h.mail.last("verify")
	require.True(t, ok)
	assert.Equal(t, "grace@example.com", mail.To)

	_, err = h.svc.Signup(ctx, SignupInput{Username: "grace", Email: "other@example.com", Password: "hunter22"})
	requireKind(t, err, KindUserInput, MsgUsernameExists)
	_, err = h.svc.Signup(ctx, SignupInput{Username: "grace2", Email: "grace@example.com", Password: "hunter22"})
	requireKind(t, err, KindUserInput, MsgEmailExists)
	_, err = h.svc.Signup(ctx, SignupInput{Username: "g", Email: "g@example.com", Password: "hunter22"})
	requireKind(t, err, KindUserInput, MsgUsernameInvalid)
	_, err = h.svc.Signup(ctx, SignupInput{Username: "grace3", Email: "g3@example.com", Password: "123"})
	requireKind(t, err, KindUserInput, MsgPasswordInvalid)

	byName, err := h.svc.Login(ctx, "10.0.0.1", "grace", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, session.UserID, byName.UserID)

	byEmail, err := h.svc.Login(ctx, "10.0.0.1", "GRACE@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, session.UserID, byEmail.UserID)

	_, err = h.svc.Login(ctx, "10.0.0.1", "grace", "wrong-pass")
	requireKind(t, err, KindAuthentication, MsgIncorrectPassword)
	_, err = h.svc.Login(ctx, "10.0.0.1", "nobody", "hunter22")
	requireKind(t, err, KindAuthentication, MsgNoUserFound)
}

func TestLoginBansAfterRepeatedFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createUser(t, "heidi", "", "hunter22")

	for i := 0; i < loginMaxAttempts; i++ {
		_, err := h.svc.Login(ctx, "10.0.0.2", "heidi", "nope-nope")
		requireKind(t, err, KindAuthentication, MsgIncorrectPassword)
	}

	_, err := h.svc.Login(ctx, "10.0.0.2", "heidi", "hunter22")
	requireKind(t, err, KindForbidden, MsgTooManyTries)

	_, err = h.svc.Login(ctx, "10.0.0.3", "heidi", "hunter22")
	require.NoError(t, err)
}

func TestRefreshAndLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.createUser(t, "ivan", "ivan@example.com", "hunter22")

	session, err := h.svc.Login(ctx, "", "ivan", "hunter22")
	require.NoError(t, err)

	token, err := h.svc.RefreshToken(ctx, session.RefreshToken)
	require.NoError(t, err)
	claims, err := h.svc.Issuer.Parse(token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, u.ID, id)

	res, err := h.svc.Logout(ctx, session.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, MsgLogoutSuccessful, res.Message)

	_, err = h.svc.RefreshToken(ctx, session.RefreshToken)
	requireKind(t, err, KindAuthentication, MsgRefreshTokenInvalid)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.createUser(t, "judy", "", "hunter22")

	session, err := h.svc.Login(ctx, "", "judy", "hunter22")
	require.NoError(t, err)

	_, err = h.svc.ChangePassword(ctx, u.ID, "wrong-old", "newpass1")
	requireKind(t, err, KindAuthentication, MsgIncorrectPassword)
	_, err = h.svc.ChangePassword(ctx, u.ID, "hunter22", "short")
	requireKind(t, err, KindUserInput, MsgPasswordInvalid)

	res, err := h.svc.ChangePassword(ctx, u.ID, "hunter22", "newpass1")
	require.NoError(t, err)
	assert.Equal(t, MsgPasswordChangeSuccessful, res.Message)

	_, err = h.svc.RefreshToken(ctx, session.RefreshToken)
	requireKind(t, err, KindAuthentication, MsgRefreshTokenInvalid)

	_, err = h.svc.Login(ctx, "", "judy", "newpass1")
	require.NoError(t, err)
}

func TestWeb3AccountWithoutPasswordCanChangeUsername(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u, err := h.users.Create(ctx, NewUser{Username: "web3user", Web3Signup: true})
	require.NoError(t, err)

	res, err := h.svc.ChangeUsername(ctx, u.ID, "renamed", "")
	require.NoError(t, err)
	assert.Equal(t, MsgUsernameChangeSuccessful, res.Message)

	claims, err := h.svc.Issuer.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "renamed", claims.Username)

	_, err = h.svc.Login(ctx, "", "renamed", "")
	requireKind(t, err, KindAuthentication, MsgIncorrectPassword)
}

func TestVerifyEmailTokenIsSingleUse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.svc.Signup(ctx, SignupInput{Username: "kate", Email: "kate@example.com", Password: "hunter22"})
	require.NoError(t, err)
	mail, ok := h.mail.last("verify")
	require.True(t, ok)

	res, err := h.svc.VerifyEmail(ctx, mail.Token)
	require.NoError(t, err)
	assert.Equal(t, MsgEmailVerificationSuccess, res.Message)

	u, err := h.users.FindByID(ctx, session.UserID)
	require.NoError(t, err)
	assert.True(t, u.EmailVerified)

	_, err = h.svc.VerifyEmail(ctx, mail.Token)
	requireKind(t, err, KindAuthentication, MsgEmailVerificationNotFound)

	_, err = h.svc.ResendVerifyEmailToken(ctx, session.UserID)
	requireKind(t, err, KindUserInput, MsgEmailAlreadyVerified)
}

func TestResendVerificationCooldown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.createUser(t, "leo", "leo@example.com", "hunter22")

	res, err := h.svc.ResendVerifyEmailToken(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, MsgEmailResendSuccess, res.Message)

	_, err = h.svc.ResendVerifyEmailToken(ctx, u.ID)
	requireKind(t, err, KindUserInput, MsgEmailCooldown)

	h.redis.FastForward(EmailCooldown)
	_, err = h.svc.ResendVerifyEmailToken(ctx, u.ID)
	require.NoError(t, err)
}

func TestPasswordReset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.createUser(t, "mallory", "mallory@example.com", "hunter22")

	res, err := h.svc.RequestResetPassword(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, MsgResetPasswordReturn, res.Message)
	_, sent := h.mail.last("reset")
	assert.False(t, sent)

	res, err = h.svc.RequestResetPassword(ctx, "mallory@example.com")
	require.NoError(t, err)
	assert.Equal(t, MsgResetPasswordReturn, res.Message)
	mail, ok := h.mail.last("reset")
	require.True(t, ok)

	_, err = h.svc.ResetPassword(ctx, mail.Token, u.ID+1, "brandnew")
	requireKind(t, err, KindAuthentication, MsgPasswordResetInvalid)

	done, err := h.svc.ResetPassword(ctx, mail.Token, u.ID, "brandnew")
	require.NoError(t, err)
	assert.Equal(t, MsgPasswordResetSuccessful, done.Message)

	_, err = h.svc.ResetPassword(ctx, mail.Token, u.ID, "brandnew2")
	requireKind(t, err, KindAuthentication, MsgPasswordResetInvalid)

	_, err = h.svc.Login(ctx, "", "mallory", "brandnew")
	require.NoError(t, err)
}

func TestChangeEmailThenUndo(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.createUser(t, "nina", "nina@example.com", "hunter22")
	require.NoError(t, h.users.SetEmailVerified(ctx, u.ID))

	_, err := h.svc.ChangeEmail(ctx, u.ID, "nina.new@example.com", "bad-password")
	requireKind(t, err, KindAuthentication, MsgIncorrectPassword)

	res, err := h.svc.ChangeEmail(ctx, u.ID, "nina.new@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, MsgEmailChangeRequestSuccess, res.Message)

	changed, err := h.users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "nina.new@example.com", changed.Email)
	assert.False(t, changed.EmailVerified)

	undoMail, ok := h.mail.last("undo")
	require.True(t, ok)
	assert.Equal(t, "nina@example.com", undoMail.To)

	undone, err := h.svc.UndoEmailChange(ctx, undoMail.Token)
	require.NoError(t, err)
	assert.Equal(t, MsgEmailUndoSuccessful, undone.Message)
	assert.Equal(t, "nina@example.com", undone.Email)
	require.NotEmpty(t, undone.Token)

	claims, err := h.svc.Issuer.Parse(undone.Token)
	require.NoError(t, err)
	assert.Equal(t, "nina@example.com", claims.Email)
	assert.True(t, claims.EmailVerified)

	_, err = h.svc.UndoEmailChange(ctx, undoMail.Token)
	requireKind(t, err, KindAuthentication, MsgEmailUndoTokenNotFound)
}

func TestUndoEmailChangeUnknownToken(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.UndoEmailChange(context.Background(), "wrong-token")
	requireKind(t, err, KindAuthentication, MsgEmailUndoTokenNotFound)
}

func TestVerificationTokenStaleAfterEmailChange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	session, err := h.svc.Signup(ctx, SignupInput{Username: "oscar", Email: "oscar@example.com", Password: "hunter22"})
	require.NoError(t, err)
	first, _ := h.mail.last("verify")

	_, err = h.svc.ChangeEmail(ctx, session.UserID, "oscar2@example.com", "hunter22")
	require.NoError(t, err)

	_, err = h.svc.VerifyEmail(ctx, first.Token)
	requireKind(t, err, KindAuthentication, MsgEmailVerificationNotFound)

	second, _ := h.mail.last("verify")
	_, err = h.svc.VerifyEmail(ctx, second.Token)
	require.NoError(t, err)
}

func TestDeleteAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.createUser(t, "peggy", "", "hunter22")

	_, err := h.svc.DeleteAccount(ctx, u.ID, "wrong-pass")
	requireKind(t, err, KindAuthentication, MsgIncorrectPassword)

	res, err := h.svc.DeleteAccount(ctx, u.ID, "hunter22")
	require.NoError(t, err)
	assert.Equal(t, MsgUserDeleted, res.Message)

	profile, err := h.svc.User(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestReportContent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.createUser(t, "quinn", "", "hunter22")

	in := ReportInput{Network: "kumandra", Type: "post", ContentID: "12", Reason: "spam"}
	res, err := h.svc.ReportContent(ctx, u.ID, in)
	require.NoError(t, err)
	assert.Equal(t, MsgContentReportSuccessful, res.Message)

	_, err = h.svc.ReportContent(ctx, u.ID, in)
	requireKind(t, err, KindUserInput, MsgContentReportExists)

	long := in
	long.ContentID = "13"
	long.Comments = strings.Repeat("x", maxReportCommentLength+1)
	_, err = h.svc.ReportContent(ctx, u.ID, long)
	requireKind(t, err, KindUserInput, MsgContentReportInvalid)

	badType := in
	badType.Type = "user"
	_, err = h.svc.ReportContent(ctx, u.ID, badType)
	requireKind(t, err, KindUserInput, MsgContentReportInvalid)

	badNetwork := in
	badNetwork.Network = "polkadot"
	_, err = h.svc.ReportContent(ctx, u.ID, badNetwork)
	requireKind(t, err, KindUserInput, MsgInvalidNetwork)
}

func TestTwoFactorSetupAndDisable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.createUser(t, "rupert", "", "hunter22")

	setup, err := h.svc.TwoFactorSetupStart(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "SECRET-rupert", setup.Secret)

	_, err = h.svc.TwoFactorSetupConfirm(ctx, u.ID, "999999")
	requireKind(t, err, KindUserInput, MsgTwoFactorInvalidCode)

	enabled, err := h.svc.TwoFactorSetupConfirm(ctx, u.ID, "123456")
	require.NoError(t, err)
	claims, err := h.svc.Issuer.Parse(enabled.Token)
	require.NoError(t, err)
	assert.True(t, claims.TFAEnabled)

	_, err = h.svc.TwoFactorSetupStart(ctx, u.ID)
	requireKind(t, err, KindUserInput, MsgTwoFactorAlreadyEnabled)

	session, err := h.svc.Login(ctx, "", "rupert", "hunter22")
	require.NoError(t, err)
	require.True(t, session.TFARequired)

	_, err = h.svc.TwoFactorDisable(ctx, u.ID, "hunter22", "000000")
	requireKind(t, err, KindAuthentication, MsgTwoFactorInvalidCode)

	disabled, err := h.svc.TwoFactorDisable(ctx, u.ID, "hunter22", "123456")
	require.NoError(t, err)
	assert.Equal(t, MsgTwoFactorDisabled, disabled.Message)

	session, err = h.svc.Login(ctx, "", "rupert", "hunter22")
	require.NoError(t, err)
	assert.False(t, session.TFARequired)
}

func TestTwoFactorLoginLocksAfterFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.createUser(t, "sybil", "", "hunter22")
	secret := "S"
	require.NoError(t, h.users.SetTwoFactor(ctx, u.ID, &secret, true))

	session, err := h.svc.Login(ctx, "", "sybil", "hunter22")
	require.NoError(t, err)

	for i := 1; i < twoFAMaxAttempts; i++ {
		_, err := h.svc.TwoFactorLogin(ctx, session.TFAToken, strconv.Itoa(i))
		requireKind(t, err, KindAuthentication, MsgTwoFactorInvalidCode)
	}
	_, err = h.svc.TwoFactorLogin(ctx, session.TFAToken, "0")
	requireKind(t, err, KindForbidden, MsgTooManyTries)

	_, err = h.svc.TwoFactorLogin(ctx, session.TFAToken, "123456")
	requireKind(t, err, KindAuthentication, MsgTwoFactorTokenExpired)
}

func TestUserProfileListsVerifiedAddresses(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	u := h.createUser(t, "trent", "", "hunter22")
	h.addAddress(t, u.ID, NetworkKumandra, loginAddress, true)
	h.addAddress(t, u.ID, NetworkSelendra, "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY", false)

	p, err := h.svc.User(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "trent", p.Username)
	require.Len(t, p.Addresses, 1)
	assert.Equal(t, loginAddress, p.Addresses[0].Address)
}
