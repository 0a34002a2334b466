package auth

// Client-facing messages. Callers match on these exact strings.
const (
	MsgInternal     = "INTERNAL_ERROR"
	MsgUnauthorised = "UNAUTHORISED"
	MsgUserNotFound = "USER_NOT_FOUND"
	MsgTooManyTries = "TOO_MANY_ATTEMPTS"

	MsgAddressAlreadyExists     = "ADDRESS_ALREADY_EXISTS"
	MsgAddressDefaultSuccess    = "ADDRESS_DEFAULT_SUCCESS"
	MsgAddressInvalid           = "INVALID_ADDRESS"
	MsgAddressLinkingFailed     = "ADDRESS_LINKING_FAILED"
	MsgAddressLinkingStarted    = "ADDRESS_LINKING_STARTED"
	MsgAddressLinkingSuccessful = "ADDRESS_LINKING_SUCCESSFUL"
	MsgAddressLoginInvalidSig   = "ADDRESS_LOGIN_INVALID_SIGNATURE"
	MsgAddressLoginExpired      = "ADDRESS_LOGIN_SIGN_MESSAGE_EXPIRED"
	MsgAddressLoginStarted      = "ADDRESS_LOGIN_STARTED"
	MsgAddressNotFound          = "ADDRESS_NOT_FOUND"
	MsgAddressSignupInvalidSig  = "ADDRESS_SIGNUP_INVALID_SIGNATURE"
	MsgAddressSignupExpired     = "ADDRESS_SIGNUP_SIGN_MESSAGE_EXPIRED"
	MsgAddressSignupStarted     = "ADDRESS_SIGNUP_STARTED"
	MsgAddressUnlinkingSuccess  = "ADDRESS_UNLINKING_SUCCESS"
	MsgInvalidNetwork           = "INVALID_NETWORK"

	MsgEmailAlreadyVerified      = "EMAIL_ALREADY_VERIFIED"
	MsgEmailChangeRequestSuccess = "EMAIL_CHANGE_REQUEST_SUCCESSFUL"
	MsgEmailExists               = "EMAIL_EXISTS"
	MsgEmailInvalid              = "INVALID_EMAIL"
	MsgEmailNotSet               = "EMAIL_NOT_SET"
	MsgEmailResendSuccess        = "EMAIL_RESEND_VERIFICATION_TOKEN_SUCCESSFUL"
	MsgEmailUndoSuccessful       = "EMAIL_UNDO_SUCCESSFUL"
	MsgEmailUndoTokenNotFound    = "EMAIL_UNDO_TOKEN_NOT_FOUND"
	MsgEmailVerificationNotFound = "EMAIL_VERIFICATION_TOKEN_NOT_FOUND"
	MsgEmailVerificationSuccess  = "EMAIL_VERIFICATION_SUCCESSFUL"
	MsgEmailCooldown             = "EMAIL_COOLDOWN"

	MsgIncorrectPassword        = "INCORRECT_PASSWORD"
	MsgLogoutSuccessful         = "LOGOUT_SUCCESSFUL"
	MsgNoUserFound              = "NO_USER_FOUND_WITH_USERNAME"
	MsgPasswordChangeSuccessful = "PASSWORD_CHANGE_SUCCESSFUL"
	MsgPasswordInvalid          = "PASSWORD_LENGTH_ERROR"
	MsgPasswordResetInvalid     = "PASSWORD_RESET_TOKEN_INVALID"
	MsgPasswordResetSuccessful  = "PASSWORD_RESET_SUCCESSFUL"
	MsgResetPasswordReturn      = "RESET_PASSWORD_RETURN_MESSAGE"
	MsgRefreshTokenInvalid      = "REFRESH_TOKEN_INVALID"
	MsgUsernameChangeSuccessful = "USERNAME_CHANGE_SUCCESSFUL"
	MsgUsernameExists           = "USERNAME_EXISTS"
	MsgUsernameInvalid          = "USERNAME_INVALID_ERROR"
	MsgUserDeleted              = "USER_DELETED_SUCCESSFULLY"

	MsgContentReportExists     = "CONTENT_REPORT_ALREADY_EXISTS"
	MsgContentReportInvalid    = "CONTENT_REPORT_INVALID"
	MsgContentReportSuccessful = "CONTENT_REPORT_SUCCESSFUL"

	MsgTwoFactorAlreadyEnabled = "TWO_FACTOR_ALREADY_ENABLED"
	MsgTwoFactorDisabled       = "TWO_FACTOR_DISABLED"
	MsgTwoFactorEnabled        = "TWO_FACTOR_ENABLED"
	MsgTwoFactorInvalidCode    = "TWO_FACTOR_INVALID_CODE"
	MsgTwoFactorNotEnabled     = "TWO_FACTOR_NOT_ENABLED"
	MsgTwoFactorSetupExpired   = "TWO_FACTOR_SETUP_EXPIRED"
	MsgTwoFactorTokenExpired   = "TWO_FACTOR_TOKEN_EXPIRED"
)
