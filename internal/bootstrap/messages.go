package bootstrap

import (
	"errors"

	"gvsdash/internal/api"
	"gvsdash/internal/i18n"
	"gvsdash/internal/services/auth"
	"gvsdash/internal/services/datasets"
)

// MessageFor picks the user-facing message for a failed operation. Form and
// file errors have their own text; a rejected token outside sign-in reads as
// an expired session; everything else gets the operation's fallback.
func MessageFor(err error, fallback i18n.MessageID) i18n.MessageID {
	switch {
	case errors.Is(err, auth.ErrRequiredFields):
		return i18n.MsgRequiredFields
	case errors.Is(err, auth.ErrInvalidEmail):
		return i18n.MsgInvalidEmail
	case errors.Is(err, auth.ErrPasswordTooShort):
		return i18n.MsgPasswordTooShort
	case errors.Is(err, auth.ErrPasswordMismatch):
		return i18n.MsgPasswordMismatch
	case errors.Is(err, datasets.ErrUnsupportedFile):
		return i18n.MsgUnsupportedFile
	case errors.Is(err, api.ErrUnauthorized) && fallback != i18n.MsgAuthFailed:
		return i18n.MsgSessionExpired
	}
	return fallback
}

// Message logs the error detail and returns the localized fixed text.
func (c *Console) Message(err error, fallback i18n.MessageID) string {
	id := MessageFor(err, fallback)
	c.Log.WithError(err).WithField("message", string(id)).Debug("Operation failed")
	return c.Messages.T(id)
}
