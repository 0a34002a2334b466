package i18n

import (
	"html"
	"strconv"
	"strings"
)

type EmailContent struct {
	Subject string
	Text    string
	HTML    string
}

type emailStrings struct {
	VerificationSubject string
	VerificationText    string
	VerificationHTML    string

	PasswordResetSubject string
	PasswordResetText    string
	PasswordResetHTML    string

	UndoEmailSubject string
	UndoEmailText    string
	UndoEmailHTML    string

	ReportSubject string
	ReportText    string
	ReportHTML    string

	Anonymous string
}

var emailTranslations = map[string]emailStrings{
	"en": {
		VerificationSubject: "Verify your email address",
		VerificationText:    "Welcome aboard {username}!\n\nFor security purposes, please confirm your email address here: {link}\n\nThe link expires in {hours} hour(s).",
		VerificationHTML: "<p>Welcome aboard {username}!</p>" +
			"<p>For security purposes, please confirm your email address.</p>" +
			"<p><a href=\"{link}\">Verify email</a></p>" +
			"<p>The link expires in {hours} hour(s).</p>",

		PasswordResetSubject: "Username or password reset request",
		PasswordResetText:    "Hi {username}!\n\nYour username is {username}.\nReset your password: {link}\nThe link expires in {hours} hour(s).\nIf you did not request this, ignore this email.",
		PasswordResetHTML: "<p>Hi {username}!</p>" +
			"<p>Your username is <strong>{username}</strong>.</p>" +
			"<p><a href=\"{link}\">Reset password</a></p>" +
			"<p>The link expires in {hours} hour(s).</p>" +
			"<p>If you did not request this, ignore this email.</p>",

		UndoEmailSubject: "Your Polkassembly email was changed",
		UndoEmailText: "Hi {username}!\n\nThe email address of your account was changed from {oldEmail} to {newEmail}.\n" +
			"If you made this change, there is nothing to do.\n" +
			"If you did not, restore your previous address here: {link}",
		UndoEmailHTML: "<p>Hi {username}!</p>" +
			"<p>The email address of your account was changed from <strong>{oldEmail}</strong> to <strong>{newEmail}</strong>.</p>" +
			"<p>If you made this change, there is nothing to do.</p>" +
			"<p>If you did not, <a href=\"{link}\">restore your previous address</a>.</p>",

		ReportSubject: "Content reported",
		ReportText: "{username} reported a {type} on {network}.\n\n" +
			"Content id: {contentId}\nReason: {reason}\nComments: {comments}",
		ReportHTML: "<p><strong>{username}</strong> reported a {type} on {network}.</p>" +
			"<ul><li><strong>Content id:</strong> {contentId}</li>" +
			"<li><strong>Reason:</strong> {reason}</li>" +
			"<li><strong>Comments:</strong> {comments}</li></ul>",

		Anonymous: "there",
	},
	"de": {
		VerificationSubject: "Bestätigen Sie Ihre E-Mail-Adresse",
		VerificationText:    "Willkommen an Bord {username}!\n\nBitte bestätigen Sie aus Sicherheitsgründen Ihre E-Mail-Adresse: {link}\n\nDer Link ist {hours} Stunde(n) gültig.",
		VerificationHTML: "<p>Willkommen an Bord {username}!</p>" +
			"<p>Bitte bestätigen Sie aus Sicherheitsgründen Ihre E-Mail-Adresse.</p>" +
			"<p><a href=\"{link}\">E-Mail bestätigen</a></p>" +
			"<p>Der Link ist {hours} Stunde(n) gültig.</p>",

		PasswordResetSubject: "Benutzername oder Passwort zurücksetzen",
		PasswordResetText:    "Hallo {username}!\n\nIhr Benutzername ist {username}.\nSetzen Sie Ihr Passwort zurück: {link}\nDer Link ist {hours} Stunde(n) gültig.\nWenn Sie dies nicht angefordert haben, ignorieren Sie diese E-Mail.",
		PasswordResetHTML: "<p>Hallo {username}!</p>" +
			"<p>Ihr Benutzername ist <strong>{username}</strong>.</p>" +
			"<p><a href=\"{link}\">Passwort zurücksetzen</a></p>" +
			"<p>Der Link ist {hours} Stunde(n) gültig.</p>" +
			"<p>Wenn Sie dies nicht angefordert haben, ignorieren Sie diese E-Mail.</p>",

		UndoEmailSubject: "Ihre Polkassembly-E-Mail wurde geändert",
		UndoEmailText: "Hallo {username}!\n\nDie E-Mail-Adresse Ihres Kontos wurde von {oldEmail} auf {newEmail} geändert.\n" +
			"Wenn Sie das waren, ist nichts zu tun.\n" +
			"Andernfalls stellen Sie Ihre vorherige Adresse hier wieder her: {link}",
		UndoEmailHTML: "<p>Hallo {username}!</p>" +
			"<p>Die E-Mail-Adresse Ihres Kontos wurde von <strong>{oldEmail}</strong> auf <strong>{newEmail}</strong> geändert.</p>" +
			"<p>Wenn Sie das waren, ist nichts zu tun.</p>" +
			"<p>Andernfalls <a href=\"{link}\">stellen Sie Ihre vorherige Adresse wieder her</a>.</p>",

		ReportSubject: "Inhalt gemeldet",
		ReportText: "{username} hat einen Beitrag ({type}) auf {network} gemeldet.\n\n" +
			"Inhalts-ID: {contentId}\nGrund: {reason}\nKommentar: {comments}",
		ReportHTML: "<p><strong>{username}</strong> hat einen Beitrag ({type}) auf {network} gemeldet.</p>" +
			"<ul><li><strong>Inhalts-ID:</strong> {contentId}</li>" +
			"<li><strong>Grund:</strong> {reason}</li>" +
			"<li><strong>Kommentar:</strong> {comments}</li></ul>",

		Anonymous: "zusammen",
	},
}

func emailStringsForLocale(locale string) emailStrings {
	key := NormalizeLocale(locale)
	if val, ok := emailTranslations[key]; ok {
		return val
	}
	return emailTranslations[DefaultLocale]
}

func renderTemplate(tmpl string, values map[string]string) string {
	if tmpl == "" || len(values) == 0 {
		return tmpl
	}

	replacements := make([]string, 0, len(values)*2)
	for key, value := range values {
		replacements = append(replacements, "{"+key+"}", value)
	}
	return strings.NewReplacer(replacements...).Replace(tmpl)
}

// render fills both bodies; values are escaped for the HTML one.
func render(subject, text, htmlTmpl string, values map[string]string) EmailContent {
	escaped := make(map[string]string, len(values))
	for k, v := range values {
		escaped[k] = html.EscapeString(v)
	}
	return EmailContent{
		Subject: subject,
		Text:    renderTemplate(text, values),
		HTML:    renderTemplate(htmlTmpl, escaped),
	}
}

func displayName(t emailStrings, username string) string {
	if strings.TrimSpace(username) == "" {
		return t.Anonymous
	}
	return username
}

func VerificationEmail(locale, username, link string, hours int) EmailContent {
	t := emailStringsForLocale(locale)
	return render(t.VerificationSubject, t.VerificationText, t.VerificationHTML, map[string]string{
		"username": displayName(t, username),
		"link":     link,
		"hours":    strconv.Itoa(hours),
	})
}

func PasswordResetEmail(locale, username, link string, hours int) EmailContent {
	t := emailStringsForLocale(locale)
	return render(t.PasswordResetSubject, t.PasswordResetText, t.PasswordResetHTML, map[string]string{
		"username": displayName(t, username),
		"link":     link,
		"hours":    strconv.Itoa(hours),
	})
}

func UndoEmailChangeEmail(locale, username, oldEmail, newEmail, link string) EmailContent {
	t := emailStringsForLocale(locale)
	return render(t.UndoEmailSubject, t.UndoEmailText, t.UndoEmailHTML, map[string]string{
		"username": displayName(t, username),
		"oldEmail": oldEmail,
		"newEmail": newEmail,
		"link":     link,
	})
}

// ContentReportEmail is addressed to moderators, not to the reporter.
func ContentReportEmail(locale, username, network, reportType, contentID, reason, comments string) EmailContent {
	t := emailStringsForLocale(locale)
	return render(t.ReportSubject, t.ReportText, t.ReportHTML, map[string]string{
		"username":  username,
		"network":   network,
		"type":      reportType,
		"contentId": contentID,
		"reason":    reason,
		"comments":  comments,
	})
}
