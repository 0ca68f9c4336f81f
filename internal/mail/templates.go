package mail

import (
	"fmt"
	"html/template"
	"strings"
)

const verificationTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Verify your account</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<h3>Welcome to AI LMS!</h3>
	<p>Please verify your email by clicking the link below:</p>
	<p><a href="{{.URL}}">Verify Email</a></p>
	<p>Or copy this token: <b>{{.Token}}</b></p>
	<p>This link will expire in {{.Expiry}}.</p>
</body>
</html>`

const passwordResetTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Reset your password</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
	<h3>Password Reset Request</h3>
	<p>Click the link below to reset your password:</p>
	<p><a href="{{.URL}}">Reset Password</a></p>
	<p>This link will expire in {{.Expiry}}.</p>
	<p>If you didn't request this, please ignore this email.</p>
</body>
</html>`

var (
	verificationTmpl  = template.Must(template.New("verification").Parse(verificationTemplate))
	passwordResetTmpl = template.Must(template.New("password_reset").Parse(passwordResetTemplate))
)

type linkData struct {
	URL    string
	Token  string
	Expiry string
}

// RenderVerification renders the account verification email body.
func RenderVerification(url, token, expiry string) (string, error) {
	return render(verificationTmpl, linkData{URL: url, Token: token, Expiry: expiry})
}

// RenderPasswordReset renders the password reset email body.
func RenderPasswordReset(url, expiry string) (string, error) {
	return render(passwordResetTmpl, linkData{URL: url, Expiry: expiry})
}

func render(t *template.Template, data linkData) (string, error) {
	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", t.Name(), err)
	}
	return buf.String(), nil
}
