package notification

import (
	"bytes"
	"fmt"
	"html/template"
)

const brandName = "QuickBite"

// codeValidityMinutes is printed in both emails.
const codeValidityMinutes = 10

type emailTemplate struct {
	name    string
	subject string
	heading string
	intro   string
}

type templateData struct {
	Brand   string
	Heading string
	Intro   string
	Code    string
	Minutes int
}

const layout = `<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <style>
      body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
      .container { max-width: 600px; margin: 0 auto; padding: 20px; }
      .header { background: #ff6b35; color: #fff; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
      .content { background: #f9f9f9; padding: 30px; border-radius: 0 0 8px 8px; }
      .code { font-size: 32px; font-weight: bold; letter-spacing: 8px; text-align: center; color: #ff6b35; padding: 20px; background: #fff; border-radius: 8px; margin: 20px 0; }
      .footer { text-align: center; margin-top: 20px; color: #888; font-size: 12px; }
    </style>
  </head>
  <body>
    <div class="container">
      <div class="header"><h1>{{.Brand}}</h1></div>
      <div class="content">
        <h2>{{.Heading}}</h2>
        <p>{{.Intro}}</p>
        <div class="code">{{.Code}}</div>
        <p>This code will expire in {{.Minutes}} minutes.</p>
        <p>If you didn't request this, please ignore this email.</p>
      </div>
      <div class="footer"><p>&copy; {{.Brand}}. All rights reserved.</p></div>
    </div>
  </body>
</html>`

var layoutTmpl = template.Must(template.New("email").Parse(layout))

var (
	verificationEmail = emailTemplate{
		name:    "verification",
		subject: "Verify Your Email - " + brandName,
		heading: "Verify Your Email",
		intro:   "Thanks for signing up! Use the code below to verify your email address:",
	}
	passwordResetEmail = emailTemplate{
		name:    "password reset",
		subject: "Reset Your Password - " + brandName,
		heading: "Reset Your Password",
		intro:   "We received a request to reset your password. Use the code below to continue:",
	}
)

func render(t emailTemplate, to, code string) (Message, error) {
	var buf bytes.Buffer
	err := layoutTmpl.Execute(&buf, templateData{
		Brand:   brandName,
		Heading: t.heading,
		Intro:   t.intro,
		Code:    code,
		Minutes: codeValidityMinutes,
	})
	if err != nil {
		return Message{}, fmt.Errorf("render %s email: %w", t.name, err)
	}
	return Message{To: to, Subject: t.subject, HTML: buf.String()}, nil
}
