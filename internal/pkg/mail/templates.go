package mail

import (
	"bytes"
	"html/template"
)

// Message is a rendered email.
type Message struct {
	Subject string
	Body    string
}

var (
	recoveryTmpl = template.Must(template.New("recovery").Parse(
		`<p>Olá,</p><p>Recebemos um pedido para redefinir a sua senha.</p>` +
			`<p><a href="{{.Link}}">Clique aqui para criar uma nova senha</a>.</p>` +
			`<p>Se não foi você, ignore este email.</p>`))

	magicLinkTmpl = template.Must(template.New("magic").Parse(
		`<p>Olá,</p><p><a href="{{.Link}}">Clique aqui para entrar na sua conta</a>.</p>` +
			`<p>O link expira em breve e só pode ser usado neste navegador.</p>`))

	invitationTmpl = template.Must(template.New("invite").Parse(
		`<p>Olá {{.Name}},</p><p>{{.Titular}} adicionou você como dependente no plano Amparo.</p>` +
			`<p><a href="{{.Link}}">Clique aqui para criar sua senha</a> e acessar a sua conta.</p>`))
)

func render(t *template.Template, subject string, data any) (Message, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return Message{}, err
	}
	return Message{Subject: subject, Body: buf.String()}, nil
}

func PasswordRecovery(link string) (Message, error) {
	return render(recoveryTmpl, "Redefinição de senha", struct{ Link string }{link})
}

func MagicLink(link string) (Message, error) {
	return render(magicLinkTmpl, "Seu link de acesso", struct{ Link string }{link})
}

// DependentInvitation carries a link where the dependent sets their own password.
func DependentInvitation(name, titular, link string) (Message, error) {
	return render(invitationTmpl, "Você foi adicionado como dependente", struct {
		Name, Titular, Link string
	}{name, titular, link})
}

// Deliver sends m to one recipient through s.
func Deliver(s Sender, to string, m Message) error {
	return s.Send(to, m.Subject, m.Body)
}
