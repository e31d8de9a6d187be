package notification

import (
	"fmt"
	"time"

	"github.com/matcornic/hermes/v2"
	"github.com/tendant/planhub/pkg/domain"
)

// Product describes the sender shown in email headers and footers.
type Product struct {
	Name string
	Link string
}

// Templates renders transactional emails with hermes.
type Templates struct {
	h *hermes.Hermes
}

// NewTemplates creates the email renderer.
func NewTemplates(p Product) *Templates {
	return &Templates{h: &hermes.Hermes{
		Theme:         new(hermes.Default),
		TextDirection: hermes.TDLeftToRight,
		Product: hermes.Product{
			Name:        p.Name,
			Link:        p.Link,
			Copyright:   fmt.Sprintf("© %s", p.Name),
			TroubleText: "If you're having trouble with the button '{ACTION}', copy and paste the URL below into your web browser.",
		},
	}}
}

// RenderCode renders the email carrying a one-time code for purpose.
func (t *Templates) RenderCode(purpose domain.Purpose, code string, expiresIn time.Duration) (string, string, error) {
	var subject, intro, instructions string
	switch purpose {
	case domain.PurposeAccountActivation:
		subject = "Activate your account"
		intro = fmt.Sprintf("Welcome to %s! We're very excited to have you on board.", t.h.Product.Name)
		instructions = "To activate your account, enter the following code:"
	case domain.PurposeResetPassword:
		subject = "Reset your password"
		intro = "A password reset has been requested for your account."
		instructions = "To choose a new password, enter the following code:"
	default:
		return "", "", fmt.Errorf("no email template for purpose %q", purpose)
	}

	body, err := t.h.GenerateHTML(hermes.Email{
		Body: hermes.Body{
			Intros: []string{intro},
			Actions: []hermes.Action{{
				Instructions: instructions,
				InviteCode:   code,
			}},
			Outros: []string{
				fmt.Sprintf("This code expires in %s.", formatDuration(expiresIn)),
				"If you did not request this, you can ignore this email.",
			},
		},
	})
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func formatDuration(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		return plural(int(d/time.Hour), "hour")
	}
	if d >= time.Minute {
		return plural(int(d.Round(time.Minute)/time.Minute), "minute")
	}
	return plural(int(d.Round(time.Second)/time.Second), "second")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
