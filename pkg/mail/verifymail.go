package mail

import (
	"errors"

	"coinpulse/conf"
	"coinpulse/pkg/logger"

	emailverifier "github.com/AfterShip/email-verifier"
)

// Verifier 邮箱可达性校验，开启precheck后启用邮件通道前先走一遍
type Verifier struct {
	verifier *emailverifier.Verifier
}

func NewVerifier() *Verifier {
	from := conf.AppConfig.Email.Sender
	return &Verifier{
		verifier: emailverifier.NewVerifier().EnableSMTPCheck().DisableCatchAllCheck().FromEmail(from),
	}
}

func (v *Verifier) VerifierEmail(email string) error {
	ret, err := v.verifier.Verify(email)
	if err != nil {
		logger.Warnf("verify email address failed: %v", err)
		return err
	}
	if !ret.Syntax.Valid {
		return errors.New("email address syntax is invalid")
	}
	if !ret.SMTP.Deliverable {
		return errors.New("email address not deliverable")
	}
	return nil
}
