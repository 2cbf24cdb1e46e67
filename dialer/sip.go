package dialer

import (
	"context"
	"fmt"

	"github.com/Reverse-Call-Center/call-signal/utils"
	"github.com/emiago/diago"
	"github.com/emiago/sipgo/sip"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SIPDialer places an outbound INVITE towards a gateway for every tel: URI.
type SIPDialer struct {
	dg         *diago.Diago
	gateway    string
	ctx        context.Context
	log        *logrus.Entry
	logNumbers bool
}

// NewSIPDialer returns a dialer whose calls live until ctx is done.
// gateway is a host or host:port.
func NewSIPDialer(ctx context.Context, dg *diago.Diago, gateway string, log *logrus.Entry, logNumbers bool) *SIPDialer {
	return &SIPDialer{
		dg:         dg,
		gateway:    gateway,
		ctx:        ctx,
		log:        log,
		logNumbers: logNumbers,
	}
}

// RecipientURI maps a tel: URI onto the gateway's SIP URI.
func RecipientURI(telURI, gateway string) (sip.Uri, error) {
	var recipient sip.Uri
	number, err := ParseTelURI(telURI)
	if err != nil {
		return recipient, err
	}
	if gateway == "" {
		return recipient, errors.New("sip gateway is not configured")
	}
	if err := sip.ParseUri(fmt.Sprintf("sip:%s@%s", number, gateway), &recipient); err != nil {
		return recipient, errors.Wrapf(err, "error building recipient for %s", gateway)
	}
	return recipient, nil
}

// Dial validates the URI and starts the INVITE in the background.
func (d *SIPDialer) Dial(uri string) error {
	recipient, err := RecipientURI(uri, d.gateway)
	if err != nil {
		return err
	}

	number := recipient.User
	if !d.logNumbers {
		number = utils.MaskNumber(number)
	}
	log := d.log.WithField("number", number)

	go func() {
		log.Info("Placing outbound call")
		dialog, err := d.dg.Invite(d.ctx, recipient, diago.InviteOptions{})
		if err != nil {
			log.WithError(err).Warn("Outbound call failed")
			return
		}
		defer dialog.Close()

		log.Info("Outbound call answered")
		<-d.ctx.Done()
		if err := dialog.Hangup(context.Background()); err != nil {
			log.WithError(err).Debug("Error hanging up outbound call")
		}
	}()
	return nil
}
