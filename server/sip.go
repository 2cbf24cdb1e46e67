package server

import (
	"context"

	"github.com/Reverse-Call-Center/call-signal/config"
	"github.com/Reverse-Call-Center/call-signal/handlers"
	"github.com/Reverse-Call-Center/call-signal/utils"
	"github.com/emiago/diago"
	"github.com/emiago/sipgo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// NewUserAgent builds the diago instance shared by the inbound server and the
// SIP dialer.
func NewUserAgent(globalConfig *config.Config) (*diago.Diago, error) {
	transport := diago.Transport{
		Transport: globalConfig.SIPProtocol,
		BindHost:  globalConfig.SIPListenAddress,
		BindPort:  globalConfig.SIPPort,
	}

	ua, err := sipgo.NewUA()
	if err != nil {
		return nil, errors.Wrap(err, "error creating SIP user agent")
	}

	return diago.NewDiago(ua, diago.WithTransport(transport)), nil
}

// StartSIPServer turns every inbound INVITE into a presented call and blocks
// until ctx is done.
func StartSIPServer(ctx context.Context, dg *diago.Diago, globalConfig *config.Config, presenter handlers.Presenter, log *logrus.Entry) error {
	log.WithFields(logrus.Fields{
		"protocol": globalConfig.SIPProtocol,
		"address":  globalConfig.SIPListenAddress,
		"port":     globalConfig.SIPPort,
	}).Info("Starting SIP server")

	err := dg.Serve(ctx, func(inDialog *diago.DialogServerSession) {
		callerID := utils.ExtractCallerPhone(inDialog.InviteRequest.Headers())
		callLog := log.WithField("caller", utils.CallerLabel(callerID, globalConfig.LogPhoneNumbers))

		// Stop ringing when either the caller cancels or the server shuts down.
		callCtx, cancel := context.WithCancel(inDialog.Context())
		defer cancel()
		stop := context.AfterFunc(ctx, cancel)
		defer stop()

		handlers.HandleIncomingCall(callCtx, inDialog, callerID, presenter, callLog)
	})
	if err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "SIP server stopped")
	}
	return nil
}
