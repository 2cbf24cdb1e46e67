package dialer

import (
	"github.com/Reverse-Call-Center/call-signal/utils"
	"github.com/sirupsen/logrus"
)

// Func adapts a plain function to the Dial method.
type Func func(uri string) error

func (f Func) Dial(uri string) error {
	return f(uri)
}

// LogDialer records dial requests in the log and never fails.
type LogDialer struct {
	Log        *logrus.Entry
	LogNumbers bool
}

func (d *LogDialer) Dial(uri string) error {
	number, err := ParseTelURI(uri)
	if err != nil {
		return err
	}
	if !d.LogNumbers {
		number = utils.MaskNumber(number)
	}
	d.Log.WithField("number", number).Info("Dial requested")
	return nil
}
