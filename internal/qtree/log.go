package qtree

import "github.com/sirupsen/logrus"

var log logrus.FieldLogger = logrus.StandardLogger().WithField("component", "qtree")

// SetLogger replaces the logger used for diagnostics inside the package
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		l = logrus.StandardLogger()
	}
	log = l.WithField("component", "qtree")
}
