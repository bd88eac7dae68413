// Package logging wires up the process-wide logrus logger used by every
// other package, adding the nested formatter and level selection the CLI
// needs on top of a plain logrus.New().
package logging

import (
	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. Components import it directly rather than
// threading a logger through every constructor.
var Log = logrus.New()

func init() {
	Log.SetFormatter(&nested.Formatter{
		TimestampFormat: "2006-01-02 15:04:05",
		NoColors:        false,
	})
}

// Setup configures the logger's verbosity. quiet silences everything but
// panics (spec's "-q"); verbose raises the level to Debug.
func Setup(quiet, verbose bool) {
	switch {
	case quiet:
		Log.SetLevel(logrus.PanicLevel)
	case verbose:
		Log.SetLevel(logrus.DebugLevel)
	default:
		Log.SetLevel(logrus.InfoLevel)
	}
}
