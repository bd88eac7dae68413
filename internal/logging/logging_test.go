package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestSetupLevels(t *testing.T) {
	tests := []struct {
		name    string
		quiet   bool
		verbose bool
		want    logrus.Level
	}{
		{"default", false, false, logrus.InfoLevel},
		{"verbose", false, true, logrus.DebugLevel},
		{"quiet wins over verbose", true, true, logrus.PanicLevel},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			Setup(tc.quiet, tc.verbose)
			if Log.GetLevel() != tc.want {
				t.Fatalf("got %v, want %v", Log.GetLevel(), tc.want)
			}
		})
	}
}
