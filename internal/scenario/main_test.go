package scenario

import (
	"os"
	"testing"

	"github.com/socratic-shell/socratic-shell/internal/standin"
)

func TestMain(m *testing.M) {
	if standin.IsHelper() {
		standin.Main()
		return
	}
	os.Exit(m.Run())
}
