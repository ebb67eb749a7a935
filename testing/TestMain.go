package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("ENGINEERHUB_TEST_MODE", "1")
		if os.Getenv("MAIL_DRIVER") == "" {
			_ = os.Setenv("MAIL_DRIVER", "log")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
