// Package guard forces test mode on import so suites can never boot the
// real runtime by accident.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("INVOICEAPP_TEST_MODE") == "" {
			_ = os.Setenv("INVOICEAPP_TEST_MODE", "1")
		}
	})
}
