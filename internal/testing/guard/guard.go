package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("GRIDLOG_TEST_MODE") == "" {
			_ = os.Setenv("GRIDLOG_TEST_MODE", "1")
		}
	})
}
