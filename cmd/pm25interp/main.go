// Command pm25interp is a command-line interface for the Jakarta kelurahan
// PM2.5 spatio-temporal interpolation engine.
package main

import (
	"fmt"
	"os"

	"github.com/jakarta-airquality/pm25interp/internal/engineutil"
)

func main() {
	cfg := engineutil.InitializeConfig()
	err := cfg.Root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(engineutil.ExitCode(err))
}
