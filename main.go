/*
 * Copyright (c) 2019 Conclave IM.
 * See the LICENSE file for more information.
 */

package main

import (
	"fmt"
	"os"

	"github.com/conclave-im/conclave/app"
)

func main() {
	instance := app.New(os.Stdout, os.Args)
	if err := instance.Run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "conclave: %v\n", err)
		os.Exit(1)
	}
}
