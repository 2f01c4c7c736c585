// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command coffee computes equilibrium concentrations from composition and
// concentration files, or serves the computation over HTTP.
package main

import (
	"os"

	"github.com/curioloop/coffee/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
